package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/service"
)

func TestReflectionModerationFlow(t *testing.T) {
	api, _ := setupTestAPI(t)
	author := createUser(t, api, "phoebe@example.com")
	reader := createUser(t, api, "tabitha@example.com")
	admin, err := api.users.EnsureAdmin("pastor@example.com", "admin-pass")
	if err != nil {
		t.Fatalf("ensure admin failed: %v", err)
	}

	tag, err := api.tags.Create("Gratitude")
	if err != nil {
		t.Fatalf("create tag failed: %v", err)
	}

	w := serve(t, api.CreateReflection, testRequest{method: http.MethodPost, userID: author.ID, body: map[string]any{"text": " "}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", w.Code)
	}
	w = serve(t, api.CreateReflection, testRequest{method: http.MethodPost, userID: author.ID, body: map[string]any{"text": "Hi", "tag_ids": []uint{999}}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown tag, got %d", w.Code)
	}

	var created struct {
		Reflection service.ReflectionView `json:"reflection"`
	}
	w = serve(t, api.CreateReflection, testRequest{method: http.MethodPost, userID: author.ID, body: map[string]any{
		"text":    "<b>Grateful</b> for the morning light",
		"mood":    "joyful",
		"tag_ids": []uint{tag.ID},
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	decodeJSON(t, w, &created)
	if created.Reflection.Status != "pending" || created.Reflection.Text != "Grateful for the morning light" {
		t.Fatalf("unexpected reflection %+v", created.Reflection)
	}
	reflectionParams := idParam("id", created.Reflection.ID)

	// 未审核前不可见
	w = serve(t, api.GetReflection, testRequest{userID: reader.ID, params: reflectionParams})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for pending reflection, got %d", w.Code)
	}
	w = serve(t, api.ToggleLike, testRequest{method: http.MethodPost, userID: reader.ID, params: reflectionParams})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when liking pending reflection, got %d", w.Code)
	}

	moderate := func(action string) int {
		params := gin.Params{{Key: "id", Value: fmt.Sprint(created.Reflection.ID)}, {Key: "action", Value: action}}
		return serve(t, api.ModerateReflection, testRequest{method: http.MethodPost, userID: admin.ID, isAdmin: true, params: params}).Code
	}
	if code := moderate("publish"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid action, got %d", code)
	}
	if code := moderate(service.ModerationApprove); code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", code)
	}

	var like service.LikeStatus
	w = serve(t, api.ToggleLike, testRequest{method: http.MethodPost, userID: reader.ID, params: reflectionParams})
	decodeJSON(t, w, &like)
	if !like.Liked || like.Count != 1 {
		t.Fatalf("expected liked with count 1, got %+v", like)
	}

	w = serve(t, api.AddComment, testRequest{method: http.MethodPost, userID: reader.ID, params: reflectionParams, body: map[string]any{"comment": "Amen"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("comment: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var comment struct {
		Comment service.CommentView `json:"comment"`
	}
	decodeJSON(t, w, &comment)

	var comments struct {
		Comments []service.CommentView `json:"comments"`
	}
	w = serve(t, api.ListComments, testRequest{userID: reader.ID, params: reflectionParams})
	decodeJSON(t, w, &comments)
	if len(comments.Comments) != 0 {
		t.Fatalf("pending comments must stay hidden, got %d", len(comments.Comments))
	}

	commentParams := gin.Params{{Key: "id", Value: fmt.Sprint(comment.Comment.ID)}, {Key: "action", Value: service.ModerationApprove}}
	w = serve(t, api.ModerateComment, testRequest{method: http.MethodPost, userID: admin.ID, isAdmin: true, params: commentParams})
	if w.Code != http.StatusOK {
		t.Fatalf("approve comment: expected 200, got %d", w.Code)
	}

	var feed service.FeedResult
	w = serve(t, api.Feed, testRequest{path: "/api/feed?page=1&per_page=5", userID: reader.ID})
	decodeJSON(t, w, &feed)
	if feed.Total != 1 || len(feed.Items) != 1 {
		t.Fatalf("expected one approved reflection in feed, got %+v", feed)
	}
	if feed.Items[0].LikeCount != 1 || feed.Items[0].CommentCount != 1 {
		t.Fatalf("unexpected counts %+v", feed.Items[0])
	}

	w = serve(t, api.ReflectionsByTag, testRequest{userID: reader.ID, params: idParam("id", tag.ID)})
	decodeJSON(t, w, &feed)
	if feed.Total != 1 {
		t.Fatalf("expected one reflection for tag, got %d", feed.Total)
	}

	w = serve(t, api.DeleteReflection, testRequest{method: http.MethodDelete, userID: reader.ID, params: reflectionParams})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non owner delete, got %d", w.Code)
	}
	w = serve(t, api.DeleteReflection, testRequest{method: http.MethodDelete, userID: author.ID, params: reflectionParams})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for owner delete, got %d", w.Code)
	}
}

func TestCreateTagDuplicateName(t *testing.T) {
	api, _ := setupTestAPI(t)
	user := createUser(t, api, "silas@example.com")

	w := serve(t, api.CreateTag, testRequest{method: http.MethodPost, userID: user.ID, body: map[string]any{"name": "Hope"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	w = serve(t, api.CreateTag, testRequest{method: http.MethodPost, userID: user.ID, body: map[string]any{"name": " hope "}})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate tag, got %d", w.Code)
	}
	w = serve(t, api.CreateTag, testRequest{method: http.MethodPost, userID: user.ID, body: map[string]any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", w.Code)
	}
}
