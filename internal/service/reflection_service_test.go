package service

import (
	"errors"
	"testing"

	"github.com/walklog/internal/db"
)

func TestReflectionLifecycle(t *testing.T) {
	gdb := setupTestDB(t)
	reflections := NewReflectionService(gdb)
	tags := NewTagService(gdb)
	likes := NewLikeService(gdb)
	comments := NewCommentService(gdb)

	author := createTestUser(t, gdb, "miriam@example.com")
	reader := createTestUser(t, gdb, "zipporah@example.com")

	hope, err := tags.Create("Hope")
	if err != nil {
		t.Fatalf("create tag failed: %v", err)
	}
	if _, err := tags.Create(" hope "); !errors.Is(err, ErrTagExists) {
		t.Fatalf("expected ErrTagExists, got %v", err)
	}

	if _, err := reflections.Create(author.ID, ReflectionInput{Text: "<b></b>"}); !errors.Is(err, ErrReflectionTextRequired) {
		t.Fatalf("expected ErrReflectionTextRequired, got %v", err)
	}
	if _, err := reflections.Create(author.ID, ReflectionInput{Text: "x", TagIDs: []uint{404}}); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}

	created, err := reflections.Create(author.ID, ReflectionInput{
		Text:   "Morning light <script>alert(1)</script>reminded me of grace",
		Mood:   "grateful",
		TagIDs: []uint{hope.ID, hope.ID},
	})
	if err != nil {
		t.Fatalf("create reflection failed: %v", err)
	}
	if created.Status != db.StatusPending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if created.Text != "Morning light reminded me of grace" {
		t.Fatalf("markup should be stripped, got %q", created.Text)
	}
	if len(created.Tags) != 1 || created.Tags[0].Name != "Hope" {
		t.Fatalf("unexpected tags: %#v", created.Tags)
	}

	feed, err := reflections.Feed(1, 10)
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if feed.Total != 0 {
		t.Fatalf("pending reflections must not appear in feed")
	}
	if _, err := reflections.Get(created.ID); !errors.Is(err, ErrReflectionNotFound) {
		t.Fatalf("expected pending reflection to be hidden, got %v", err)
	}
	if _, err := likes.Toggle(created.ID, reader.ID); !errors.Is(err, ErrReflectionNotFound) {
		t.Fatalf("expected like on pending reflection to fail, got %v", err)
	}

	pending, err := reflections.Pending()
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending reflection, got %d (%v)", len(pending), err)
	}

	if _, err := reflections.Moderate(created.ID, "publish"); !errors.Is(err, ErrInvalidModerationAction) {
		t.Fatalf("expected ErrInvalidModerationAction, got %v", err)
	}
	if _, err := reflections.Moderate(created.ID, ModerationApprove); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	status, err := likes.Toggle(created.ID, reader.ID)
	if err != nil {
		t.Fatalf("like failed: %v", err)
	}
	if !status.Liked || status.Count != 1 {
		t.Fatalf("unexpected like status: %#v", status)
	}
	status, err = likes.Toggle(created.ID, reader.ID)
	if err != nil {
		t.Fatalf("unlike failed: %v", err)
	}
	if status.Liked || status.Count != 0 {
		t.Fatalf("unexpected unlike status: %#v", status)
	}
	if _, err := likes.Toggle(created.ID, reader.ID); err != nil {
		t.Fatalf("relike failed: %v", err)
	}

	comment, err := comments.Add(created.ID, reader.ID, "Amen")
	if err != nil {
		t.Fatalf("add comment failed: %v", err)
	}
	if comment.Status != db.StatusPending || comment.Author.ID != reader.ID {
		t.Fatalf("unexpected comment: %#v", comment)
	}

	view, err := reflections.Get(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(view.Comments) != 0 || view.CommentCount != 0 || view.LikeCount != 1 {
		t.Fatalf("unexpected view before comment approval: %#v", view)
	}

	pendingComments, err := comments.Pending()
	if err != nil || len(pendingComments) != 1 {
		t.Fatalf("expected one pending comment, got %d (%v)", len(pendingComments), err)
	}
	if _, err := comments.Moderate(comment.ID, ModerationApprove); err != nil {
		t.Fatalf("approve comment failed: %v", err)
	}

	view, err = reflections.Get(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(view.Comments) != 1 || view.Comments[0].Comment != "Amen" || view.CommentCount != 1 {
		t.Fatalf("unexpected view after comment approval: %#v", view)
	}
	if view.Author.Name != "miriam" {
		t.Fatalf("unexpected author: %#v", view.Author)
	}

	byTag, err := reflections.ByTag(hope.ID, 1, 10)
	if err != nil {
		t.Fatalf("by tag failed: %v", err)
	}
	if byTag.Total != 1 || byTag.Items[0].ID != created.ID {
		t.Fatalf("unexpected by-tag result: %#v", byTag)
	}
	if _, err := reflections.ByTag(999, 1, 10); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}

	usage, err := tags.Usage()
	if err != nil || len(usage) != 1 || usage[0].Count != 1 {
		t.Fatalf("unexpected tag usage: %#v (%v)", usage, err)
	}

	if err := reflections.Delete(created.ID, reader.ID, false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := reflections.Delete(created.ID, author.ID, false); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := reflections.Delete(created.ID, author.ID, false); !errors.Is(err, ErrReflectionNotFound) {
		t.Fatalf("expected ErrReflectionNotFound after delete, got %v", err)
	}

	var likeCount int64
	gdb.Model(&db.ReflectionLike{}).Count(&likeCount)
	if likeCount != 0 {
		t.Fatalf("likes should be removed with the reflection")
	}
}

func TestReflectionFeedPagination(t *testing.T) {
	gdb := setupTestDB(t)
	reflections := NewReflectionService(gdb)
	user := createTestUser(t, gdb, "anna@example.com")

	for _, text := range []string{"first", "second", "third"} {
		created, err := reflections.Create(user.ID, ReflectionInput{Text: text})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if _, err := reflections.Moderate(created.ID, ModerationApprove); err != nil {
			t.Fatalf("approve failed: %v", err)
		}
	}
	rejected, err := reflections.Create(user.ID, ReflectionInput{Text: "hidden"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := reflections.Moderate(rejected.ID, ModerationReject); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	page, err := reflections.Feed(1, 2)
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected first page: total=%d pages=%d items=%d", page.Total, page.TotalPages, len(page.Items))
	}
	if page.Items[0].Text != "third" {
		t.Fatalf("expected newest first, got %q", page.Items[0].Text)
	}

	mine, err := reflections.ListMine(user.ID)
	if err != nil {
		t.Fatalf("list mine failed: %v", err)
	}
	if len(mine) != 4 {
		t.Fatalf("expected all own reflections, got %d", len(mine))
	}
}
