package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGoodNewsServiceTodayAndCreate(t *testing.T) {
	gdb := setupTestDB(t)
	loc := time.FixedZone("UTC-5", -5*60*60)
	svc := NewGoodNewsService(gdb, loc, t.TempDir(), "/static/uploads")

	// 01:00 UTC 对应 UTC-5 的前一天
	now := time.Date(2026, 7, 2, 1, 0, 0, 0, time.UTC)

	if _, err := svc.Today(now); !errors.Is(err, ErrGoodNewsNotFound) {
		t.Fatalf("expected ErrGoodNewsNotFound, got %v", err)
	}

	card, err := svc.Create(GoodNewsInput{Title: "He is faithful", Content: "Lamentations 3:23"}, nil, now)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got := card.Date.Format("2006-01-02"); got != "2026-07-01" {
		t.Fatalf("expected local calendar day, got %s", got)
	}

	today, err := svc.Today(now)
	if err != nil {
		t.Fatalf("today failed: %v", err)
	}
	if today.ID != card.ID {
		t.Fatalf("expected card %d, got %d", card.ID, today.ID)
	}

	if _, err := svc.Create(GoodNewsInput{Title: "Again"}, nil, now); !errors.Is(err, ErrGoodNewsExists) {
		t.Fatalf("expected ErrGoodNewsExists, got %v", err)
	}
	if _, err := svc.Create(GoodNewsInput{Title: "Bad date", Date: "07/03/2026"}, nil, now); !errors.Is(err, ErrGoodNewsInvalidInput) {
		t.Fatalf("expected ErrGoodNewsInvalidInput, got %v", err)
	}
	if _, err := svc.Create(GoodNewsInput{Title: " "}, nil, now); !errors.Is(err, ErrGoodNewsInvalidInput) {
		t.Fatalf("expected ErrGoodNewsInvalidInput, got %v", err)
	}
}

func TestGoodNewsServiceImageUpload(t *testing.T) {
	gdb := setupTestDB(t)
	dir := t.TempDir()
	svc := NewGoodNewsService(gdb, time.UTC, dir, "/static/uploads")
	now := time.Date(2026, 7, 2, 12, 0, 0, 0, time.UTC)

	img := image.NewRGBA(image.Rect(0, 0, 12, 7))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	card, err := svc.Create(GoodNewsInput{Title: "Sunrise", Date: "2026-07-03"}, &ImageUpload{Filename: "sunrise.PNG", Body: &buf}, now)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if card.ImageWidth != 12 || card.ImageHeight != 7 {
		t.Fatalf("unexpected dimensions %dx%d", card.ImageWidth, card.ImageHeight)
	}
	if !strings.HasPrefix(card.ImageURL, "/static/uploads/") || !strings.HasSuffix(card.ImageURL, ".png") {
		t.Fatalf("unexpected image url %q", card.ImageURL)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.Base(card.ImageURL))); err != nil {
		t.Fatalf("expected uploaded file on disk: %v", err)
	}

	_, err = svc.Create(GoodNewsInput{Title: "Broken", Date: "2026-07-04"}, &ImageUpload{Filename: "x.png", Body: strings.NewReader("not an image")}, now)
	if !errors.Is(err, ErrGoodNewsImageInvalid) {
		t.Fatalf("expected ErrGoodNewsImageInvalid, got %v", err)
	}
}
