package registry

import (
	"context"
	"errors"
	"testing"
)

func TestSaveAndList(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	for _, p := range []Provider{
		{ID: "met", MediaType: "image"},
		{ID: "flickr", MediaType: "image", FilterContent: true},
		{ID: "jamendo", MediaType: "audio"},
	} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("save %s: %v", p.ID, err)
		}
	}
	if ms.hashes["livesearch:provider:flickr"]["filter_content"] != "true" {
		t.Errorf("unexpected hash: %v", ms.hashes["livesearch:provider:flickr"])
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(got))
	}
	if got[0].ID != "flickr" || !got[0].FilterContent || got[0].MediaType != "image" {
		t.Errorf("unexpected first provider: %+v", got[0])
	}
	if got[1].ID != "jamendo" || got[1].FilterContent {
		t.Errorf("unexpected second provider: %+v", got[1])
	}
}

func TestList_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)
	got, err := repo.List(context.Background())
	if err != nil || got != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestList_SkipsVanishedRecords(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hashes = map[string]map[string]string{
		"livesearch:provider:gone": nil,
		"livesearch:provider:met":  {"media_type": "image", "filter_content": "garbage"},
	}

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "met" || got[0].FilterContent {
		t.Errorf("unexpected providers: %+v", got)
	}
}

func TestList_StoreErrors(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scanErr = errors.New("connection refused")
	if _, err := repo.List(context.Background()); err == nil {
		t.Error("expected scan error")
	}

	ms.scanErr = nil
	ms.hashes = map[string]map[string]string{"livesearch:provider:met": {}}
	ms.loadErr = errors.New("timeout")
	if _, err := repo.List(context.Background()); err == nil {
		t.Error("expected load error")
	}
}

func TestSave_RequiresID(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.Save(context.Background(), Provider{}); err == nil {
		t.Error("expected error for empty id")
	}
}
