package media

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/livesearch/internal/domain"
)

func validFields() []Field {
	return []Field{{Name: "title", Weight: 2}, {Name: "tags", Weight: 1}}
}

func TestNew_Valid(t *testing.T) {
	mt, err := New("image", "image-v2", validFields(), []string{"tags"}, "/v1/images/{identifier}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mt.Name() != "image" || mt.Index() != "image-v2" {
		t.Errorf("unexpected name/index: %s/%s", mt.Name(), mt.Index())
	}
	names := mt.SearchFieldNames()
	if len(names) != 2 || names[0] != "title" || names[1] != "tags" {
		t.Errorf("unexpected search field names: %v", names)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mtName    string
		index     string
		fields    []Field
		related   []string
		detailURL string
	}{
		{"bad name", "Image!", "image", validFields(), []string{"tags"}, "/{identifier}"},
		{"no index", "image", "", validFields(), []string{"tags"}, "/{identifier}"},
		{"no fields", "image", "image", nil, []string{"tags"}, "/{identifier}"},
		{"empty field", "image", "image", []Field{{Name: ""}}, []string{"tags"}, "/{identifier}"},
		{"negative weight", "image", "image", []Field{{Name: "t", Weight: -1}}, []string{"tags"}, "/{identifier}"},
		{"no related", "image", "image", validFields(), nil, "/{identifier}"},
		{"no placeholder", "image", "image", validFields(), []string{"tags"}, "/v1/images/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.mtName, tt.index, tt.fields, tt.related, tt.detailURL); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDetailURL(t *testing.T) {
	mt, _ := New("audio", "audio", validFields(), []string{"tags"}, "https://api.test/v1/audio/{identifier}/")
	got := mt.DetailURL("abc")
	if got != "https://api.test/v1/audio/abc/" {
		t.Errorf("got %q", got)
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(Defaults()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := reg.Get("image"); err != nil {
		t.Errorf("image: %v", err)
	}
	_, err = reg.Get("video")
	if !errors.Is(err, domain.ErrUnknownMediaType) {
		t.Errorf("expected ErrUnknownMediaType, got %v", err)
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "audio" || names[1] != "image" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	d := Defaults()
	if _, err := NewRegistry(d[0], d[0]); err == nil {
		t.Fatal("expected duplicate error")
	}
}
