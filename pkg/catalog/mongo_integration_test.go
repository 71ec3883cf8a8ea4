//go:build integration

package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("MOCKUPKIT_MONGO_URI")
	if uri == "" {
		t.Skip("MOCKUPKIT_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewMongoStore(ctx, MongoOptions{URI: uri, Database: "mockupkit_test_" + uuid.NewString()[:8]})
	if err != nil {
		t.Fatalf("NewMongoStore() error: %v", err)
	}
	defer s.Close()

	src, err := Parse([]byte(catalogTOML), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mug, _ := src.Get(ctx, "mug")
	files := map[string][]byte{mug.Templates[0].Path: []byte("[canvas]\nwidth = 1\nheight = 1\n")}
	if err := s.Put(ctx, *mug, files); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(ctx, "mug")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Name != mug.Name || len(got.Templates) != 2 {
		t.Errorf("Get() = %+v, want %+v", got, mug)
	}

	data, err := s.Template(ctx, mug.Templates[0])
	if err != nil {
		t.Fatalf("Template() error: %v", err)
	}
	if string(data) != string(files[mug.Templates[0].Path]) {
		t.Errorf("Template() = %q", data)
	}
	if _, err := s.Template(ctx, mug.Templates[1]); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Template(missing) error = %v, want FILE_NOT_FOUND", err)
	}
	if _, err := s.Get(ctx, "poster"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get(poster) error = %v, want NOT_FOUND", err)
	}
}
