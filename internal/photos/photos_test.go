package photos

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*S3Store)(nil)
)

func TestKey(t *testing.T) {
	plant := uuid.New()
	for _, tc := range []struct {
		contentType string
		suffix      string
	}{
		{"image/jpeg", ".jpg"},
		{"image/png", ".png"},
		{"application/x-unknown-thing", ""},
	} {
		key, err := Key(plant, tc.contentType)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if !strings.HasPrefix(key, plant.String()+"/img-") {
			t.Errorf("Key(%q) = %q, want entity/img- prefix", tc.contentType, key)
		}
		if !strings.HasSuffix(key, tc.suffix) {
			t.Errorf("Key(%q) = %q, want suffix %q", tc.contentType, key, tc.suffix)
		}
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage("image/jpeg; charset=binary") {
		t.Error("IsImage(image/jpeg) = false")
	}
	if IsImage("text/plain") || IsImage("") {
		t.Error("IsImage accepted a non-image type")
	}
}

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(filepath.Join(dir, "photos"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	loc, err := s.Put(context.Background(), "plant/img-1.jpg", "image/jpeg", []byte("jpegdata"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := os.ReadFile(loc)
	if err != nil {
		t.Fatalf("reading %s: %v", loc, err)
	}
	if string(got) != "jpegdata" {
		t.Errorf("stored %q, want jpegdata", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(loc))
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the photo", len(entries))
	}
}

func TestLocalStore_CancelledContext(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, "a.jpg", "image/jpeg", []byte("x")); err == nil {
		t.Fatal("Put succeeded with a cancelled context")
	}
}

func TestS3Store_Put(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotType string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath, gotType, gotBody = r.URL.Path, r.Header.Get("Content-Type"), body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	s, err := NewS3Store(context.Background(), "plants", "photos/", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	loc, err := s.Put(context.Background(), "p1/img-1.png", "image/png", []byte("pngdata"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if loc != "s3://plants/photos/p1/img-1.png" {
		t.Errorf("location = %q", loc)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/plants/photos/p1/img-1.png" {
		t.Errorf("request path = %q, want path-style bucket/key", gotPath)
	}
	if gotType != "image/png" {
		t.Errorf("content type = %q", gotType)
	}
	if !strings.Contains(string(gotBody), "pngdata") {
		t.Errorf("body = %q", gotBody)
	}
}
