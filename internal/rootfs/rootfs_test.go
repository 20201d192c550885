package rootfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadWritesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "archive")
	if err := download(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "archive-bytes" {
		t.Errorf("got %q, want %q", data, "archive-bytes")
	}
}

func TestDownloadNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "archive")
	if err := download(context.Background(), srv.URL, dest); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestRequiredToolsIncludesCoreToolchain(t *testing.T) {
	want := []string{"bash", "wget", "tar", "b2sum", "patch", "make", "gcc"}
	have := map[string]bool{}
	for _, tool := range RequiredTools {
		have[tool] = true
	}
	for _, tool := range want {
		if !have[tool] {
			t.Errorf("RequiredTools missing %q", tool)
		}
	}
}
