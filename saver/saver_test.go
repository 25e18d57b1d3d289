package saver

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveData_DecodesBase64(t *testing.T) {
	d := NewDisk(t.TempDir())

	payload := base64.StdEncoding.EncodeToString([]byte("zip bytes"))
	dest, err := d.SaveData(context.Background(), payload, "AdPack/set_1.zip")
	if err != nil {
		t.Fatalf("SaveData: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "zip bytes" {
		t.Errorf("file content = %q", got)
	}
}

func TestSaveData_PlainTextStoredVerbatim(t *testing.T) {
	d := NewDisk(t.TempDir())

	dest, err := d.SaveData(context.Background(), "not base64!!", "AdPack/adcopy.txt")
	if err != nil {
		t.Fatalf("SaveData: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "not base64!!" {
		t.Errorf("file content = %q", got)
	}
}

func TestSaveData_CreatesSubfolders(t *testing.T) {
	root := t.TempDir()
	d := NewDisk(root)

	dest, err := d.SaveData(context.Background(), "x", "AdPack/deep/nested/file.txt")
	if err != nil {
		t.Fatalf("SaveData: %v", err)
	}
	if filepath.Dir(dest) != filepath.Join(root, "AdPack", "deep", "nested") {
		t.Errorf("dest = %q", dest)
	}
}

func TestSave_RejectsEscapingPaths(t *testing.T) {
	d := NewDisk(t.TempDir())

	for _, path := range []string{"../outside.txt", "/etc/passwd", "."} {
		if _, err := d.SaveData(context.Background(), "x", path); err == nil {
			t.Errorf("SaveData(%q) succeeded, want rejection", path)
		}
	}
}

func TestSaveURL_StreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("video bytes"))
	}))
	defer srv.Close()

	d := NewDisk(t.TempDir())
	dest, err := d.SaveURL(context.Background(), srv.URL+"/v.mp4", "AdPack/v.mp4")
	if err != nil {
		t.Fatalf("SaveURL: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "video bytes" {
		t.Errorf("file content = %q", got)
	}
}

func TestSaveURL_HTTPErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewDisk(t.TempDir())
	if _, err := d.SaveURL(context.Background(), srv.URL+"/gone", "AdPack/gone.mp4"); err == nil {
		t.Error("SaveURL succeeded for a 404, want error")
	}
}
