package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGetFileExtension(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":        "jpg",
		"a/b/c.webp":       "webp",
		"noext":            "",
		"archive.tar.gz":   "gz",
		"/tmp/.hidden.png": "png",
	}
	for in, want := range tests {
		if got := GetFileExtension(in); got != want {
			t.Errorf("GetFileExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	for _, f := range []string{"a.jpg", "b.JPEG", "c.png", "d.gif", "e.webp"} {
		if !IsImageFile(f) {
			t.Errorf("%s should be an image file", f)
		}
	}
	for _, f := range []string{"a.txt", "b", "c.tiff"} {
		if IsImageFile(f) {
			t.Errorf("%s should not be an image file", f)
		}
	}
}

func TestOutputFilename(t *testing.T) {
	tests := []struct {
		name                                     string
		input, dir, prefix, suffix, variant, fmt string
		want                                     string
	}{
		{"basic", "/in/photo.png", "out", "", "_cropped", "", "jpg", filepath.Join("out", "photo_cropped.jpg")},
		{"variant", "photo.jpg", "out", "x_", "", "avatar", "png", filepath.Join("out", "x_photo_avatar.png")},
		{"keep format", "photo.webp", "", "", "_c", "", "", "photo_c.webp"},
		{"url", "https://example.com/img/cat.jpeg?w=100", "out", "", "", "", "jpg", filepath.Join("out", "cat.jpg")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputFilename(tt.input, tt.dir, tt.prefix, tt.suffix, tt.variant, tt.fmt)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "notes.txt", filepath.Join("sub", "b.png")} {
		path := filepath.Join(dir, name)
		if err := EnsureDir(filepath.Dir(path)); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "sub", "b.png")}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	if !DirExists(filepath.Join(dir, "sub")) || DirExists(filepath.Join(dir, "a.jpg")) {
		t.Error("DirExists returned wrong result")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(` a:b*c?.png.`); got != "a_b_c_.png" {
		t.Errorf("unexpected %q", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:     "512 B",
		2048:    "2.0 KB",
		5 << 20: "5.0 MB",
	}
	for in, want := range tests {
		if got := FormatFileSize(in); got != want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", in, got, want)
		}
	}
}
