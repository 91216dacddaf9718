package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/crop-engine/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	l := New()
	if l == nil {
		t.Fatal("New() returned nil")
	}
	if l.config.MaxBytes != 25<<20 {
		t.Errorf("Expected default max bytes %d, got %d", 25<<20, l.config.MaxBytes)
	}
	if !l.config.AutoOrientation {
		t.Error("Expected auto orientation on by default")
	}
}

func TestDecode(t *testing.T) {
	l := New()
	ctx := context.Background()

	img, err := l.Decode(ctx, encodePNG(t, createTestImage(320, 240)))
	if err != nil {
		t.Fatalf("Decode png failed: %v", err)
	}
	if img.Size() != (types.Size{Width: 320, Height: 240}) {
		t.Errorf("Expected 320x240, got %+v", img.Size())
	}
	if img.Format() != "png" {
		t.Errorf("Expected png format, got %s", img.Format())
	}

	img, err = l.Decode(ctx, encodeJPEG(t, createTestImage(64, 48)))
	if err != nil {
		t.Fatalf("Decode jpeg failed: %v", err)
	}
	if img.Format() != "jpeg" || img.Size().Width != 64 {
		t.Errorf("unexpected decode result %s", img)
	}
}

func TestDecodeInvalid(t *testing.T) {
	l := New()
	ctx := context.Background()

	if _, err := l.Decode(ctx, nil); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("empty data: expected ErrInvalidImage, got %v", err)
	}
	if _, err := l.Decode(ctx, []byte("definitely not an image")); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("garbage: expected ErrInvalidImage, got %v", err)
	}
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedFormats = []string{"jpeg", "png"}
	l := NewWithConfig(cfg)

	var buf bytes.Buffer
	if err := gif.Encode(&buf, createTestImage(10, 10), nil); err != nil {
		t.Fatalf("gif encode failed: %v", err)
	}
	if _, err := l.Decode(context.Background(), buf.Bytes()); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage for gif, got %v", err)
	}
}

func TestDecodeMaxDimension(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDimension = 100
	l := NewWithConfig(cfg)

	if _, err := l.Decode(context.Background(), encodePNG(t, createTestImage(150, 20))); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage for oversized image, got %v", err)
	}
}

func TestDecodeCancelled(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img, err := l.Decode(ctx, encodePNG(t, createTestImage(10, 10)))
	if img != nil {
		t.Error("cancelled decode must not return an image")
	}
	if !errors.Is(err, types.ErrLoadFailed) || !IsCancelled(err) {
		t.Errorf("expected cancelled ErrLoadFailed, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(path, encodePNG(t, createTestImage(40, 30)), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New()
	img, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Size() != (types.Size{Width: 40, Height: 30}) {
		t.Errorf("unexpected size %+v", img.Size())
	}

	if _, err := l.Load(context.Background(), filepath.Join(dir, "missing.png")); !errors.Is(err, types.ErrLoadFailed) {
		t.Errorf("missing file: expected ErrLoadFailed, got %v", err)
	}
}

func TestLoadFileMaxBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	data := encodePNG(t, createTestImage(40, 30))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.MaxBytes = int64(len(data) - 1)
	if _, err := NewWithConfig(cfg).Load(context.Background(), path); !errors.Is(err, types.ErrLoadFailed) {
		t.Errorf("expected ErrLoadFailed above max bytes, got %v", err)
	}
}

func TestLoadURL(t *testing.T) {
	pngData := encodePNG(t, createTestImage(50, 25))

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/photo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngData)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := New()
	ctx := context.Background()

	img, err := l.Load(ctx, srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("Load URL failed: %v", err)
	}
	if img.Size() != (types.Size{Width: 50, Height: 25}) {
		t.Errorf("unexpected size %+v", img.Size())
	}
	if gotUA != DefaultConfig().UserAgent {
		t.Errorf("expected user agent %q, got %q", DefaultConfig().UserAgent, gotUA)
	}

	for _, path := range []string{"/missing.png", "/page.html"} {
		if _, err := l.Load(ctx, srv.URL+path); !errors.Is(err, types.ErrLoadFailed) {
			t.Errorf("%s: expected ErrLoadFailed, got %v", path, err)
		}
	}
}

func TestLoadURLCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().LoadURL(ctx, srv.URL+"/slow.png"); !errors.Is(err, types.ErrLoadFailed) {
		t.Errorf("expected ErrLoadFailed, got %v", err)
	}
}

func TestLoadURLScheme(t *testing.T) {
	if _, err := New().LoadURL(context.Background(), "ftp://example.com/a.png"); !errors.Is(err, types.ErrLoadFailed) {
		t.Errorf("expected ErrLoadFailed for ftp scheme, got %v", err)
	}
}

func TestNewImage(t *testing.T) {
	if _, err := NewImage(nil, "png"); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("nil image: expected ErrInvalidImage, got %v", err)
	}
	empty := image.NewRGBA(image.Rect(0, 0, 0, 10))
	if _, err := NewImage(empty, "png"); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("zero width: expected ErrInvalidImage, got %v", err)
	}
}

func TestIsURL(t *testing.T) {
	if !IsURL("https://example.com/a.jpg") || !IsURL("http://x/y") {
		t.Error("expected http(s) refs to be URLs")
	}
	if IsURL("/tmp/a.jpg") || IsURL("photo.png") {
		t.Error("expected paths not to be URLs")
	}
}
