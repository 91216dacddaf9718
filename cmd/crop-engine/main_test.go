package main

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	cropengine "github.com/menta2k/crop-engine"
	"github.com/menta2k/crop-engine/pkg/cropper"
	"github.com/menta2k/crop-engine/pkg/source"
	"github.com/menta2k/crop-engine/pkg/types"
)

func TestParseViewport(t *testing.T) {
	vp, err := parseViewport("640x480")
	if err != nil {
		t.Fatalf("parseViewport failed: %v", err)
	}
	if vp != (types.Viewport{Width: 640, Height: 480}) {
		t.Errorf("unexpected viewport %+v", vp)
	}

	if vp, err := parseViewport(""); err != nil || vp != (types.Viewport{}) {
		t.Errorf("empty viewport: got %+v, %v", vp, err)
	}

	for _, in := range []string{"640", "ax480", "640xb", "0x480", "-1x2"} {
		if _, err := parseViewport(in); err == nil {
			t.Errorf("parseViewport(%q): expected error", in)
		}
	}
}

func TestCropCmdVariants(t *testing.T) {
	cmd := cropCmd{Preset: []string{"avatar", "cover"}}
	variants, err := cmd.variants()
	if err != nil {
		t.Fatalf("variants failed: %v", err)
	}
	if len(variants) != 2 || variants[0].Name != "avatar" || variants[1].Name != "cover" {
		t.Fatalf("unexpected variants %+v", variants)
	}
	if variants[0].Spec != cropper.Avatar.Spec(0) || variants[1].Spec != cropper.Cover.Spec(0) {
		t.Errorf("unexpected specs %+v", variants)
	}

	cmd = cropCmd{Preset: []string{"square"}, Aspect: "3:2", Shape: "circle"}
	variants, err = cmd.variants()
	if err != nil {
		t.Fatalf("custom variants failed: %v", err)
	}
	if len(variants) != 1 || variants[0].Spec.AspectRatio != 1.5 || variants[0].Spec.Shape != types.Circle {
		t.Errorf("unexpected custom variant %+v", variants)
	}

	// The parsed ratio is kept as is, not rounded
	cmd = cropCmd{Aspect: "16:9", Shape: "rectangle"}
	variants, err = cmd.variants()
	if err != nil {
		t.Fatalf("16:9 variants failed: %v", err)
	}
	if got := variants[0].Spec.AspectRatio; got != 16.0/9.0 {
		t.Errorf("aspect ratio = %v, want %v", got, 16.0/9.0)
	}

	cmd = cropCmd{Preset: []string{"poster"}}
	if _, err := cmd.variants(); err == nil {
		t.Error("Expected error for unknown preset")
	}
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	inputs, err := expandInputs([]string{dir, "https://example.com/c.jpg", "d.jpg"})
	if err != nil {
		t.Fatalf("expandInputs failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.png"), "https://example.com/c.jpg", "d.jpg"}
	if len(inputs) != len(want) {
		t.Fatalf("got %v, want %v", inputs, want)
	}
	for i := range want {
		if inputs[i] != want[i] {
			t.Errorf("input %d: got %s, want %s", i, inputs[i], want[i])
		}
	}

	if _, err := expandInputs([]string{t.TempDir()}); err == nil {
		t.Error("Expected error for a directory without images")
	}
}

func TestWriteDebugOverlayUsesLoadedSource(t *testing.T) {
	dir := t.TempDir()
	engine := cropengine.New()
	src, err := source.NewImage(image.NewNRGBA(image.Rect(0, 0, 120, 80)), "png")
	if err != nil {
		t.Fatal(err)
	}

	// The URL is never fetched; the overlay is drawn from src
	ref := "http://127.0.0.1:1/pic.jpg"
	opts := cropengine.ProcessOptions{
		OutputDir: dir,
		State:     engine.NewState(),
		Variants:  cropengine.PresetVariants(cropper.Square),
	}
	if err := writeDebugOverlay(context.Background(), engine, src, ref, opts); err != nil {
		t.Fatalf("writeDebugOverlay failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "pic_debug.png"))
	if err != nil {
		t.Fatalf("overlay not written: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("overlay is not a png: %v", err)
	}
	if cfg.Width != 120 || cfg.Height != 80 {
		t.Errorf("overlay is %dx%d, want 120x80", cfg.Width, cfg.Height)
	}
}
