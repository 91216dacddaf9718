package cropper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/menta2k/crop-engine/pkg/types"
)

func newTestSession(t *testing.T, spec types.CropSpec) *Session {
	t.Helper()
	s, err := pngCropper().NewSession(testSource(t, 1000, 1000), squareViewport, spec)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNewSessionInvalid(t *testing.T) {
	c := pngCropper()
	if _, err := c.NewSession(nil, squareViewport, types.CropSpec{}); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("nil source: expected ErrInvalidImage, got %v", err)
	}
	if _, err := c.NewSession(testSource(t, 10, 10), types.Viewport{Width: -1, Height: 10}, types.CropSpec{}); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("bad viewport: expected ErrInvalidImage, got %v", err)
	}
}

func TestSessionStartsAtIdentity(t *testing.T) {
	s := newTestSession(t, types.CropSpec{AspectRatio: 1})

	st := s.State()
	if st.Zoom != 1 || st.Pan != (types.Point{}) {
		t.Errorf("Expected identity state, got %s", st)
	}
	if s.Spec().FrameFraction != 0.8 {
		t.Errorf("Expected normalized frame fraction 0.8, got %v", s.Spec().FrameFraction)
	}
}

func TestSessionPreview(t *testing.T) {
	s := newTestSession(t, types.CropSpec{AspectRatio: 1})

	p, err := s.Preview()
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if diff := cmp.Diff(types.SourceRect{X: 100, Y: 100, Width: 800, Height: 800}, p.Rect, approx); diff != "" {
		t.Errorf("identity rect mismatch (-want +got):\n%s", diff)
	}
	if !p.Covered {
		t.Error("identity frame should be covered by the image")
	}

	s.PanBy(60, 0)
	p, err = s.Preview()
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if p.Covered {
		t.Error("frame past the left edge should not be covered")
	}
	if diff := cmp.Diff(types.SourceRect{X: 0, Y: 100, Width: 800, Height: 800}, p.Rect, approx); diff != "" {
		t.Errorf("clamped rect mismatch (-want +got):\n%s", diff)
	}

	s.PanBy(100000, 0)
	p, err = s.Preview()
	if !errors.Is(err, types.ErrDegenerateCrop) {
		t.Fatalf("Expected ErrDegenerateCrop, got %v", err)
	}
	if p.Frame.Width != 400 {
		t.Errorf("degenerate preview should still carry the frame, got %+v", p.Frame)
	}
}

func TestSessionTransforms(t *testing.T) {
	s := newTestSession(t, types.CropSpec{})

	if st := s.Zoom(10); st.Zoom != 3 {
		t.Errorf("Expected zoom clamped to 3, got %v", st.Zoom)
	}
	if st := s.ZoomBy(-0.5); st.Zoom != 2.5 {
		t.Errorf("Expected zoom 2.5, got %v", st.Zoom)
	}
	if st := s.PanBy(10, -5); st.Pan != (types.Point{X: 10, Y: -5}) {
		t.Errorf("Expected pan (10,-5), got %+v", st.Pan)
	}
	if st := s.Reset(); st.Zoom != 1 || st.Pan != (types.Point{}) {
		t.Errorf("Expected identity after reset, got %s", st)
	}

	st := s.State()
	st.Zoom = 0.1
	if got := s.SetState(st); got.Zoom != 1 {
		t.Errorf("Expected SetState to clamp zoom to 1, got %v", got.Zoom)
	}
}

func TestSessionResize(t *testing.T) {
	s := newTestSession(t, types.CropSpec{AspectRatio: 1})

	if err := s.Resize(types.Viewport{Width: 1000, Height: 1000}); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	p, err := s.Preview()
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if p.Fit.DisplayedWidth != 1000 || p.Frame.Width != 800 {
		t.Errorf("Expected fit and frame to follow the viewport, got %+v %+v", p.Fit, p.Frame)
	}
	if diff := cmp.Diff(types.SourceRect{X: 100, Y: 100, Width: 800, Height: 800}, p.Rect, approx); diff != "" {
		t.Errorf("rect should not depend on viewport scale (-want +got):\n%s", diff)
	}

	if err := s.Resize(types.Viewport{}); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage for empty viewport, got %v", err)
	}
}

func TestSessionCommit(t *testing.T) {
	s := newTestSession(t, Avatar.Spec(0.8))
	s.Zoom(2)

	result, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if result.Width != 400 || result.Height != 400 {
		t.Errorf("Expected 400x400, got %dx%d", result.Width, result.Height)
	}

	results, err := s.CommitVariants(context.Background(), []types.CropSpec{Avatar.Spec(0.8), Cover.Spec(0.8)})
	if err != nil {
		t.Fatalf("CommitVariants failed: %v", err)
	}
	if len(results) != 2 || results[1].Width != 400 || results[1].Height != 225 {
		t.Errorf("unexpected variants %+v", results)
	}
}

func TestSessionClose(t *testing.T) {
	s := newTestSession(t, types.CropSpec{})
	s.Close()

	result, err := s.Commit(context.Background())
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
	if result.Data != nil {
		t.Error("closed session must not return data")
	}

	if _, err := s.CommitVariants(context.Background(), []types.CropSpec{{}}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed for variants, got %v", err)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	a := newTestSession(t, types.CropSpec{})
	b := newTestSession(t, types.CropSpec{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.PanBy(1, 0)
		}()
		go func() {
			defer wg.Done()
			b.ZoomBy(0.05)
		}()
	}
	wg.Wait()

	if a.State().Zoom != 1 || a.State().Pan.X != 20 {
		t.Errorf("session a: unexpected state %s", a.State())
	}
	if b.State().Pan != (types.Point{}) {
		t.Errorf("session b: unexpected pan %+v", b.State().Pan)
	}

	a.Close()
	if _, err := b.Commit(context.Background()); err != nil {
		t.Errorf("closing one session must not affect another: %v", err)
	}
}
