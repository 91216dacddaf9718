package cropper

import (
	"context"
	"errors"
	"sync"

	"github.com/menta2k/crop-engine/pkg/geometry"
	"github.com/menta2k/crop-engine/pkg/source"
	"github.com/menta2k/crop-engine/pkg/transform"
	"github.com/menta2k/crop-engine/pkg/types"
)

// ErrSessionClosed is returned by commits on a closed session
var ErrSessionClosed = errors.New("crop session closed")

// Session is one interactive crop of one source image. It owns the source,
// viewport, spec and current transform; sessions share nothing.
type Session struct {
	cropper *Cropper

	mu       sync.Mutex
	source   *source.Image
	viewport types.Viewport
	spec     types.CropSpec
	state    transform.State

	ctx    context.Context
	cancel context.CancelFunc
}

// Preview is what the widget needs to draw the current state honestly
type Preview struct {
	Resolution
	State   transform.State `json:"state"`
	Covered bool            `json:"covered"`
}

// NewSession starts a session at the identity transform
func (c *Cropper) NewSession(src *source.Image, vp types.Viewport, spec types.CropSpec) (*Session, error) {
	if src == nil {
		return nil, types.Errorf(types.ErrInvalidImage, "no source image")
	}
	if _, err := geometry.ComputeFit(src.Size(), vp); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cropper:  c,
		source:   src,
		viewport: vp,
		spec:     c.Spec(spec),
		state:    transform.New(c.config.Limits),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Source returns the session's image
func (s *Session) Source() *source.Image {
	return s.source
}

// Spec returns the session's crop spec
func (s *Session) Spec() types.CropSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// State returns the current transform
func (s *Session) State() transform.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState replaces the transform, re-clamping zoom to the session limits
func (s *Session) SetState(state transform.State) transform.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = transform.New(s.cropper.config.Limits).SetZoom(state.Zoom).SetPan(state.Pan)
	return s.state
}

// Zoom sets the zoom factor
func (s *Session) Zoom(z float64) transform.State {
	return s.update(func(st transform.State) transform.State { return st.SetZoom(z) })
}

// ZoomBy changes the zoom factor by delta
func (s *Session) ZoomBy(delta float64) transform.State {
	return s.update(func(st transform.State) transform.State { return st.ZoomBy(delta) })
}

// PanBy applies a drag delta
func (s *Session) PanBy(dx, dy float64) transform.State {
	return s.update(func(st transform.State) transform.State { return st.PanBy(dx, dy) })
}

// Reset returns to the identity transform
func (s *Session) Reset() transform.State {
	return s.update(func(st transform.State) transform.State { return st.Reset() })
}

func (s *Session) update(fn func(transform.State) transform.State) transform.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	return s.state
}

// Resize changes the viewport, e.g. after a window resize. Fit and frame are
// recomputed on the next Preview or Commit.
func (s *Session) Resize(vp types.Viewport) error {
	if _, err := geometry.ComputeFit(s.source.Size(), vp); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = vp
	return nil
}

// Preview resolves the current state without rasterizing. On ErrDegenerateCrop
// the returned preview still carries the fit and frame.
func (s *Session) Preview() (Preview, error) {
	s.mu.Lock()
	vp, spec, state := s.viewport, s.spec, s.state
	s.mu.Unlock()

	size := s.source.Size()
	res, err := s.cropper.Resolve(size, vp, spec, state)
	p := Preview{Resolution: res, State: state}
	if err == nil {
		p.Covered = geometry.FrameCovered(res.Frame, res.Fit, state, size)
	}
	return p, err
}

// Commit rasterizes the current state. Closing the session abandons an
// in-flight commit and no result is returned.
func (s *Session) Commit(ctx context.Context) (types.CropResult, error) {
	s.mu.Lock()
	vp, spec, state := s.viewport, s.spec, s.state
	s.mu.Unlock()

	ctx, stop := s.bind(ctx)
	defer stop()

	result, err := s.cropper.Commit(ctx, s.source, vp, spec, state)
	if s.ctx.Err() != nil {
		return types.CropResult{}, ErrSessionClosed
	}
	return result, err
}

// CommitVariants rasterizes the current transform with several specs, e.g.
// an avatar and a banner from one upload.
func (s *Session) CommitVariants(ctx context.Context, specs []types.CropSpec) ([]types.CropResult, error) {
	s.mu.Lock()
	vp, state := s.viewport, s.state
	s.mu.Unlock()

	ctx, stop := s.bind(ctx)
	defer stop()

	results, err := s.cropper.CommitVariants(ctx, s.source, vp, specs, state)
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	return results, err
}

// Close discards the session. In-flight commits are abandoned.
func (s *Session) Close() {
	s.cancel()
}

// bind derives a context cancelled by either ctx or Close
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
