// Package server exposes the crop pipeline over HTTP. It returns encoded
// crops to the caller; storing them is up to the caller.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/crop-engine/pkg/cropper"
	"github.com/menta2k/crop-engine/pkg/source"
	"github.com/menta2k/crop-engine/pkg/types"
)

// Config holds HTTP service settings
type Config struct {
	Addr             string
	BodyLimit        int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	OnReady          func(addr string)
	OnBeforeShutdown func()
}

// Server serves preview and crop requests
type Server struct {
	config  Config
	loader  *source.Loader
	cropper *cropper.Cropper
	baseCtx context.Context
}

// New creates a Server around a loader and a cropper
func New(config Config, loader *source.Loader, c *cropper.Cropper) *Server {
	if loader == nil {
		loader = source.New()
	}
	if c == nil {
		c = cropper.New()
	}
	return &Server{
		config:  config,
		loader:  loader,
		cropper: c,
		baseCtx: context.Background(),
	}
}

// App builds the fiber application with all routes registered
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             s.config.BodyLimit,
		ReadTimeout:           s.config.ReadTimeout,
		WriteTimeout:          s.config.WriteTimeout,
		ErrorHandler:          s.handleError,
	})

	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(s.baseCtx)
		return c.Next()
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/presets", s.presets)
	app.Post("/preview", s.preview)
	app.Post("/crop", s.crop)

	return app
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	app := s.App()

	app.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := s.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		<-ctx.Done()
		if fn := s.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown crop server")
		}
	}()

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

type presetInfo struct {
	cropper.Preset
	AspectRatio float64 `json:"aspect_ratio"`
}

func (s *Server) presets(c *fiber.Ctx) error {
	presets := cropper.CommonPresets()
	out := make([]presetInfo, len(presets))
	for i, p := range presets {
		out[i] = presetInfo{Preset: p, AspectRatio: p.Ratio()}
	}
	return c.JSON(out)
}

type previewResponse struct {
	cropper.Resolution
	Covered bool `json:"covered"`
}

func (s *Server) preview(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	size := types.Size{Width: req.SourceWidth, Height: req.SourceHeight}
	vp, spec, state, err := req.resolve(s.cropper, size)
	if err != nil {
		return err
	}

	res, err := s.cropper.Resolve(size, vp, spec, state)
	if err != nil {
		return err
	}

	return c.JSON(previewResponse{
		Resolution: res,
		Covered:    coveredFor(res, state, size),
	})
}

func (s *Server) crop(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var params cropParams
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid form: "+err.Error())
	}

	src, err := s.loadSource(ctx, c)
	if err != nil {
		return err
	}

	vp, spec, state, err := params.resolve(s.cropper, src.Size())
	if err != nil {
		return err
	}

	cr := s.cropper
	if params.Format != "" {
		cr = cropper.NewWithConfig(s.cropper.Config(), s.cropper.Rasterizer().WithFormat(params.Format))
	}

	result, err := cr.Commit(ctx, src, vp, spec, state)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Str("source", src.String()).
		Str("state", state.String()).
		Int("width", result.Width).
		Int("height", result.Height).
		Msg("crop served")

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set("X-Crop-Width", fmt.Sprint(result.Width))
	c.Set("X-Crop-Height", fmt.Sprint(result.Height))
	return c.Send(result.Data)
}

// loadSource reads the "image" upload or fetches the "url" field
func (s *Server) loadSource(ctx context.Context, c *fiber.Ctx) (*source.Image, error) {
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, fiber.NewError(http.StatusBadRequest, "cannot open upload: "+err.Error())
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fiber.NewError(http.StatusBadRequest, "cannot read upload: "+err.Error())
		}
		return s.loader.Decode(ctx, data)
	}

	if ref := c.FormValue("url"); ref != "" {
		if !source.IsURL(ref) {
			return nil, fiber.NewError(http.StatusBadRequest, "url must be http or https")
		}
		return s.loader.LoadURL(ctx, ref)
	}

	return nil, fiber.NewError(http.StatusBadRequest, "either an image file or a url is required")
}

// StatusFor maps pipeline errors to HTTP status codes
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, types.ErrInvalidImage), errors.Is(err, types.ErrDegenerateCrop):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrLoadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)

	event := log.Ctx(c.UserContext()).Warn()
	if code >= http.StatusInternalServerError && code != http.StatusBadGateway {
		event = log.Ctx(c.UserContext()).Error()
	}
	event.Err(err).
		Str("path", c.Path()).
		Str("method", c.Method()).
		Int("status", code).
		Msg("Request failed")

	var cropErr *types.CropError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return c.Status(code).JSON(fiber.Map{"error": fiberErr.Message})
	case errors.As(err, &cropErr):
		return c.Status(code).JSON(fiber.Map{"error": cropErr.Error(), "kind": cropErr.Kind.Error()})
	default:
		return c.Status(code).JSON(fiber.Map{"error": "Internal Server Error"})
	}
}
