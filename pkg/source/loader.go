// Package source loads and decodes the image a crop session works on.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/crop-engine/pkg/types"
)

// Image is a decoded source image. It is never modified after decode.
type Image struct {
	img    image.Image
	format string
}

// NewImage wraps an already decoded image
func NewImage(img image.Image, format string) (*Image, error) {
	if img == nil {
		return nil, types.Errorf(types.ErrInvalidImage, "nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, types.Errorf(types.ErrInvalidImage, "image size %dx%d", b.Dx(), b.Dy())
	}
	return &Image{img: img, format: format}, nil
}

// Image returns the decoded pixels
func (i *Image) Image() image.Image { return i.img }

// Format is the name of the decoder that produced the image
func (i *Image) Format() string { return i.format }

// Size returns the image dimensions in pixels
func (i *Image) Size() types.Size {
	b := i.img.Bounds()
	return types.Size{Width: b.Dx(), Height: b.Dy()}
}

// Config holds limits for loading source images
type Config struct {
	MaxBytes         int64
	MaxDimension     int
	HTTPTimeout      time.Duration
	UserAgent        string
	SupportedFormats []string
	AutoOrientation  bool
}

// DefaultConfig returns the loader defaults
func DefaultConfig() Config {
	return Config{
		MaxBytes:         25 << 20,
		MaxDimension:     12000,
		HTTPTimeout:      30 * time.Second,
		UserAgent:        "crop-engine/1.0",
		SupportedFormats: []string{"jpeg", "png", "gif", "webp"},
		AutoOrientation:  true,
	}
}

// Loader reads source images from files, URLs or raw bytes
type Loader struct {
	config Config
	client *http.Client
}

// New creates a Loader with default configuration
func New() *Loader {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Loader with custom configuration
func NewWithConfig(config Config) *Loader {
	return &Loader{
		config: config,
		client: &http.Client{Timeout: config.HTTPTimeout},
	}
}

// SetHTTPClient replaces the client used for URL sources
func (l *Loader) SetHTTPClient(client *http.Client) {
	l.client = client
}

// IsURL reports whether ref should be fetched over http(s)
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Load loads an image from either a file path or URL
func (l *Loader) Load(ctx context.Context, ref string) (*Image, error) {
	if IsURL(ref) {
		return l.LoadURL(ctx, ref)
	}
	return l.LoadFile(ctx, ref)
}

// LoadFile reads and decodes an image file
func (l *Loader) LoadFile(ctx context.Context, path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.Wrap(types.ErrLoadFailed, err, "open file")
	}
	defer f.Close()

	data, err := l.readAll(f)
	if err != nil {
		return nil, err
	}
	return l.Decode(ctx, data)
}

// LoadURL downloads and decodes an image
func (l *Loader) LoadURL(ctx context.Context, imageURL string) (*Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, types.Wrap(types.ErrLoadFailed, err, "invalid URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, types.Errorf(types.ErrLoadFailed, "unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, types.Wrap(types.ErrLoadFailed, err, "create request")
	}
	req.Header.Set("User-Agent", l.config.UserAgent)

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, types.Wrap(types.ErrLoadFailed, err, "download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.Errorf(types.ErrLoadFailed, "download image: HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, types.Errorf(types.ErrLoadFailed, "URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := l.readAll(resp.Body)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().
		Str("url", parsedURL.Redacted()).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("fetched source image")

	return l.Decode(ctx, data)
}

// Decode decodes raw image bytes. Decoding runs on its own goroutine so a
// cancelled ctx returns immediately; the abandoned result is discarded.
func (l *Loader) Decode(ctx context.Context, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, types.Errorf(types.ErrInvalidImage, "empty image data")
	}
	if err := ctx.Err(); err != nil {
		return nil, types.Wrap(types.ErrLoadFailed, err, "decode abandoned")
	}

	type decoded struct {
		img *Image
		err error
	}
	done := make(chan decoded, 1)
	go func() {
		img, err := l.decode(data)
		done <- decoded{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, types.Wrap(types.ErrLoadFailed, ctx.Err(), "decode abandoned")
	case d := <-done:
		if d.err != nil {
			return nil, d.err
		}
		log.Ctx(ctx).Debug().
			Str("format", d.img.Format()).
			Int("width", d.img.Size().Width).
			Int("height", d.img.Size().Height).
			Msg("decoded source image")
		return d.img, nil
	}
}

func (l *Loader) decode(data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// image.DecodeConfig cannot see every WebP variant; try the libwebp decoder
		img, werr := webp.Decode(bytes.NewReader(data))
		if werr != nil {
			return nil, types.Wrap(types.ErrInvalidImage, err, "unknown or unsupported format")
		}
		if err := l.checkDimensions(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
			return nil, err
		}
		return NewImage(img, "webp")
	}

	if !l.isFormatSupported(format) {
		return nil, types.Errorf(types.ErrInvalidImage, "unsupported image format: %s", format)
	}
	if err := l.checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(l.config.AutoOrientation))
	if err != nil {
		return nil, types.Wrap(types.ErrInvalidImage, err, "decode "+format)
	}
	return NewImage(img, format)
}

func (l *Loader) checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return types.Errorf(types.ErrInvalidImage, "image size %dx%d", width, height)
	}
	if l.config.MaxDimension > 0 && (width > l.config.MaxDimension || height > l.config.MaxDimension) {
		return types.Errorf(types.ErrInvalidImage, "image too large: %dx%d (maximum: %d)", width, height, l.config.MaxDimension)
	}
	return nil
}

func (l *Loader) readAll(r io.Reader) ([]byte, error) {
	if l.config.MaxBytes > 0 {
		r = io.LimitReader(r, l.config.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, types.Wrap(types.ErrLoadFailed, err, "read image data")
	}
	if l.config.MaxBytes > 0 && int64(len(data)) > l.config.MaxBytes {
		return nil, types.Errorf(types.ErrLoadFailed, "image exceeds %d bytes", l.config.MaxBytes)
	}
	return data, nil
}

func (l *Loader) isFormatSupported(format string) bool {
	if len(l.config.SupportedFormats) == 0 {
		return true
	}
	for _, supported := range l.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// IsCancelled reports whether err came from an abandoned load
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (i *Image) String() string {
	s := i.Size()
	return fmt.Sprintf("%s %dx%d", i.format, s.Width, s.Height)
}
