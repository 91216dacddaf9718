package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	cropengine "github.com/menta2k/crop-engine"
	"github.com/menta2k/crop-engine/internal/config"
	"github.com/menta2k/crop-engine/internal/utils"
	"github.com/menta2k/crop-engine/pkg/cropper"
	"github.com/menta2k/crop-engine/pkg/raster"
	"github.com/menta2k/crop-engine/pkg/server"
	"github.com/menta2k/crop-engine/pkg/source"
	"github.com/menta2k/crop-engine/pkg/types"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

type cliArgs struct {
	Config  string           `help:"Path to the JSON config file" type:"path" default:"${config_path}"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `help:"Print the version and exit"`

	Crop    cropCmd    `cmd:"" help:"Crop images the way the upload widget framed them"`
	Presets presetsCmd `cmd:"" help:"List the named crop presets"`
	Serve   serveCmd   `cmd:"" help:"Run the HTTP crop service"`
	Init    initCmd    `cmd:"" help:"Write the default config file"`
}

// appContext is bound to every command's Run method
type appContext struct {
	ctx        context.Context
	configPath string
}

func (a *appContext) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("crop-engine"),
		kong.Description("Commit zoom/pan crops of images at full source resolution."),
		kong.UsageOnError(),
		kong.Vars{
			"config_path": config.GetConfigPath(),
			"version":     cropengine.GetVersion(),
		},
	)

	level := zerolog.InfoLevel
	if args.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx = log.Logger.WithContext(ctx)

	return cliCtx.Run(&appContext{ctx: ctx, configPath: args.Config})
}

type cropCmd struct {
	Inputs   []string `arg:"" help:"Image files, directories or http(s) URLs"`
	Out      string   `short:"o" help:"Output directory (default from config)"`
	Preset   []string `short:"p" help:"Named presets to commit (see 'presets')" default:"square"`
	Aspect   string   `help:"Custom aspect ratio such as 16:9 or 1.5, replaces --preset"`
	Shape    string   `help:"Shape for --aspect" enum:"rectangle,circle" default:"rectangle"`
	Viewport string   `help:"Viewport the image was shown in, as WxH (default: natural image size)"`
	Zoom     float64  `help:"Zoom factor" default:"1"`
	PanX     float64  `name:"pan-x" help:"Horizontal pan in viewport units"`
	PanY     float64  `name:"pan-y" help:"Vertical pan in viewport units"`
	Format   string   `short:"f" help:"Output format: jpg, png or webp (default from config)"`
	Quality  int      `short:"q" help:"JPEG/WebP quality 1-100 (default from config)"`
	Debug    bool     `help:"Also write an overlay showing the committed rectangle"`
	JSON     bool     `help:"Print results as JSON lines"`
}

func (cmd *cropCmd) Run(app *appContext) error {
	ctx := app.ctx

	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Format != "" {
		cfg.Output.Format = cmd.Format
	}
	if cmd.Quality != 0 {
		cfg.Output.Quality = cmd.Quality
	}
	if cmd.Out != "" {
		cfg.Output.OutputDir = cmd.Out
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	variants, err := cmd.variants()
	if err != nil {
		return err
	}
	vp, err := parseViewport(cmd.Viewport)
	if err != nil {
		return err
	}
	inputs, err := expandInputs(cmd.Inputs)
	if err != nil {
		return err
	}

	engine := cropengine.NewWithConfig(cfg.SourceConfig(), cfg.RasterConfig(), cfg.CropperConfig())
	state := engine.NewState().SetZoom(cmd.Zoom).SetPan(types.Point{X: cmd.PanX, Y: cmd.PanY})
	opts := cropengine.ProcessOptions{
		OutputDir: cfg.Output.OutputDir,
		Prefix:    cfg.Output.Prefix,
		Suffix:    cfg.Output.Suffix,
		Viewport:  vp,
		State:     state,
		Variants:  variants,
	}

	log.Ctx(ctx).Debug().
		Int("inputs", len(inputs)).
		Str("state", state.String()).
		Str("format", cfg.Output.Format).
		Msg("Starting crop")

	failed := 0
	for _, in := range inputs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := time.Now()
		src, err := engine.LoadSource(ctx, in)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("input", in).Msg("Load failed")
			failed++
			continue
		}
		outputs, err := engine.ProcessSource(ctx, src, in, opts)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("input", in).Msg("Crop failed")
			failed++
			continue
		}

		if cmd.JSON {
			printJSONL(outputs)
		} else {
			for _, out := range outputs {
				log.Ctx(ctx).Info().
					Str("input", in).
					Str("variant", out.Variant).
					Str("size", fmt.Sprintf("%dx%d", out.Width, out.Height)).
					Str("bytes", utils.FormatFileSize(int64(out.Bytes))).
					Dur("took", time.Since(start)).
					Msgf("wrote %s", out.Path)
			}
		}

		if cmd.Debug {
			if err := writeDebugOverlay(ctx, engine, src, in, opts); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("input", in).Msg("Debug overlay failed")
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(inputs))
	}
	return nil
}

func (cmd *cropCmd) variants() ([]cropengine.Variant, error) {
	if cmd.Aspect != "" {
		ratio, err := cropper.ParseAspectRatio(cmd.Aspect)
		if err != nil {
			return nil, err
		}
		shape, err := types.ParseShape(cmd.Shape)
		if err != nil {
			return nil, err
		}
		return []cropengine.Variant{{
			Name: "custom",
			Spec: types.CropSpec{AspectRatio: ratio, Shape: shape},
		}}, nil
	}

	presets := make([]cropper.Preset, 0, len(cmd.Preset))
	for _, name := range cmd.Preset {
		p, err := cropper.ParsePreset(name)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return cropengine.PresetVariants(presets...), nil
}

// writeDebugOverlay writes the first variant's overlay next to the crops
func writeDebugOverlay(ctx context.Context, engine *cropengine.Engine, src *source.Image, ref string, opts cropengine.ProcessOptions) error {
	vp := opts.Viewport
	if vp == (types.Viewport{}) {
		vp = types.Viewport{Width: float64(src.Size().Width), Height: float64(src.Size().Height)}
	}

	overlay, err := engine.DebugOverlay(src, vp, opts.Variants[0].Spec, opts.State)
	if err != nil {
		return err
	}

	path := utils.OutputFilename(ref, opts.OutputDir, opts.Prefix, opts.Suffix, "debug", raster.FormatPNG)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := (raster.Encoder{Format: raster.FormatPNG}).Encode(f, overlay); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Msgf("wrote %s", path)
	return nil
}

// parseViewport parses "WxH"; an empty string yields the zero viewport
func parseViewport(s string) (types.Viewport, error) {
	if s == "" {
		return types.Viewport{}, nil
	}
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return types.Viewport{}, fmt.Errorf("invalid viewport %q, expected WxH", s)
	}
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil {
		return types.Viewport{}, fmt.Errorf("invalid viewport width %q: %w", ws, err)
	}
	h, err := strconv.ParseFloat(hs, 64)
	if err != nil {
		return types.Viewport{}, fmt.Errorf("invalid viewport height %q: %w", hs, err)
	}
	if w <= 0 || h <= 0 {
		return types.Viewport{}, fmt.Errorf("viewport %q must be positive", s)
	}
	return types.Viewport{Width: w, Height: h}, nil
}

// expandInputs replaces directories with the images they contain
func expandInputs(refs []string) ([]string, error) {
	var inputs []string
	for _, ref := range refs {
		if !source.IsURL(ref) && utils.DirExists(ref) {
			files, err := utils.ListImageFiles(ref)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", ref, err)
			}
			inputs = append(inputs, files...)
			continue
		}
		inputs = append(inputs, ref)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input images found")
	}
	return inputs, nil
}

type presetsCmd struct {
	JSON bool `help:"Print presets as JSON lines"`
}

func (cmd *presetsCmd) Run() error {
	presets := cropper.CommonPresets()
	if cmd.JSON {
		printJSONL(presets)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRATIO\tSHAPE")
	for _, p := range presets {
		fmt.Fprintf(w, "%s\t%d:%d\t%s\n", p.Name, p.Width, p.Height, p.Shape)
	}
	return w.Flush()
}

type serveCmd struct {
	Addr string `help:"Listen address (default from config)"`
}

func (cmd *serveCmd) Run(app *appContext) error {
	ctx := app.ctx

	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Addr != "" {
		cfg.Server.Addr = cmd.Addr
	}

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
		},
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down crop server...")
		},
	},
		source.NewWithConfig(cfg.SourceConfig()),
		cropper.NewWithConfig(cfg.CropperConfig(), raster.NewWithConfig(cfg.RasterConfig())),
	)

	return srv.Run(ctx)
}

type initCmd struct {
	Force bool `help:"Overwrite an existing config file"`
}

func (cmd *initCmd) Run(app *appContext) error {
	if _, err := os.Stat(app.configPath); err == nil && !cmd.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", app.configPath)
	}
	if err := config.Default().SaveToFile(app.configPath); err != nil {
		return err
	}
	log.Ctx(app.ctx).Info().Msgf("wrote %s", app.configPath)
	return nil
}

func printJSONL[T any](data []T) {
	enc := json.NewEncoder(os.Stdout)
	for _, item := range data {
		if err := enc.Encode(item); err != nil {
			log.Error().Err(err).Msg("Failed to encode item to JSON")
			continue
		}
	}
}
