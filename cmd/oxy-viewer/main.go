// Command oxy-viewer renders a streamed world: it loads the model manifest,
// opens a window and WebGPU device, and applies the world simulator's stream
// to a scene.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cogentcore.org/core/cli"
	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/config"
	"github.com/Carmen-Shannon/oxy-instances/engine"
	"github.com/Carmen-Shannon/oxy-instances/engine/camera"
	"github.com/Carmen-Shannon/oxy-instances/engine/device"
	"github.com/Carmen-Shannon/oxy-instances/engine/editing"
	"github.com/Carmen-Shannon/oxy-instances/engine/loader"
	"github.com/Carmen-Shannon/oxy-instances/engine/scene"
	"github.com/Carmen-Shannon/oxy-instances/engine/stream"
	"github.com/Carmen-Shannon/oxy-instances/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	opts := config.CLIOptions("oxy-viewer", "Renders a world streamed by oxy-worldsim.")
	cli.Run(opts, config.DefaultConfig(), view)
}

// view is the root command.
func view(cfg *config.Config) error {
	common.SetLogger(cfg.Log.NewLogger(os.Stderr))
	log := common.ComponentLogger("viewer")

	if err := run(cfg, log); err != nil {
		log.Error("viewer stopped", "error", err)
		return err
	}
	return nil
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Assets ──────────────────────────────────────────────────────────
	models, err := loader.NewManifestLoader(cfg.Assets.Manifest)
	if err != nil {
		return err
	}
	if err := models.Preload(cfg.Assets.Preload...); err != nil {
		log.Warn("preload incomplete", "error", err)
	}
	if cfg.Assets.Watch {
		if err := models.Watch(ctx); err != nil {
			log.Warn("manifest hot reload disabled", "error", err)
		}
	}

	// ── Window + Device ─────────────────────────────────────────────────
	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := device.NewDevice(win,
		device.WithPresentMode(device.ParsePresentMode(cfg.Window.PresentMode)),
		device.WithMSAA(device.ParseMSAA(cfg.Window.MSAA)),
		device.WithForceSoftwareRenderer(cfg.Window.SoftwareRenderer),
	)
	if err != nil {
		return err
	}
	defer dev.Destroy()

	// ── Camera + Brush ──────────────────────────────────────────────────
	cam := camera.NewCamera(
		camera.WithAspect(float32(win.Width())/float32(max(win.Height(), 1))),
		camera.WithController(camera.NewCameraController(
			camera.WithRadius(150),
			camera.WithRadiusBounds(10, 1500),
		)),
	)
	brush := editing.NewState(editing.WithBrushRadius(cfg.Scene.BrushRadius))

	// ── Scene ───────────────────────────────────────────────────────────
	sceneOptions := []scene.SceneBuilderOption{
		scene.WithDrawBackend(dev),
		scene.WithBrushSource(brush),
		scene.WithReclaimInterval(cfg.Scene.ReclaimInterval()),
	}
	if cfg.Scene.HighlightWorkers > 0 {
		sceneOptions = append(sceneOptions, scene.WithHighlightWorkers(cfg.Scene.HighlightWorkers))
	}
	sc := scene.NewScene(cfg.Scene.Name, models, sceneOptions...)
	if err := sc.Initialize(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sc.Shutdown(shutdownCtx); err != nil {
			log.Error("scene shutdown", "error", err)
		}
	}()

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithDevice(dev),
		engine.WithCamera(cam),
		engine.WithScene(0, sc),
		engine.WithTickRate(cfg.Scene.TickRate),
		engine.WithRenderFrameLimit(cfg.Window.FrameLimit),
		engine.WithProfiling(cfg.Scene.Profile),
	)
	setupInput(win, cam, brush, sc)

	// ── Stream ──────────────────────────────────────────────────────────
	client := stream.NewClient(cfg.Stream.URL,
		stream.NewSceneApplier(sc, func(eye mgl32.Vec3) {
			cam.Controller().SetTarget(mgl32.Vec3{eye.X(), 0, eye.Z()})
		}),
		stream.WithDialRetries(cfg.Stream.DialRetries, dialBackoff),
	)
	go func() {
		if err := client.Connect(ctx); err != nil {
			log.Error("stream unavailable", "error", err)
			return
		}
		<-client.Done()
		log.Info("stream ended", "applied", client.Applied(), "failed", client.Failed())
	}()
	defer client.Close()

	go func() {
		<-ctx.Done()
		eng.Quit()
	}()

	log.Info("viewer running", "scene", sc.Name(), "stream", cfg.Stream.URL)
	eng.Run()

	st := sc.Stats()
	log.Info("viewer stopped", "renderers", st.Renderers, "disposed", st.Disposed, "frames", dev.Frames())
	return nil
}
