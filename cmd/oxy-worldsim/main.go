// Command oxy-worldsim serves a persistent world over the instance stream.
// It seeds a SQLite placement store on first run, then circles a virtual
// viewer through it and broadcasts Place, Remove, ViewChanged and Visible
// messages to every connected oxy-viewer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cogentcore.org/core/cli"
	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/Carmen-Shannon/oxy-instances/config"
	"github.com/Carmen-Shannon/oxy-instances/engine/stream"
	"github.com/Carmen-Shannon/oxy-instances/engine/world"
	"golang.org/x/sync/errgroup"
)

func main() {
	opts := config.CLIOptions("oxy-worldsim", "Serves a persistent world over the instance stream.")
	cli.Run(opts, config.DefaultConfig(), serve)
}

// serve is the root command.
func serve(cfg *config.Config) error {
	common.SetLogger(cfg.Log.NewLogger(os.Stderr))
	log := common.ComponentLogger("worldsim")

	if err := run(cfg, log); err != nil {
		log.Error("worldsim stopped", "error", err)
		return err
	}
	return nil
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := world.Open(cfg.World.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 || cfg.World.Reseed {
		if _, err := store.Seed(ctx, world.SeedConfig{
			Count:  cfg.World.SeedCount,
			Models: cfg.World.Models,
			Extent: cfg.World.Extent,
			Seed:   cfg.World.Seed + uint64(n),
		}); err != nil {
			return err
		}
	}

	var sim *simulator
	srv := stream.NewServer(stream.WithSnapshot(func() []stream.Message { return sim.Snapshot() }))
	sim = newSimulator(store, srv, cfg.World.ViewRadius, cfg.World.Extent/2, cfg.World.OrbitSpeed, log)

	mux := http.NewServeMux()
	mux.Handle(cfg.Stream.Path, srv)
	httpServer := &http.Server{
		Addr:              cfg.Stream.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sim.run(ctx, cfg.World.UpdateHz)
	})
	g.Go(func() error {
		log.Info("serving stream", "addr", cfg.Stream.Listen, "path", cfg.Stream.Path)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		// Websocket connections are hijacked; http.Server.Shutdown does not close them.
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
