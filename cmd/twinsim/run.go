package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/config"
	"github.com/twinsim/twinsim/internal/core/event"
	coresys "github.com/twinsim/twinsim/internal/core/system"
	"github.com/twinsim/twinsim/internal/handshake"
	gonet "github.com/twinsim/twinsim/internal/net"
	"github.com/twinsim/twinsim/internal/persist"
	"github.com/twinsim/twinsim/internal/plant"
	"github.com/twinsim/twinsim/internal/render"
	"github.com/twinsim/twinsim/internal/scripting"
	"github.com/twinsim/twinsim/internal/sim"
	"github.com/twinsim/twinsim/internal/system"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		layoutPath   string
		fromSnapshot bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a layout and run the simulation until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if layoutPath != "" {
				cfg.Layout.Path = layoutPath
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg, fromSnapshot)
		},
	}
	cmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "layout file, overrides layout.path")
	cmd.Flags().BoolVar(&fromSnapshot, "snapshot", false, "start from the latest stored snapshot instead of the layout file")
	return cmd
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, fromSnapshot bool) error {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(out, cfg.Layout.Path)

	// 1. Storage
	printSection(out, "Storage")
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, err := persist.Open(openCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if store != nil {
		defer store.Close()
		printOK(out, fmt.Sprintf("%s store ready, migrations applied", cfg.Database.Driver))
	} else {
		printOK(out, "persistence disabled")
	}
	fmt.Fprintln(out)

	// 2. World and renderer
	var (
		renderer    sim.Renderer = sim.NopRenderer{}
		broadcaster *render.Broadcaster
		flusher     system.Flusher
	)
	if cfg.Viewer.Enabled {
		broadcaster = render.NewBroadcaster(log)
		renderer, flusher = broadcaster, broadcaster
	}
	w := sim.NewWorld(log, sim.WithRenderer(renderer), sim.WithLayers(cfg.Sim.Layers))
	// Clear closes every module endpoint, which stops the handshake worker.
	defer w.Clear()

	// 3. Layout
	printSection(out, "Layout")
	rec, source, err := loadLayout(openCtx, cfg, store, fromSnapshot)
	if err != nil {
		return err
	}
	loaded, err := persist.Load(w, &plant.Codecs, w.Root(), rec)
	if err != nil {
		return fmt.Errorf("load layout %s: %w", source, err)
	}
	modules := plant.Modules(w)
	printOK(out, "loaded "+source)
	printStat(out, "entities", len(loaded))
	printStat(out, "modules", len(modules))

	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	if err := engine.Load(w); err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	printStat(out, "module scripts", engine.Attached())
	fmt.Fprintln(out)

	// 4. Exchange endpoints
	printSection(out, "Exchange")
	worker := handshake.NewWorker(log)
	for _, m := range modules {
		if m.Endpoint == "" {
			continue
		}
		srv, err := gonet.NewServer(m.Endpoint, m.Name, m.Vars, cfg.Exchange, worker, log)
		if err != nil {
			return fmt.Errorf("module %s endpoint %s: %w", m.Name, m.Endpoint, err)
		}
		srv.Start()
		m.Channel = srv
		printReady(out, fmt.Sprintf("%s on %s", m.Name, srv.Addr()))
	}
	printStat(out, "endpoints", worker.Channels())
	fmt.Fprintln(out)

	// 5. Systems
	bus := event.NewBus()
	event.Subscribe(bus, func(ev event.SnapshotSaved) {
		log.Info("layout snapshot saved",
			zap.String("id", ev.ID),
			zap.String("name", ev.Name),
			zap.Int("entities", ev.Entities))
	})

	runner := coresys.NewRunner(log)
	runner.Register(system.NewNotifySystem(bus))
	if broadcaster != nil {
		runner.Register(system.NewViewerSystem(w, broadcaster, log))
	}
	system.RegisterWorld(runner, w, flusher)
	runner.Register(system.NewLogicSystem(w, engine))
	runner.Register(system.NewHandshakeSystem(w, bus, log))

	var persistence *system.PersistenceSystem
	if store != nil {
		persistence = system.NewPersistenceSystem(w, &plant.Codecs, store, bus, cfg.Layout.SnapshotName, cfg.Layout.AutosaveTicks, log)
		runner.Register(persistence)
	}

	// 6. Tick loop
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection(out, "Running")
	if broadcaster != nil {
		go func() {
			if err := broadcaster.ListenAndServe(ctx, cfg.Viewer.BindAddress); err != nil {
				log.Error("viewer server failed", zap.Error(err))
			}
		}()
		printReady(out, fmt.Sprintf("viewer on http://%s/", cfg.Viewer.BindAddress))
	}
	printReady(out, fmt.Sprintf("tick loop started (tick: %s)", cfg.Sim.TickRate))
	fmt.Fprintln(out)

	runner.Run(ctx, cfg.Sim.TickRate, cfg.Sim.Adaptive)
	log.Info("shutdown signal received", zap.Uint64("tick", w.Ticks()))

	if persistence != nil {
		if _, err := persistence.SaveNow(); err != nil {
			log.Error("final snapshot failed", zap.Error(err))
		}
	}
	log.Info("simulation stopped")
	return nil
}

// loadLayout reads the configured layout file, or the latest snapshot when
// fromSnapshot is set. It also returns a description of the source.
func loadLayout(ctx context.Context, cfg *config.Config, store persist.Store, fromSnapshot bool) (persist.Record, string, error) {
	if !fromSnapshot {
		rec, err := persist.ReadFile(cfg.Layout.Path)
		if err != nil {
			return persist.Record{}, "", fmt.Errorf("layout %s: %w", cfg.Layout.Path, err)
		}
		return rec, cfg.Layout.Path, nil
	}
	if store == nil {
		return persist.Record{}, "", errors.New("--snapshot needs a database driver")
	}
	snap, err := store.LatestSnapshot(ctx, cfg.Layout.SnapshotName)
	if err != nil {
		return persist.Record{}, "", fmt.Errorf("snapshot %q: %w", cfg.Layout.SnapshotName, err)
	}
	return snap.Layout, fmt.Sprintf("snapshot %s (tick %d)", snap.ID, snap.Tick), nil
}

// signalContext is used by the client commands, which only need SIGINT.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
