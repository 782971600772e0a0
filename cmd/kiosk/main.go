package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"scankiosk/internal/config"
	"scankiosk/internal/console"
	"scankiosk/internal/input"
	"scankiosk/internal/kiosk"
	"scankiosk/internal/mapping"
	"scankiosk/internal/panel"
	"scankiosk/internal/playback"
	"scankiosk/internal/server"
)

func main() {
	var cfgPath string
	var mappingPath string
	var stdin bool

	flag.StringVar(&cfgPath, "config", "kiosk.yaml", "Path to kiosk settings YAML")
	flag.StringVar(&mappingPath, "mapping", "", "Path to the code mapping document (overrides settings)")
	flag.BoolVar(&stdin, "stdin", false, "Also read scanner lines from the terminal")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load settings")
	}
	if mappingPath != "" {
		cfg.Mapping.Path = mappingPath
	}
	if stdin {
		cfg.Input.Stdin = true
	}

	// Logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Input.Stdin {
		// keep the terminal readable for the operator
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	log.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := mapping.NewStore(cfg.Mapping.Path, log.With().Str("component", "mapping").Logger())
	player := playback.NewExecPlayer(playback.ExecConfig{
		Command:     cfg.Player.Command,
		Args:        cfg.Player.Args,
		BaseDir:     store.Dir(),
		StopTimeout: cfg.Player.StopTimeout.ToDuration(),
	}, log.With().Str("component", "player").Logger())

	labels := panel.NewLabels(cfg.UI.Labels)

	var srv *server.Server
	var focuser input.Focuser
	if cfg.Server.Enabled {
		srv = server.New(server.Config{
			Bind:              cfg.Server.Bind,
			Port:              cfg.Server.Port,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.ToDuration(),
			Title:             cfg.UI.Title,
			Labels:            labels,
		}, log.With().Str("component", "http").Logger())
		focuser = srv
	}

	app := kiosk.New(kiosk.Config{KeepFocus: cfg.Input.KeepFocus}, store, player, focuser, log.Logger)
	if srv != nil {
		app.Panel().Subscribe(srv)
	}
	if cfg.Input.Stdin {
		app.Panel().Subscribe(console.NewPrinter(os.Stdout, labels))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.Run(gctx) })

	if srv != nil {
		g.Go(func() error { return srv.Start(gctx, app) })
		log.Info().Str("addr", srv.Addr()).Msg("kiosk page ready")
	}

	if cfg.Input.Stdin {
		g.Go(func() error {
			err := console.NewReader(os.Stdin, app, log.With().Str("component", "console").Logger()).Run(gctx)
			if err == nil && srv == nil {
				// terminal-only kiosk ends with its input
				cancel()
			}
			return err
		})
	}

	// Manual reload: there is no automatic retry after a failed load.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := app.Reload(gctx); err != nil {
					log.Error().Err(err).Msg("reload failed")
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("kiosk stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("shutting down")
}
