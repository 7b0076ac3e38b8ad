package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/thomaskoefod/quakereadr/internal/config"
	"github.com/thomaskoefod/quakereadr/internal/database"
	"github.com/thomaskoefod/quakereadr/internal/feed"
	"github.com/thomaskoefod/quakereadr/internal/georss"
	"github.com/thomaskoefod/quakereadr/internal/logging"
	"github.com/thomaskoefod/quakereadr/internal/metrics"
	"github.com/thomaskoefod/quakereadr/internal/nrcan"
	"github.com/thomaskoefod/quakereadr/internal/raindrop"
	"github.com/thomaskoefod/quakereadr/internal/scheduler"
	"github.com/thomaskoefod/quakereadr/internal/tui"
	"github.com/thomaskoefod/quakereadr/pkg/models"
)

var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", config.DefaultConfigPath(), "path to the configuration file")
		once        = flag.Bool("once", false, "poll the feed once and exit")
		useTUI      = flag.Bool("tui", false, "run the terminal UI")
		showVersion = flag.Bool("version", false, "print the version and exit")
		initConfig  = flag.Bool("init", false, "write a default configuration file and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("quakereadr", version)
		return
	}

	if *initConfig {
		if err := writeDefaultConfig(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "quakereadr:", err)
			os.Exit(1)
		}
		fmt.Println("wrote", *configPath)
		return
	}

	if err := run(*configPath, *once, *useTUI); err != nil {
		fmt.Fprintln(os.Stderr, "quakereadr:", err)
		os.Exit(1)
	}
}

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return config.Save(config.Default(), path)
}

func run(configPath string, once, useTUI bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// the UI owns the terminal, so logs go to a file next to the database
	if useTUI && cfg.Log.Path == "" {
		cfg.Log.Path = filepath.Join(filepath.Dir(cfg.Database.Path), "quakereadr.log")
	}
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger.Info("quakereadr started", "version", version)

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()
	poller, err := buildPoller(cfg, db, m, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		if status := poller.Poll(ctx); status == feed.StatusError {
			return errors.New("feed poll failed")
		}
		return nil
	}

	if cfg.Metrics.Listen != "" {
		server := metrics.NewServer(cfg.Metrics.Listen, m)
		go func() {
			if err := server.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "listen", cfg.Metrics.Listen)
	}

	sched, err := scheduler.New(poller, cfg.Schedule, logger)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	if useTUI {
		return runTUI(ctx, cfg, db, poller, logger)
	}

	<-ctx.Done()
	logger.Info("quakereadr shutting down")
	return nil
}

func buildPoller(cfg *config.Config, db *database.DB, m *metrics.Metrics, logger *log.Logger) (*scheduler.Poller, error) {
	timeout, _ := cfg.Feed.GetTimeout()
	minInterval, _ := cfg.Feed.GetMinInterval()
	retention, _ := cfg.Database.GetEventRetention()

	rec := &recorder{
		db:      db,
		metrics: m,
		logger:  logger.WithPrefix("store"),
		now:     time.Now,
	}

	quakes, err := nrcan.NewFeed(nrcan.Options{
		Home: models.Coordinates{
			Latitude:  cfg.Feed.Home.Latitude,
			Longitude: cfg.Feed.Home.Longitude,
		},
		Language:         cfg.Feed.Language,
		Radius:           cfg.Feed.RadiusKm,
		MinimumMagnitude: cfg.Feed.MinimumMagnitude,
		Transport:        georss.NewHTTPTransport(timeout, cfg.Feed.UserAgent, minInterval),
		Logger:           logger.WithPrefix("feed"),
	})
	if err != nil {
		return nil, err
	}
	manager := feed.NewManager(quakes, rec.generated, rec.updated, rec.removed)
	rec.lookup = manager.Entry
	rec.feedURL = quakes.URL()
	logger.Info("feed configured", "language", quakes.Language(), "home", quakes.Home(), "url", quakes.URL())

	poller := scheduler.NewPoller(manager, m, logger)
	poller.OnSuccess = func(ids []string) {
		rec.reconcile(ids, retention)
	}
	return poller, nil
}

func runTUI(ctx context.Context, cfg *config.Config, db *database.DB, poller *scheduler.Poller, logger *log.Logger) error {
	var saver tui.Saver
	if cfg.Raindrop.APIToken != "" {
		client := raindrop.NewClient(cfg.Raindrop.APIToken, cfg.Raindrop.BaseURL)
		if err := client.TestConnection(ctx); err != nil {
			logger.Warn("raindrop connection failed", "err", err)
		}
		saver = client
	}

	refresh, _ := cfg.UI.GetRefreshInterval()
	p := tea.NewProgram(tui.New(db, poller, saver, refresh), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
