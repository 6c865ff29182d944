package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"pkg.aura.care/moodfeed/internal/api"
	"pkg.aura.care/moodfeed/internal/auth"
	"pkg.aura.care/moodfeed/internal/config"
	"pkg.aura.care/moodfeed/internal/feed"
	"pkg.aura.care/moodfeed/internal/metrics"
	"pkg.aura.care/moodfeed/internal/moodlog"
	"pkg.aura.care/moodfeed/internal/storage"
)

type app struct {
	ctx    context.Context
	cancel context.CancelFunc

	logConf zap.Config
	logger  *zap.Logger

	config *config.Config

	registry *prometheus.Registry
	verifier *auth.Verifier
	storage  storage.Store
	api      *api.API
}

func newApp(ctx context.Context, lcf zap.Config, log *zap.Logger) (*app, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &app{ctx: ctx, cancel: cancel, logConf: lcf, logger: log}
	var err error

	log.Debug("Loading configuration.")
	a.config, err = config.Read()
	if err != nil {
		return nil, fmt.Errorf("couldn't load configuration: %w", err)
	}

	log.Debug("Successfully loaded configuration (also switching log level.)")
	lcf.Level.SetLevel(a.config.Logging.Level)

	log.Debug("Initializing token verifier.")
	a.verifier, err = auth.NewVerifier(a.config.Auth.JWTSecret, a.config.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize token verifier: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return a, nil
}

func (a *app) Run() error {
	a.logger.Sugar().Debugf("Opening %s storage.", a.config.Storage.Driver)
	var err error
	if a.storage, err = openStore(a.ctx, a.logger, a.config); err != nil {
		return fmt.Errorf("couldn't open storage: %s", err)
	}
	defer func() {
		a.logger.Debug("Closing storage.")
		if err := a.storage.Close(); err != nil {
			a.logger.Sugar().Errorf("Couldn't close storage: %s.", err)
		}
		a.logger.Debug("Closed storage.")
	}()
	a.logger.Debug("Successfully opened storage.")

	fc := a.config.Feed
	feeds := feed.NewService(a.storage, a.logger.Named("feed"),
		feed.WithCallTimeout(fc.CallTimeout),
		feed.WithLookupConcurrency(fc.LookupConcurrency),
		feed.WithNoteFilter(fc.NoteFilter),
		feed.WithMetrics(metrics.New(a.registry)),
	)
	moods := moodlog.NewService(a.storage, feeds, a.logger.Named("moodlog"))

	ac := a.config.Api
	a.api = api.NewAPI(a.ctx, a.logger.Named("api").Sugar(), feeds, moods, a.verifier, a.registry,
		api.NewConfig(ac.Port, ac.AllowedOrigins, fc.DefaultLimit))

	a.logger.Sugar().Debugf("Starting API on port %d.", ac.Port)
	a.api.Listen()
	defer func() {
		a.logger.Debug("Closing API.")
		if err := a.api.Close(); err != nil {
			a.logger.Sugar().Errorf("Couldn't close API: %s.", err)
		}
		a.logger.Debug("Closed API.")
	}()

	a.logger.Info("Launch complete. Send SIGINT to gracefully terminate.")
	<-a.ctx.Done()
	a.logger.Info("SIGINT received, terminating.")

	return a.ctx.Err()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	lcf := zap.NewDevelopmentConfig() // to later switch level without reallocation
	lcf.Level.SetLevel(zapcore.DebugLevel)
	lcf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	lcf.DisableCaller = true
	log, _ := lcf.Build()
	defer func() { _ = log.Sync() }()

	log.Info("Initializing application.")
	a, err := newApp(ctx, lcf, log)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Sugar().Fatalf("Couldn't initialize application: %s.", err)
		}

		return
	}
	defer a.cancel()

	log.Debug("Initialization tasks complete, continuing with launch.")
	if err := a.Run(); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Sugar().Fatalf("Application crashed: %s.", err)
		}
	}
}
