// Package app assembles the bridge from configuration.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"signalchat/internal/checkpoint"
	"signalchat/internal/config"
	"signalchat/internal/domain"
	"signalchat/internal/fetcher"
	"signalchat/internal/logging"
	"signalchat/internal/notifier"
	"signalchat/internal/worker"
)

// Params carries command-line overrides into the graph.
type Params struct {
	ConfigPath string
	LogLevel   string // overrides log_level when set
	Once       bool   // ignore run.interval
}

// New builds the application. Extra options are appended, typically
// fx.Populate to pull the runner out. fx's own events go to the zap logger
// at debug level, so --log governs them too.
func New(p Params, opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{Module(p), fx.WithLogger(fxLogger)}, opts...)...)
}

func Module(p Params) fx.Option {
	return fx.Module("signalchat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideFetcher,
			provideNotifier,
			provideCheckpoint,
			provideRunner,
		),
	)
}

func fxLogger(logger *zap.Logger) fxevent.Logger {
	l := &fxevent.ZapLogger{Logger: logger.Named("fx")}
	l.UseLogLevel(zapcore.DebugLevel)
	return l
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if p.Once {
		cfg.Run.Interval = 0
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if p.LogLevel != "" {
		level = p.LogLevel
	}
	return logging.New(level)
}

func provideFetcher(cfg *config.Config, logger *zap.Logger) fetcher.Fetcher {
	s := cfg.Signal
	logger.Info("source configured",
		zap.String("endpoint", string(s.Endpoint)),
		zap.String("base_url", s.BaseURL),
		zap.String("org_id", s.OrgID),
	)

	if s.Endpoint == domain.EndpointFeed {
		return fetcher.NewFeed(s.BaseURL)
	}
	return fetcher.NewSignal(s.BaseURL, s.APIKey, s.OrgID, s.Endpoint)
}

func provideNotifier(cfg *config.Config, logger *zap.Logger) notifier.Notifier {
	return notifier.NewGoogleChat(cfg.Notifier.WebhookURL, logger.Named("googlechat"))
}

func provideCheckpoint(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (checkpoint.Store, error) {
	c := cfg.Checkpoint

	if c.Backend != config.BackendRedis {
		logger.Debug("checkpoint file", zap.String("path", c.Path))
		return checkpoint.NewFile(c.Path), nil
	}

	r, err := checkpoint.NewRedis(c.RedisAddr, c.RedisKey)
	if err != nil {
		return nil, err
	}
	logger.Debug("checkpoint redis", zap.String("addr", c.RedisAddr), zap.String("key", c.RedisKey))

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return r.Close()
		},
	})
	return r, nil
}

func provideRunner(f fetcher.Fetcher, n notifier.Notifier, s checkpoint.Store, cfg *config.Config, logger *zap.Logger) *worker.Runner {
	return worker.NewRunner(f, n, s, cfg.Run, logger)
}
