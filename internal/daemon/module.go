package daemon

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/config"
	"github.com/dmelo/supportdesk/internal/lock"
	"github.com/dmelo/supportdesk/internal/logging"
	"github.com/dmelo/supportdesk/internal/notify"
	"github.com/dmelo/supportdesk/internal/outbox"
	"github.com/dmelo/supportdesk/internal/profile"
	"github.com/dmelo/supportdesk/internal/rest"
	"github.com/dmelo/supportdesk/internal/rt"
	"github.com/dmelo/supportdesk/internal/status"
	"github.com/dmelo/supportdesk/internal/store"
	intsync "github.com/dmelo/supportdesk/internal/sync"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the headless agent, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideCache,
			provideClient,
			provideNotifier,
			provideSyncEngine,
			provideSender,
			provideManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCache(b *bus.Bus) *cache.Cache {
	return cache.New(b)
}

func provideClient(p Params, cfg *config.Config, logger *zap.Logger) (*rest.Client, error) {
	cookies, err := profile.LoadCookies(p.ProfileName)
	if err != nil {
		return nil, err
	}
	return rest.New(cfg.APIBase,
		rest.WithLogger(logger),
		rest.WithCookies(cookies),
		rest.WithAuthFailureHandler(func() {
			_ = profile.ClearCookies(p.ProfileName)
		}),
	)
}

func provideNotifier(logger *zap.Logger) intsync.Notifier {
	return notify.NewDesktop(logger)
}

func provideSyncEngine(c *cache.Cache, db *store.DB, b *bus.Bus, api *rest.Client, notifier intsync.Notifier, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(c, db, b, api, notifier, logger)
}

func provideSender(db *store.DB, c *cache.Cache, api *rest.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, c, api, b, logger)
}

func provideManager(cfg *config.Config, api *rest.Client, b *bus.Bus, machine *status.Machine, engine *intsync.Engine, logger *zap.Logger) *rt.Manager {
	opts := rt.Options{
		URL:               cfg.SocketURL,
		ConnectTimeout:    cfg.ConnectTimeout(),
		PollInterval:      cfg.PollInterval(),
		ReconnectAttempts: cfg.ReconnectAttempts,
		HTTPClient:        api.WSClient(),
	}
	return rt.NewManager(opts, b, machine, engine.PollNotifications, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, api *rest.Client, engine *intsync.Engine, sender *outbox.Sender, manager *rt.Manager, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			sender.Start(context.Background())

			// Resolve the session user, then bring up the transport. A
			// missing session leaves the agent idle until login.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				me, err := api.Me(ctx)
				if err != nil {
					logger.Info("no active session, transport not started", zap.Error(err))
					return
				}
				userID := me.ID()
				engine.SetUser(userID)
				sender.SetUser(userID)
				logger.Info("session resolved", zap.String("user_id", userID))
				manager.Start(context.Background(), userID)
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			manager.Close()
			sender.Stop()
			engine.Stop()
			_ = db.Close()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("agent stopped")
			return nil
		},
	})
}
