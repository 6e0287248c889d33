// Package app wires the Plated client together with fx.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/config"
	"github.com/matheus3301/plated/internal/credential"
	"github.com/matheus3301/plated/internal/feed"
	"github.com/matheus3301/plated/internal/gamification"
	"github.com/matheus3301/plated/internal/lock"
	"github.com/matheus3301/plated/internal/logging"
	"github.com/matheus3301/plated/internal/messaging"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/outbox"
	"github.com/matheus3301/plated/internal/profile"
	"github.com/matheus3301/plated/internal/realtime"
	"github.com/matheus3301/plated/internal/remote"
	"github.com/matheus3301/plated/internal/reward"
	"github.com/matheus3301/plated/internal/sample"
	"github.com/matheus3301/plated/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	typingTimeout = 6 * time.Second
	cacheMaxAge   = 7 * 24 * time.Hour
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Verbose bool
}

// App exposes the services a front end drives.
type App struct {
	Profile      string
	Self         model.UserSummary
	Config       *config.Config
	Bus          *bus.Bus
	Remote       *remote.Client
	Feed         *feed.Service
	Messaging    *messaging.Service
	Gamification *gamification.Service
}

// Module returns the fx module for the client, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("plated",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideCredentials,
			provideNavigator,
			provideClient,
			provideSelf,
			provideFeed,
			provideMessagingStore,
			provideSender,
			provideMessaging,
			provideRealtime,
			provideVerifier,
			provideRewardEngine,
			provideGamification,
			newApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Resolve(profile.ConfigPath(), profile.EnvPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Verbose)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Debug("acquiring profile lock", zap.String("profile", p.Profile))
	return lock.Acquire(profile.Dir(p.Profile))
}

// provideStore depends on the lock so only one process migrates and
// writes the cache of a profile.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CachePath(p.Profile)
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
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	}
	logger.Debug("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCredentials(p Params) *credential.FileStore {
	return credential.NewFileStore(profile.CredentialPath(p.Profile))
}

func provideNavigator(p Params, logger *zap.Logger) remote.Navigator {
	return remote.NavigatorFunc(func() {
		logger.Warn("signed out, sign in again", zap.String("profile", p.Profile))
	})
}

func provideClient(cfg *config.Config, creds *credential.FileStore, nav remote.Navigator, db *store.DB, b *bus.Bus, logger *zap.Logger) (*remote.Client, error) {
	return remote.New(remote.Options{
		BaseURL:     cfg.BaseURL,
		AuthMode:    cfg.AuthMode,
		Timeout:     cfg.RequestTimeout.Duration,
		Credentials: creds,
		Navigator:   nav,
		Cache:       db,
		Bus:         b,
		Logger:      logger,
	})
}

// provideSelf identifies the local user from the credential's subject.
func provideSelf(creds *credential.FileStore) model.UserSummary {
	if token, ok := creds.Token(); ok {
		if sub, ok := credential.Subject(token); ok {
			return model.UserSummary{ID: sub}
		}
	}
	return model.UserSummary{ID: sample.CurrentUserID}
}

func provideFeed(client *remote.Client, b *bus.Bus, logger *zap.Logger) *feed.Service {
	return feed.NewService(feed.NewStore(feed.State{}, b), client, logger)
}

func provideMessagingStore(b *bus.Bus) *messaging.Store {
	return messaging.NewStore(messaging.State{}, b)
}

func provideSender(st *messaging.Store, client *remote.Client, b *bus.Bus, self model.UserSummary, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(st, client, b, self, logger)
}

func provideMessaging(st *messaging.Store, client *remote.Client, sender *outbox.Sender, logger *zap.Logger) *messaging.Service {
	return messaging.NewService(st, client, sender, logger)
}

func provideRealtime(st *messaging.Store, b *bus.Bus, self model.UserSummary, logger *zap.Logger) *realtime.Engine {
	return realtime.NewEngine(st, b, self.ID, typingTimeout, logger)
}

func provideVerifier(cfg *config.Config) reward.Verifier {
	v := cfg.Verification
	if v.Policy == "seeded" {
		return reward.NewSeededVerifier(uint64(v.Seed), v.SuccessRate)
	}
	return reward.ScoreVerifier{Threshold: v.Threshold}
}

// provideRewardEngine restores the last saved progression, starting a new
// profile from the default one.
func provideRewardEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) (*reward.Engine, error) {
	initial := *sample.RewardSummary()
	body, err := db.LoadRewardSummary()
	if err != nil {
		return nil, err
	}
	if body != nil {
		if err := json.Unmarshal(body, &initial); err != nil {
			return nil, fmt.Errorf("decode saved rewards: %w", err)
		}
	}
	return reward.NewEngine(initial, db, b, logger), nil
}

func provideGamification(engine *reward.Engine, client *remote.Client, v reward.Verifier, b *bus.Bus, logger *zap.Logger) *gamification.Service {
	return gamification.NewService(gamification.NewStore(engine, b), client, v, logger)
}

func newApp(p Params, self model.UserSummary, cfg *config.Config, b *bus.Bus, client *remote.Client, f *feed.Service, m *messaging.Service, g *gamification.Service) *App {
	return &App{
		Profile:      p.Profile,
		Self:         self,
		Config:       cfg,
		Bus:          b,
		Remote:       client,
		Feed:         f,
		Messaging:    m,
		Gamification: g,
	}
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, engine *realtime.Engine, b *bus.Bus, logger *zap.Logger) {
	var stopWatch func()
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if n, err := db.PurgeCache(time.Now().Add(-cacheMaxAge)); err != nil {
				logger.Warn("cache purge failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("purged stale cache entries", zap.Int64("count", n))
			}

			// Start realtime engine (subscribes to remote.* bus events).
			engine.Start(context.Background())
			stopWatch = watchAuth(b, logger)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			engine.Stop()
			if stopWatch != nil {
				stopWatch()
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Debug("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

// watchAuth logs auth failures and fallbacks seen on the bus.
func watchAuth(b *bus.Bus, logger *zap.Logger) func() {
	ch, unsub := b.Subscribe("sync.", 32)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case evt := <-ch:
				switch evt.Kind {
				case bus.KindAuthFailure:
					logger.Warn("credential rejected by backend")
				case bus.KindFallbackUsed:
					logger.Debug("serving fallback data", zap.Any("payload", evt.Payload))
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		unsub()
	}
}
