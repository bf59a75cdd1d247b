package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/config"
	"treasure-quest-service/internal/domain"
	"treasure-quest-service/internal/infra/file"
	"treasure-quest-service/internal/infra/memory"
	"treasure-quest-service/internal/infra/postgres"
	infraredis "treasure-quest-service/internal/infra/redis"
	"treasure-quest-service/internal/infra/sqlite"
	"treasure-quest-service/internal/lib/slogcustom"
	transport "treasure-quest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the treasure quest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	logger := slogcustom.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// backends holds the optional external connections; nil fields are not configured.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	db    *bun.DB
}

func connectBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.pool = pool
		b.db = openBunDB(cfg.Postgres.URL)
	}
	return b, nil
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var loader memory.LevelLoader = memory.NewStaticLevelLoader(sampleLevels())
	var settings app.SettingsSource = memory.StaticSettings{DurationMinutes: cfg.Game.DurationMinutes}
	if b.pool != nil {
		loader = postgres.NewLevelLoader(b.pool)
		settings = postgres.NewSettingsStore(b.pool)
	}

	levelsTTL := config.TTLDuration(cfg.Levels.TTL, 10*time.Minute)
	var levels app.LevelRepository
	if b.redis != nil {
		levels = infraredis.NewLevelRepository(b.redis, loader, levelsTTL)
	} else {
		levels = memory.NewLevelRepository(loader, levelsTTL)
	}

	snapshots, cleanup, err := buildSnapshotStore(cfg, b, logger)
	if err != nil {
		return err
	}

	store, closeStore, err := buildLeaderboardStore(cfg, b)
	if err != nil {
		return err
	}
	defer closeStore.Close()

	loc, err := cfg.Leaderboard.Location()
	if err != nil {
		return err
	}
	var notifier app.ChangeNotifier = memory.NewHub()
	var runs app.RunRegistry = memory.NewRunRegistry()
	if b.redis != nil {
		notifier = infraredis.NewHub(b.redis, logger)
		runs = infraredis.NewRunRegistry(b.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	}
	board := app.NewLeaderboard(store, notifier, loc, logger)

	service := app.NewGameService(app.GameServiceDeps{
		Runs:        runs,
		Levels:      levels,
		Settings:    settings,
		Snapshots:   snapshots,
		Leaderboard: board,
		Logger:      logger,
	})
	wsHandler := transport.NewWSHandler(service, transport.WSOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TickInterval:   config.TTLDuration(cfg.Server.TickInterval, transport.DefaultTickInterval),
		Logger:         logger,
	})
	gate := app.NewAdminGate(cfg.Game.AdminPasswordHash, cfg.Game.AdminPassword)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	transport.NewLeaderboardHandler(board, gate, logger).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting treasure quest service", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cleanup != nil {
		g.Go(func() error {
			app.RunTicker(gctx, time.Hour, func(ctx context.Context) bool {
				if _, err := cleanup.Cleanup(ctx); err != nil {
					logger.Warn("snapshot cleanup failed", slog.Any("err", err))
				}
				return true
			})
			return nil
		})
	}
	return g.Wait()
}

// buildSnapshotStore picks the snapshot medium. The file store is also returned as the
// cleanup target so stale files are swept periodically.
func buildSnapshotStore(cfg config.Config, b *backends, logger *slog.Logger) (app.SnapshotStore, *file.SnapshotStore, error) {
	ttl := config.TTLDuration(cfg.Snapshots.TTL, 24*time.Hour)
	backend := cfg.Snapshots.Backend
	if backend == "" {
		backend = "memory"
		if b.redis != nil {
			backend = "redis"
		}
	}
	switch backend {
	case "memory":
		return memory.NewSnapshotStore(), nil, nil
	case "redis":
		if b.redis == nil {
			return nil, nil, fmt.Errorf("snapshots.backend=redis requires redis.addr")
		}
		return infraredis.NewSnapshotStore(b.redis, ttl), nil, nil
	case "file":
		dir := cfg.Snapshots.Dir
		if dir == "" {
			dir = "data/sessions"
		}
		store, err := file.NewSnapshotStore(dir, ttl, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unknown snapshots.backend %q", backend)
}

// buildLeaderboardStore picks the leaderboard backend; the closer releases sqlite handles.
func buildLeaderboardStore(cfg config.Config, b *backends) (app.LeaderboardStore, io.Closer, error) {
	backend := cfg.Leaderboard.Backend
	if backend == "" {
		backend = "memory"
		if b.db != nil {
			backend = "postgres"
		}
	}
	switch backend {
	case "memory":
		return memory.NewLeaderboardStore(), nopCloser{}, nil
	case "postgres":
		if b.db == nil {
			return nil, nil, fmt.Errorf("leaderboard.backend=postgres requires postgres.url")
		}
		return postgres.NewLeaderboardStore(b.db), nopCloser{}, nil
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = "data/leaderboard.db"
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unknown leaderboard.backend %q", backend)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// sampleLevels is the built-in riddle set used when no database is configured.
func sampleLevels() []domain.Level {
	return []domain.Level{
		{
			Number: 1,
			Prompt: "This Indian company provides CRM, mail, and office tools rivaling global giants.",
			Answer: "zoho", Hint: "Think of a company from Chennai that starts with 'Z'...", HintPassword: "open-sesame",
		},
		{
			Number: 2,
			Prompt: "Founded by Bill Gates, this tech titan gave us Windows and Office.",
			Answer: "microsoft", Hint: "The world's most famous software company...", HintPassword: "open-sesame",
		},
		{
			Number: 3,
			Prompt: "Organizing the world's information is their mission.",
			Answer: "google", Hint: "Search engine giant that became a verb...", HintPassword: "open-sesame",
		},
		{
			Number: 4,
			Prompt: "This company revolutionized smartphones with its bite logo.",
			Answer: "apple", Hint: "Think fruit, but make it tech...", HintPassword: "open-sesame",
		},
		{
			Number: 5,
			Prompt: "Once known for its bird logo, now rebranded as 'X'.",
			Answer: "twitter", Hint: "Social media platform where you tweet...", HintPassword: "open-sesame",
		},
	}
}
