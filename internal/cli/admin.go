package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/domain"
	"treasure-quest-service/internal/infra/memory"
	"treasure-quest-service/internal/infra/postgres"
	infraredis "treasure-quest-service/internal/infra/redis"
)

// NewAdminCmd groups the administrative operations.
func NewAdminCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations on game settings, riddles and the leaderboard",
	}
	cmd.AddCommand(newSetDurationCmd(configPath))
	cmd.AddCommand(newImportLevelsCmd(configPath))
	cmd.AddCommand(newResetLeaderboardCmd(configPath))
	return cmd
}

func newSetDurationCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-duration <minutes>",
		Short: "Set the game duration (1-120 minutes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", domain.ErrInvalidDuration, args[0])
			}
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			b, err := connectBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			if b.pool == nil {
				return fmt.Errorf("set-duration requires postgres.url")
			}
			if err := postgres.NewSettingsStore(b.pool).SetGameDurationMinutes(cmd.Context(), minutes); err != nil {
				return err
			}
			logger.Info("game duration updated", slog.Int("minutes", minutes))
			return nil
		},
	}
}

type levelFile struct {
	Levels []domain.Level `yaml:"levels"`
}

func readLevelFile(path string) ([]domain.Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed levelFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return domain.ValidateLevels(parsed.Levels)
}

func newImportLevelsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-levels <file.yaml>",
		Short: "Replace the riddle set with the levels in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			levels, err := readLevelFile(args[0])
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			b, err := connectBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			if b.pool == nil {
				return fmt.Errorf("import-levels requires postgres.url")
			}
			loader := postgres.NewLevelLoader(b.pool)
			if err := loader.ReplaceLevels(cmd.Context(), levels); err != nil {
				return err
			}
			if b.redis != nil {
				if err := infraredis.NewLevelRepository(b.redis, loader, 0).Invalidate(cmd.Context()); err != nil {
					logger.Warn("level cache not invalidated", slog.Any("err", err))
				}
			}
			logger.Info("levels imported", slog.Int("count", len(levels)))
			return nil
		},
	}
}

func newResetLeaderboardCmd(configPath *string) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "reset-leaderboard",
		Short: "Irreversibly delete every leaderboard entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			gate := app.NewAdminGate(cfg.Game.AdminPasswordHash, cfg.Game.AdminPassword)
			if err := gate.Authorize(password); err != nil {
				return err
			}
			b, err := connectBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			store, closer, err := buildLeaderboardStore(cfg, b)
			if err != nil {
				return err
			}
			defer closer.Close()
			if _, ok := store.(*memory.LeaderboardStore); ok {
				return fmt.Errorf("reset-leaderboard needs a durable leaderboard backend")
			}

			var notifier app.ChangeNotifier
			if b.redis != nil {
				notifier = infraredis.NewHub(b.redis, logger)
			}
			removed, err := app.NewLeaderboard(store, notifier, nil, logger).ResetAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d leaderboard entries\n", removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", os.Getenv("ADMIN_PASSWORD"), "administrator password")
	return cmd
}
