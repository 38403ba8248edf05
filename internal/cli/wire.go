package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/youssefsiam38/questlog/storage"
)

// loadConfig reads the config file and environment into a viper instance.
// Every key can be overridden with a QUESTLOG_ env var, e.g.
// QUESTLOG_STORE_DRIVER=postgres.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", defaultDBPath())
	v.SetDefault("model.id", "")

	v.SetEnvPrefix("QUESTLOG")
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		v.SetConfigName(".questlog")
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "questlog.db"
	}
	return filepath.Join(home, ".questlog", "questlog.db")
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, v *viper.Viper) (storage.Store, error) {
	switch driver := v.GetString("store.driver"); driver {
	case "sqlite":
		path := v.GetString("store.path")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return storage.NewSQLiteStore(path)
	case "postgres":
		url := v.GetString("store.url")
		if url == "" {
			url = os.Getenv("DATABASE_URL")
		}
		if url == "" {
			return nil, fmt.Errorf("postgres driver needs store.url or DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s := storage.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
