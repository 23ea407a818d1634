//cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/config"
	"github.com/unclebandit/smsleopard-sequencer/internal/db"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
)

func main() {
	migrationsDir := flag.String("migrations", "migrations", "directory of schema files")
	seedDir := flag.String("seed", "seed", "directory of seed files, empty to skip")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DB.Driver, cfg.PostgresDSN(), db.PoolConfig{})
	if err != nil {
		zl.Fatal("database open failed", zap.Error(err))
	}
	defer conn.Close()

	files, err := sqlFiles(*migrationsDir)
	if err != nil {
		zl.Fatal("list migrations", zap.Error(err))
	}
	if *seedDir != "" {
		seeds, err := sqlFiles(*seedDir)
		if err != nil {
			zl.Fatal("list seed files", zap.Error(err))
		}
		files = append(files, seeds...)
	}

	for _, file := range files {
		if err := apply(ctx, conn, file); err != nil {
			zl.Fatal("seeding failed", zap.String("file", file), zap.Error(err))
		}
		zl.Info("applied", zap.String("file", file))
	}
	zl.Info("database seeding completed", zap.Int("files", len(files)))
}

// sqlFiles lists dir/*.sql in name order. A missing dir yields nothing.
func sqlFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func apply(ctx context.Context, conn *sql.DB, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if _, err := conn.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute %s: %w", file, err)
	}
	return nil
}
