package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/intrntsrfr/moderation"
	"github.com/intrntsrfr/moderation/bot"
	"github.com/intrntsrfr/moderation/discord"
	"github.com/intrntsrfr/moderation/kvstore"
)

const messageCacheTTL = 24 * time.Hour

func main() {
	configPath := flag.String("config", "./config.json", "path to the config file")
	flag.Parse()

	// a missing .env is fine, the token can come from the config file
	_ = godotenv.Load()

	cfg, err := moderation.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	logger := moderation.NewLogger("modbot", level)
	log := logger.Zap()

	if cfg.Token == "" {
		log.Fatal("no token configured", zap.String("env", moderation.TokenEnv))
	}

	cacheDB, err := kvstore.Open(filepath.Join(cfg.DataDir, "cache"), logger.Named("badger").(*moderation.ZapLogger), log)
	if err != nil {
		log.Fatal("failed to open message cache", zap.Error(err))
	}
	defer cacheDB.Close()

	store, closer, err := openStore(cfg, logger, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closer.Close()

	gateway := discord.NewGateway(log)
	mod := moderation.New(cfg, store, gateway, moderation.SystemClock, log)
	cache := kvstore.NewBadger[moderation.Message](cacheDB, messageCacheTTL)

	if cfg.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := bot.NewBot(cfg, mod, gateway, cache, logger)
	defer func() {
		cancel()
		b.Close()
	}()

	if err := b.Run(ctx); err != nil {
		log.Fatal("failed to run bot", zap.Error(err))
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc
	log.Info("shutting down")
}

// openStore returns the record store picked in the config. Badger records
// live in their own database next to the message cache.
func openStore(cfg *moderation.Config, logger *moderation.ZapLogger, log *zap.Logger) (moderation.Store, io.Closer, error) {
	switch cfg.Storage {
	case moderation.StorageJSON:
		s, err := kvstore.OpenJSONFile[moderation.CommunityRecord](filepath.Join(cfg.DataDir, "moderation.json"))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case moderation.StorageSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, err
		}
		db, err := kvstore.OpenSQLite(filepath.Join(cfg.DataDir, "moderation.db"))
		if err != nil {
			return nil, nil, err
		}
		return kvstore.NewSQL[moderation.CommunityRecord](db), db, nil
	default:
		db, err := kvstore.Open(filepath.Join(cfg.DataDir, "records"), logger.Named("badger").(*moderation.ZapLogger), log)
		if err != nil {
			return nil, nil, err
		}
		return kvstore.NewBadger[moderation.CommunityRecord](db, 0), db, nil
	}
}
