package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plantlog/internal/config"
	"github.com/alfredjeanlab/plantlog/internal/events"
	"github.com/alfredjeanlab/plantlog/internal/notify"
	"github.com/alfredjeanlab/plantlog/internal/photos"
	"github.com/alfredjeanlab/plantlog/internal/server"
	"github.com/alfredjeanlab/plantlog/internal/store"
	"github.com/alfredjeanlab/plantlog/internal/store/memstore"
	"github.com/alfredjeanlab/plantlog/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the plantlog HTTP and gRPC server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Override PersistentPreRunE so we don't create a client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		memory, _ := cmd.Flags().GetBool("memory")
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}

		cfg, err := config.Load(memory)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		st, err := openStore(cfg)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (PLANTLOG_NATS_URL not set)")
		}

		photoStore, err := openPhotos(cmd.Context(), cfg)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}

		hub := notify.New(notify.Options{
			QueueSize:           cfg.NotifyQueue,
			ReplaySize:          cfg.NotifyReplay,
			SlowObserverTimeout: cfg.SlowObserverTimeout,
			Logger:              logger,
		})
		srv := server.New(st, server.Options{Hub: hub, Publisher: publisher, Photos: photoStore, Logger: logger})
		if err := srv.Init(context.Background()); err != nil {
			publisher.Close()
			st.Close()
			return fmt.Errorf("init: %w", err)
		}

		var stopSeed func()
		if cfg.SeedFile != "" {
			stopSeed, err = startSeed(srv, cfg.SeedFile, logger)
			if err != nil {
				publisher.Close()
				st.Close()
				return err
			}
		}

		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "error", err)
			}
		}()

		logger.Info("plantlog server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"memory", cfg.Memory,
			"epoch", hub.Epoch(),
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if stopSeed != nil {
			stopSeed()
		}

		// Ends every notification stream so the servers can drain.
		hub.Close()

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "error", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("PLANTLOG_LOG_LEVEL: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Memory {
		return memstore.New(), nil
	}
	return postgres.New(cfg.DatabaseURL)
}

func openPhotos(ctx context.Context, cfg *config.Config) (photos.Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.PhotoS3Bucket != "" {
		s, err := photos.NewS3Store(ctx, cfg.PhotoS3Bucket, cfg.PhotoS3Prefix, cfg.PhotoS3Region, cfg.PhotoS3Endpoint)
		if err != nil {
			return nil, err
		}
		slog.Info("photos stored in S3", "bucket", cfg.PhotoS3Bucket, "prefix", cfg.PhotoS3Prefix)
		return s, nil
	}
	s, err := photos.NewLocalStore(cfg.PhotoDir)
	if err != nil {
		return nil, err
	}
	slog.Info("photos stored on disk", "dir", cfg.PhotoDir)
	return s, nil
}

// startSeed applies the seed file and re-applies it whenever it changes.
func startSeed(srv *server.Server, path string, logger *slog.Logger) (func(), error) {
	loader, err := config.NewSeedLoader(path, logger)
	if err != nil {
		return nil, err
	}
	apply := func(f *config.SeedFile) {
		if _, err := srv.ApplySeed(context.Background(), f.NewEventTypes()); err != nil {
			logger.Error("apply seed failed", "path", path, "error", err)
		}
	}
	apply(loader.Seed())
	loader.OnChange(apply)
	stop, err := loader.Watch()
	if err != nil {
		return nil, err
	}
	logger.Info("seed file watched", "path", path)
	return stop, nil
}

func init() {
	serveCmd.Flags().Bool("memory", false, "keep everything in memory instead of PostgreSQL")
	serveCmd.Flags().String("env-file", ".env", "dotenv file loaded before reading the environment")
}
