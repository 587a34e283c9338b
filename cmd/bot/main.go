package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/glizzus/jukebox/internal/config"
	"github.com/glizzus/jukebox/internal/datalayer"
	"github.com/glizzus/jukebox/internal/generator"
	"github.com/glizzus/jukebox/internal/handler"
	"github.com/glizzus/jukebox/internal/jukebox"
	"github.com/glizzus/jukebox/internal/media"
	"github.com/glizzus/jukebox/internal/metrics"
	"github.com/glizzus/jukebox/internal/server"
	"github.com/glizzus/jukebox/internal/voice"
	"github.com/glizzus/jukebox/internal/youtube"
)

const shutdownTimeout = 10 * time.Second

func setupLogging() error {
	logConfig, err := config.NewLogConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load log config: %w", err)
	}
	level, err := logConfig.SlogLevel()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func newTrackSource(ctx context.Context, ytConfig *config.YouTubeConfig) (*media.Source, error) {
	videos := youtube.NewClient(
		youtube.WithYTDLPPath(ytConfig.YTDLPPath),
		youtube.WithLookupTimeout(ytConfig.LookupTimeout),
	)
	opts := []media.Option{media.WithEncoder(media.FFmpegEncoder(ytConfig.FFmpegPath))}

	minioConfig, err := config.NewMinioConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load minio config: %w", err)
	}
	if minioConfig.Enabled() {
		storage, err := datalayer.NewMinioStorage(minioConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create minio storage: %w", err)
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure minio bucket: %w", err)
		}
		opts = append(opts, media.WithCache(storage))
		slog.Info("Caching encoded tracks", "endpoint", minioConfig.Endpoint, "bucket", minioConfig.Bucket)
	}

	return media.NewSource(videos, opts...), nil
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	if err := setupLogging(); err != nil {
		return err
	}

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}
	serverConfig, err := config.NewServerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load server config: %w", err)
	}
	ytConfig, err := config.NewYouTubeConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load youtube config: %w", err)
	}
	for _, bin := range []string{ytConfig.YTDLPPath, ytConfig.FFmpegPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("required binary %q is unavailable: %w", bin, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	tracks, err := newTrackSource(ctx, ytConfig)
	if err != nil {
		return err
	}
	defer tracks.Wait()

	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready: handler.ReadyLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	registry := jukebox.NewRegistry(
		voice.NewGateway(session, discordConfig.VoiceReadyTimeout),
		tracks,
		voice.Factory(),
		jukebox.WithMetrics(m),
	)

	session.AddHandler(handler.MakeInteractionCreateHandler(handler.NewInteractionHandler(
		serverConfig.PublicURL,
		session.State,
		registry,
		&generator.UUIDV4Generator{},
	)))

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()
	// Leave voice channels while the gateway is still open.
	defer registry.Shutdown()

	if err := handler.EstablishCommands(session, discordConfig.CommandGuildID()); err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}

	searcher := youtube.NewSearcher(
		youtube.NewBackend(),
		youtube.WithRateLimit(rate.Limit(ytConfig.SearchRate), ytConfig.SearchBurst),
		youtube.WithSearchMetrics(m),
	)

	httpServer := &http.Server{
		Addr: serverConfig.Addr(),
		Handler: server.NewServer(registry,
			server.WithSearcher(searcher),
			server.WithMetrics(promRegistry),
			server.WithCORSOrigin(serverConfig.CORSOrigin),
			server.WithStaticDir(serverConfig.StaticDir),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Jukebox server listening", "addr", httpServer.Addr, "publicURL", serverConfig.PublicURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
