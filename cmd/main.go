package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"webdlp/internal/api"
	"webdlp/internal/config"
	fileutil "webdlp/internal/file"
	"webdlp/internal/job"
	"webdlp/internal/queue"
	"webdlp/internal/reclaimer"
	"webdlp/internal/worker"
	"webdlp/internal/ytdlp"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("webdlp failed")
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "webdlp",
		Short:         "Queue-based media download service backed by yt-dlp",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "path to the YAML config file")
	return cmd
}

// core is the set of long-lived components shared by the API, the workers
// and the reclaimer. It is built once per process.
type core struct {
	registry  *job.Registry
	queue     *queue.Queue[job.Item]
	manager   *job.Manager
	workers   *worker.Pool
	reclaimer *reclaimer.Reclaimer
	limiter   *api.RateLimiter
}

func buildCore(cfg config.Config) *core {
	registry := job.NewRegistry()
	q := queue.New[job.Item]()
	tool := ytdlp.New(cfg.ToolPath, cfg.ToolTimeout)
	return &core{
		registry: registry,
		queue:    q,
		manager:  job.NewManager(registry, q),
		workers: worker.NewPool(registry, q, tool, worker.Options{
			Workers:     cfg.Workers,
			ArtifactDir: cfg.DataDir,
		}),
		reclaimer: reclaimer.New(registry, reclaimer.Options{
			ArtifactDir: cfg.DataDir,
			Interval:    cfg.CleanupInterval,
			MaxAge:      cfg.MaxAge,
		}),
		limiter: api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
	}
}

func serve(cfg config.Config) error {
	zerolog.SetGlobalLevel(cfg.Level())

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		return fmt.Errorf("ensure data dir %s: %w", cfg.DataDir, err)
	}

	c := buildCore(cfg)
	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()

	c.workers.Start(baseCtx)
	go c.reclaimer.Run(baseCtx)
	go c.limiter.Run(baseCtx)

	router := setupRouter()
	api.NewAPI(c.manager, cfg.DataDir, c.limiter).RegisterRoutes(router)
	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("dir", cfg.DataDir).Str("tool", cfg.ToolPath).Msg("webdlp listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-waitForShutdownSignal():
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	gracefulShutdown(srv, baseCancel, c, shutdownTimeout)
	return runErr
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(api.ZerologRecovery())
	r.Use(api.ZerologLogger())
	return r
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	return quit
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, c *core, timeout time.Duration) {
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	c.queue.Close()
	// in-flight tool processes are killed; their jobs end up failed
	cancelBase()
	if !c.workers.WaitAll(ctx) {
		log.Warn().Msg("background workers did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
