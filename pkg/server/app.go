package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/usecase"
	pkgch "IndexPulse/pkg/clickhouse"
	"IndexPulse/pkg/config"
	xhttp "IndexPulse/pkg/http"
	applogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle: the HTTP API, the
// refresh scheduler with its queue workers, the optional live quote
// stream, and graceful teardown of the infrastructure clients.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	jobQueue    *queue.RedisQueue
	stream      drepo.QuoteStream
	metrics     drepo.Metrics
	publisher   drepo.Publisher
	chClient    *pkgch.Client
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	jobQueue *queue.RedisQueue,
	stream drepo.QuoteStream,
	metrics drepo.Metrics,
	publisher drepo.Publisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		httpHandler: handler,
		jobQueue:    jobQueue,
		stream:      stream,
		metrics:     metrics,
		publisher:   publisher,
		chClient:    chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			return err
		}
		a.jobQueue.StartRetryProcessor()
		go a.scheduleRefreshes(ctx)
	}

	if a.stream != nil && a.cfg.Provider.StreamEnabled {
		go a.runStream(ctx)
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("indexpulse started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("symbols", a.cfg.Provider.Symbols),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// scheduleRefreshes enqueues one refresh per configured interval, plus
// one immediately at startup so a fresh deployment has data without
// waiting a full interval.
func (a *App) scheduleRefreshes(ctx context.Context) {
	interval := a.cfg.Refresh.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	a.enqueueRefresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.enqueueRefresh(ctx)
		}
	}
}

func (a *App) enqueueRefresh(ctx context.Context) {
	err := a.jobQueue.PublishMessage(ctx, usecase.RefreshMsgType, map[string]string{
		"scheduled_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		a.logger.Warn("refresh enqueue failed", applogger.Error(err))
	}
}

// runStream consumes the live quote feed, reconnecting on read errors
// until the context is cancelled.
func (a *App) runStream(ctx context.Context) {
	if err := a.stream.Connect(ctx); err != nil {
		a.logger.Error("stream connect failed", applogger.Error(err))
		return
	}
	if err := a.stream.Subscribe(ctx); err != nil {
		a.logger.Error("stream subscribe failed", applogger.Error(err))
		return
	}

	quotes, errs := a.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			if err != nil {
				a.logger.Warn("stream read error, reconnecting", applogger.Error(err))
				if rerr := a.stream.Reconnect(ctx); rerr != nil {
					a.logger.Error("stream reconnect failed", applogger.Error(rerr))
					return
				}
				quotes, errs = a.stream.Read(ctx)
			}
		case q := <-quotes:
			if q == nil {
				continue
			}
			if a.metrics != nil {
				a.metrics.RecordQuote(q.Symbol, q.Price)
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.logger.Warn("stream close error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
