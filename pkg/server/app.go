package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/repository"
	"Wonderland/internal/handler/stream"
	mid "Wonderland/internal/middleware"
	"Wonderland/internal/usecase"
	"Wonderland/pkg/cache"
	pkgch "Wonderland/pkg/clickhouse"
	"Wonderland/pkg/config"
	xhttp "Wonderland/pkg/http"
	pkgkafka "Wonderland/pkg/kafka"
	applogger "Wonderland/pkg/logger"
	"Wonderland/pkg/postgres"
	"Wonderland/pkg/queue"

	"golang.org/x/sync/errgroup"
)

// Lifetime is the root context of the process. Long-lived components take
// it at construction; Cancel begins shutdown.
type Lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewLifetime() *Lifetime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lifetime{ctx: ctx, cancel: cancel}
}

func (l *Lifetime) Context() context.Context { return l.ctx }
func (l *Lifetime) Cancel()                  { l.cancel() }

// Infra groups the clients the App must close on shutdown. Nil members are
// skipped.
type Infra struct {
	ClickHouse *pkgch.Client
	Postgres   *postgres.DB
	Cache      cache.Service
	Producer   *pkgkafka.Producer
	Journal    repository.Journal
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	lifetime  *Lifetime
	agent     *agent.Agent
	manager   *usecase.InvestmentManager
	scheduler *usecase.Scheduler
	eventLog  *mid.EventLogPipeline
	queue     *queue.RedisQueue
	consumer  *pkgkafka.Consumer
	commands  pkgkafka.MessageHandler
	stream    *stream.EventStream
	http      *xhttp.Server
	infra     Infra
}

func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	lifetime *Lifetime,
	ag *agent.Agent,
	manager *usecase.InvestmentManager,
	scheduler *usecase.Scheduler,
	eventLog *mid.EventLogPipeline,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	commands pkgkafka.MessageHandler,
	events *stream.EventStream,
	httpServer *xhttp.Server,
	infra Infra,
) *App {
	return &App{
		cfg:       cfg,
		logger:    lgr.With(applogger.Component("app")),
		lifetime:  lifetime,
		agent:     ag,
		manager:   manager,
		scheduler: scheduler,
		eventLog:  eventLog,
		queue:     q,
		consumer:  consumer,
		commands:  commands,
		stream:    events,
		http:      httpServer,
		infra:     infra,
	}
}

// Run starts every component and blocks until SIGINT/SIGTERM or until the
// lifetime is cancelled.
func (a *App) Run() error {
	ctx := a.lifetime.Context()

	a.eventLog.Start(ctx)
	if a.stream != nil {
		a.stream.Attach(a.agent.Bus)
	}
	a.manager.Start()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
	}
	if a.consumer != nil && a.commands != nil {
		a.consumer.RegisterHandler(a.commands)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.commands.Topic()))
	}

	if err := a.http.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.agent.Run(gctx) })
	g.Go(func() error { return a.scheduler.Run(gctx) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		a.logger.Info("shutdown signal received")
	case <-ctx.Done():
		a.logger.Info("lifetime cancelled")
	}
	a.lifetime.Cancel()
	runErr := g.Wait()

	return errors.Join(runErr, a.shutdown())
}

// shutdown stops intake first, then drains work, then closes clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down...")
	var errs []error

	if err := a.http.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.manager.Stop()
	if a.stream != nil {
		a.stream.Detach()
	}

	if err := a.agent.Tasks.Wait(ctx); err != nil {
		a.logger.Warn("tasks still running at shutdown", applogger.Error(err))
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}
	if err := a.eventLog.Stop(ctx); err != nil {
		a.logger.Warn("event log drain incomplete", applogger.Error(err))
	}

	a.closeInfra()
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeInfra() {
	if a.infra.Producer != nil {
		if err := a.infra.Producer.Close(); err != nil {
			a.logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.infra.Cache != nil {
		if err := a.infra.Cache.Close(); err != nil {
			a.logger.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.infra.Postgres != nil {
		a.infra.Postgres.Close()
	}
	if a.infra.Journal != nil {
		if err := a.infra.Journal.Close(); err != nil {
			a.logger.Warn("journal close error", applogger.Error(err))
		}
	} else if a.infra.ClickHouse != nil {
		if err := a.infra.ClickHouse.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}

// Ready reports whether the storage backends answer within timeout.
func (a *App) Ready(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var errs []error
	if a.infra.Journal != nil {
		errs = append(errs, a.infra.Journal.Health(ctx))
	}
	if a.infra.Postgres != nil {
		errs = append(errs, a.infra.Postgres.Health(ctx))
	}
	return errors.Join(errs...)
}
