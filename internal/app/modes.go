package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poolhouse/poolbet/internal/domain"
	"github.com/poolhouse/poolbet/internal/ingest"
	"github.com/poolhouse/poolbet/internal/judge"
	"github.com/poolhouse/poolbet/internal/lifecycle"
	"github.com/poolhouse/poolbet/internal/oracle"
	"github.com/poolhouse/poolbet/internal/server"
	"github.com/poolhouse/poolbet/internal/server/handler"
	"github.com/poolhouse/poolbet/internal/server/ws"
	"github.com/poolhouse/poolbet/internal/settlement"
	"github.com/poolhouse/poolbet/internal/source"
)

// ResolveMode runs the lifecycle scheduler: locking, freezing, and resulting
// sweeps against the event store.
func (a *App) ResolveMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	if err := a.startScheduler(ctx, g, deps); err != nil {
		return err
	}
	a.startMetrics(ctx, g, deps)

	return g.Wait()
}

// IngestMode runs the fixture ingester: periodic discovery of upcoming and
// in-play fixtures, persisted as events with their betting markets.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	a.startIngester(ctx, g, deps)
	a.startMetrics(ctx, g, deps)

	return g.Wait()
}

// ServeMode runs the read-only status API and the WebSocket change relay.
// No sweeps run and no fixtures are ingested.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps)
	a.startMetrics(ctx, g, deps)

	return g.Wait()
}

// FullMode starts all subsystems: ingestion, the lifecycle scheduler, and the
// HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	if err := a.startScheduler(ctx, g, deps); err != nil {
		return err
	}
	a.startIngester(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	a.startMetrics(ctx, g, deps)

	return g.Wait()
}

// startScheduler assembles the resolution pipeline (consensus engine, outcome
// judge, settlement engine) and adds the scheduler's sweep loops to g.
func (a *App) startScheduler(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	sources, err := a.buildSources()
	if err != nil {
		return err
	}

	engine := oracle.NewEngine(
		sources,
		a.cfg.Oracle.SourceTimeout.Duration,
		oracle.TieBreak(a.cfg.Oracle.TieBreak),
		a.logger,
	)
	settler := settlement.NewEngine(deps.BetStore, deps.Archiver, a.logger)

	sched := lifecycle.New(
		lifecycle.Config{
			LockInterval:      a.cfg.Scheduler.LockInterval.Duration,
			FreezeInterval:    a.cfg.Scheduler.FreezeInterval.Duration,
			ResultInterval:    a.cfg.Scheduler.ResultInterval.Duration,
			ResultBatchLimit:  a.cfg.Scheduler.ResultBatchLimit,
			RequestsPerSecond: a.cfg.Oracle.RequestsPerSecond,
		},
		deps.EventStore,
		engine,
		a.newJudge(),
		settler,
		deps.SignalBus,
		deps.Notifier,
		deps.Metrics,
		a.logger,
	)

	g.Go(func() error {
		return sched.Run(ctx)
	})
	return nil
}

// startIngester adds the fixture discovery loop to g. Markets for new events
// come from the judge when an API key is configured, otherwise from the
// built-in defaults.
func (a *App) startIngester(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Ingest.Enabled {
		return
	}

	var generator domain.MarketGenerator
	if a.cfg.Judge.APIKey != "" {
		generator = a.newJudge()
	}

	ingester := ingest.New(
		source.NewFlashScore(""),
		deps.EventStore,
		generator,
		a.cfg.Ingest.Sports,
		a.cfg.Ingest.MatchDuration.Duration,
		deps.Metrics,
		a.logger,
	)

	g.Go(func() error {
		return ingester.RunLoop(ctx, a.cfg.Ingest.Interval.Duration)
	})
}

// startHTTPServer adds the status API server, and the WebSocket hub when the
// signal bus is wired, to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health: handler.NewHealthHandler(a.logger),
			Events: handler.NewEventHandler(deps.EventStore, deps.MarketStore, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}

// startMetrics adds the Prometheus listener to g when metrics are enabled.
func (a *App) startMetrics(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Metrics == nil {
		return
	}
	g.Go(func() error {
		return deps.Metrics.Serve(ctx, a.cfg.Metrics.Port, a.logger)
	})
}

// newJudge builds the OpenRouter outcome-determination client from config.
func (a *App) newJudge() *judge.Client {
	c := judge.NewClient(
		a.cfg.Judge.BaseURL,
		a.cfg.Judge.APIKey,
		a.cfg.Judge.Model,
		a.cfg.Judge.Timeout.Duration,
		a.logger,
	)
	if a.cfg.Judge.Referer != "" {
		c.SetReferer(a.cfg.Judge.Referer)
	}
	return c
}

// buildSources maps configured adapter names to their implementations, in
// vote order.
func (a *App) buildSources() ([]source.Source, error) {
	sources := make([]source.Source, 0, len(a.cfg.Oracle.Sources))
	for _, name := range a.cfg.Oracle.Sources {
		switch name {
		case "flashscore":
			sources = append(sources, source.NewFlashScore(""))
		case "sofascore":
			sources = append(sources, source.NewSofaScore(""))
		case "livescore":
			sources = append(sources, source.NewLiveScore(""))
		case "bbcsport":
			sources = append(sources, source.NewBBCSport(""))
		default:
			return nil, fmt.Errorf("app: unknown oracle source %q", name)
		}
	}
	return sources, nil
}
