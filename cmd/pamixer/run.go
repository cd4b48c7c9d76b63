package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jfreymuth/pamixer"
	"github.com/jfreymuth/pamixer/internal/ui"
)

// errSessionEnded is returned when the server connection ends on its own.
var errSessionEnded = errors.New("session ended")

func (a *app) run(ctx context.Context) error {
	if err := a.openLog(); err != nil {
		return err
	}
	log := a.log.With("module", "main")

	var registry *prometheus.Registry
	var metrics *pamixer.Metrics
	if a.settings.Metrics.Listen != "" {
		var err error
		if registry, metrics, err = newMetrics(); err != nil {
			return err
		}
	}

	ended := make(chan struct{})
	opts := append(a.sessionOptions(metrics), pamixer.WithStateCallback(func(s pamixer.State) {
		if s.Terminal() {
			select {
			case <-ended:
			default:
				close(ended)
			}
		}
	}))
	session := pamixer.NewSession(opts...)
	defer session.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if err := session.Start(ctx); err != nil {
		return err
	}

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			if err := session.Err(); err != nil {
				return fmt.Errorf("%w: %w", errSessionEnded, err)
			}
			return errSessionEnded
		}
	})

	if registry != nil {
		serveMetrics(ctx, g, a.settings.Metrics.Listen, registry, log)
	}

	if a.settings.UI.Enabled {
		view := ui.New(session, a.settings.UI.Refresh)
		session.OnUpdate(view.MarkDirty)
		g.Go(func() error {
			defer cancel()
			return view.Run(ctx)
		})
	} else {
		g.Go(func() error {
			return logChanges(ctx, session, a.settings.UI.Refresh, log)
		})
	}

	return g.Wait()
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, registry *prometheus.Registry, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// logChanges logs object counts whenever the cache changed, at most once per interval.
// Changes that keep the counts, such as peak updates, are logged at debug level.
func logChanges(ctx context.Context, session *pamixer.Session, interval time.Duration, log *slog.Logger) error {
	changed := make(chan struct{}, 1)
	session.OnUpdate(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last [len(pamixer.Kinds)]int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		select {
		case <-changed:
		default:
			continue
		}
		counts := countObjects(session.Snapshot())
		level := slog.LevelDebug
		if counts != last {
			level = slog.LevelInfo
			last = counts
		}
		log.Log(ctx, level, "cache changed",
			"sinks", counts[pamixer.KindSink],
			"sources", counts[pamixer.KindSource],
			"inputs", counts[pamixer.KindInput],
			"source_outputs", counts[pamixer.KindSourceOutput],
			"cards", counts[pamixer.KindCard])
	}
}

func countObjects(snap pamixer.Snapshot) [len(pamixer.Kinds)]int {
	var counts [len(pamixer.Kinds)]int
	for _, k := range pamixer.Kinds {
		counts[k] = len(snap.Of(k))
	}
	return counts
}
