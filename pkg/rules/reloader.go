package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/tollgate/pkg/rules/store"
	"mercator-hq/tollgate/pkg/tps"
)

// Rule sources recorded in the store.
const (
	SourceFile = "file"
	SourceAPI  = "api"
)

// Reloader applies rule files to a Manager and persists every applied rule.
//
// Points named in the file are created on demand. Points that disappear from
// the file on a later reload have their rule cleared and their stored record
// removed. Rules applied through Apply (the admin API) are not touched by
// file reloads unless the file names the same point.
type Reloader struct {
	path    string
	manager *tps.Manager
	store   store.Backend
	logger  *slog.Logger
	tracer  trace.Tracer

	mu       sync.Mutex
	fromFile map[string]struct{}
	last     Status
}

// Status describes the last reload attempt.
type Status struct {
	Path      string    `json:"path"`
	LoadedAt  time.Time `json:"loaded_at"`
	Points    int       `json:"points"`
	LastError string    `json:"last_error,omitempty"`
}

// NewReloader creates a reloader. An empty path disables file loading; a nil
// backend uses an in-memory store.
func NewReloader(path string, manager *tps.Manager, backend store.Backend, logger *slog.Logger) *Reloader {
	if backend == nil {
		backend = store.NewMemoryBackend()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		path:     path,
		manager:  manager,
		store:    backend,
		logger:   logger.With("component", "rules.reloader"),
		tracer:   otel.Tracer("tollgate/rules"),
		fromFile: make(map[string]struct{}),
	}
}

// Path returns the rule file path.
func (r *Reloader) Path() string { return r.path }

// Store returns the rule store.
func (r *Reloader) Store() store.Backend { return r.store }

// Restore applies every stored rule whose point is not already ruled. It is
// called once at startup, before the first file load.
func (r *Reloader) Restore(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "tollgate.rules.restore")
	defer span.End()

	records, err := r.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to list stored rules: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if rec.Err != nil {
			r.logger.Warn("skipping invalid stored rule", "point", rec.Point, "error", rec.Err)
			continue
		}
		p := r.manager.NewPoint(rec.Point)
		if p.Rule() != nil {
			continue
		}
		if err := p.ApplyRule(rec.Rule); err != nil {
			r.logger.Warn("skipping invalid stored rule", "point", rec.Point, "error", err)
			continue
		}
		restored++
	}

	span.SetAttributes(attribute.Int("rules.restored", restored))
	if restored > 0 {
		r.logger.Info("restored rules from store", "count", restored)
	}
	return restored, nil
}

// Reload loads the rule file and applies it. A file that fails to parse or
// validate leaves every current rule in place.
func (r *Reloader) Reload(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "tollgate.rules.reload",
		trace.WithAttributes(attribute.String("rules.path", r.path)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	set, err := Load(r.path)
	if err != nil {
		r.last = Status{Path: r.path, LoadedAt: time.Now(), LastError: err.Error()}
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return err
	}

	var errs []error
	seen := make(map[string]struct{}, set.Len())
	for _, name := range set.Names {
		seen[name] = struct{}{}
		if err := r.applyLocked(ctx, name, set.Rules[name], SourceFile); err != nil {
			errs = append(errs, err)
		}
	}

	for name := range r.fromFile {
		if _, ok := seen[name]; ok {
			continue
		}
		if err := r.manager.ApplyRule(name, nil); err != nil {
			errs = append(errs, err)
		}
		if err := r.store.Delete(ctx, name); err != nil {
			errs = append(errs, err)
		}
		r.logger.Info("rule removed from file", "point", name)
	}
	r.fromFile = seen

	err = errors.Join(errs...)
	r.last = Status{Path: r.path, LoadedAt: time.Now(), Points: set.Len()}
	if err != nil {
		r.last.LastError = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
	}
	span.SetAttributes(attribute.Int("rules.points", set.Len()))

	r.logger.Info("rule file loaded", "path", r.path, "points", set.Len())
	return err
}

// Apply sets the rule of one point, creating the point if needed, and saves
// it with the given source.
func (r *Reloader) Apply(ctx context.Context, point string, rule *tps.ControlRule, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if source != SourceFile {
		delete(r.fromFile, point)
	}
	return r.applyLocked(ctx, point, rule, source)
}

func (r *Reloader) applyLocked(ctx context.Context, point string, rule *tps.ControlRule, source string) error {
	p := r.manager.NewPoint(point)
	if err := p.ApplyRule(rule); err != nil {
		return err
	}
	if rule == nil {
		return r.store.Delete(ctx, point)
	}
	if err := r.store.Save(ctx, &store.Record{Point: point, Rule: rule, Source: source}); err != nil {
		return fmt.Errorf("point %s: %w", point, err)
	}
	return nil
}

// Status returns the outcome of the last reload.
func (r *Reloader) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// CheckFile reports whether the rule file is readable. It is used as a
// readiness check.
func (r *Reloader) CheckFile(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("rule file not readable: %w", err)
	}
	return f.Close()
}
