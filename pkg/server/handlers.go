package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/server/api"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
	"mercator-hq/tollgate/pkg/tps"
)

// handleCheck evaluates one request. 200 means admitted, 429 throttled.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req api.CheckRequest
	if err := decodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Point) == "" {
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRequest, "point is required")
		return
	}

	ctx := logging.WithPoint(r.Context(), req.Point)
	ctx = logging.WithConnectionID(ctx, req.ConnectionID)
	ctx, span := s.deps.Telemetry.Tracer.Start(ctx, "tollgate.tps.check")
	defer span.End()
	if id := tracing.TraceID(ctx); id != "" {
		ctx = logging.WithTraceID(ctx, id)
	}
	tracing.SetCheckAttributes(span, req.Point, req.ConnectionID, len(req.Keys))

	d := s.deps.Manager.Evaluate(req.Point, req.ConnectionID, req.MonitorKeys())
	if d.Allowed {
		tracing.SetVerdictAttributes(span, true, "", 0)
		api.WriteJSON(w, http.StatusOK, api.NewCheckResponse(d))
		return
	}

	detail := api.ErrorDetail{
		Type:    api.ErrorTypeThrottled,
		Message: tps.ErrThrottled.Error(),
		Point:   req.Point,
	}
	if c, ok := d.Rejection(); ok {
		detail.Pattern = c.Pattern
		detail.Limit = c.Rule.MaxCount
	}
	tracing.SetVerdictAttributes(span, false, detail.Pattern, detail.Limit)
	s.logger.DebugContext(ctx, "tps check throttled", "pattern", detail.Pattern, "limit", detail.Limit)
	api.WriteJSON(w, http.StatusTooManyRequests, api.ErrorResponse{Error: detail})
}

func (s *Server) handleListPoints(w http.ResponseWriter, r *http.Request) {
	names := s.deps.Manager.Points()
	resp := api.PointsResponse{Points: make([]api.PointSummary, 0, len(names))}
	for _, name := range names {
		p, ok := s.deps.Manager.Point(name)
		if !ok {
			continue
		}
		resp.Points = append(resp.Points, api.PointSummary{
			Name:        name,
			HasRule:     p.Rule() != nil,
			RuleVersion: p.RuleVersion(),
			Counters:    p.CounterCount(),
		})
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.point(w, r)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, api.RuleResponse{
		Point:       p.Name(),
		RuleVersion: p.RuleVersion(),
		Rule:        p.Rule(),
	})
}

// handlePutRule replaces a point's rule. The body is a rule document:
//
//	{"point_rule": {...}, "monitor_key_rules": [{"pattern": "...", ...}]}
func (s *Server) handlePutRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.point(w, r)
	if !ok {
		return
	}

	var doc tps.ControlRuleDoc
	if err := decodeJSON(r, &doc); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRequest, err.Error())
		return
	}
	rule, err := doc.ControlRule()
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRule, err.Error())
		return
	}

	if !s.applyRule(w, r, p.Name(), rule) {
		return
	}
	api.WriteJSON(w, http.StatusOK, api.RuleResponse{
		Point:       p.Name(),
		RuleVersion: p.RuleVersion(),
		Rule:        p.Rule(),
	})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.point(w, r)
	if !ok {
		return
	}
	if !s.applyRule(w, r, p.Name(), nil) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyRule(w http.ResponseWriter, r *http.Request, point string, rule *tps.ControlRule) bool {
	err := s.deps.Reloader.Apply(r.Context(), point, rule, rules.SourceAPI)
	switch {
	case err == nil:
		s.deps.Telemetry.Metrics.RecordRuleApplied(rules.SourceAPI)
		s.logger.InfoContext(r.Context(), "rule applied", "point", point, "source", rules.SourceAPI, "cleared", rule == nil)
		return true
	case errors.Is(err, tps.ErrInvalidRule), errors.Is(err, tps.ErrInvalidPattern):
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRule, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "failed to apply rule", "point", point, "error", err)
		api.WriteError(w, http.StatusInternalServerError, api.ErrorTypeServerError, err.Error())
	}
	return false
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p, ok := s.point(w, r)
	if !ok {
		return
	}
	stats := p.Stats()
	if stats == nil {
		stats = []tps.CounterStat{}
	}
	api.WriteJSON(w, http.StatusOK, api.StatsResponse{Point: p.Name(), Counters: stats})
}

func (s *Server) handleRulesStatus(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.deps.Reloader.Status())
}

func (s *Server) handleRulesReload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reloader.Path() == "" {
		api.WriteError(w, http.StatusServiceUnavailable, api.ErrorTypeUnavailable, "no rules file configured")
		return
	}
	err := s.deps.Reloader.Reload(r.Context())
	s.deps.Telemetry.Metrics.RecordReload(err)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRule, err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, s.deps.Reloader.Status())
}

// point resolves the {name} path value, answering 404 for unknown points.
func (s *Server) point(w http.ResponseWriter, r *http.Request) (*tps.MonitorPoint, bool) {
	name := r.PathValue("name")
	p, ok := s.deps.Manager.Point(name)
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.ErrorTypeNotFound,
			fmt.Sprintf("%s: %s", tps.ErrPointNotFound, name))
		return nil, false
	}
	return p, true
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
