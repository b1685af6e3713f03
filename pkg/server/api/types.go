// Package api defines the JSON bodies of the tollgate admin API.
package api

import (
	"encoding/json"
	"net/http"

	"mercator-hq/tollgate/pkg/selector"
	"mercator-hq/tollgate/pkg/tps"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Point, Pattern and Limit describe a throttled check.
	Point   string `json:"point,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Limit   int64  `json:"limit,omitempty"`
}

// Error types.
const (
	// ErrorTypeInvalidRequest indicates a malformed request (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeInvalidRule indicates a rule that fails validation (400).
	ErrorTypeInvalidRule = "invalid_rule"

	// ErrorTypeNotFound indicates an unknown resource (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeThrottled indicates a request rejected by a TPS limit (429).
	ErrorTypeThrottled = "tps_throttled"

	// ErrorTypeServerError indicates an internal error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeUnavailable indicates a feature that is not configured (503).
	ErrorTypeUnavailable = "service_unavailable"
)

// NewError builds an error response.
func NewError(errType, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Type: errType, Message: message}}
}

// KeyDoc is one monitor key in a check request.
type KeyDoc struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// CheckRequest is the body of POST /v1/tps/check.
type CheckRequest struct {
	Point        string   `json:"point"`
	ConnectionID string   `json:"connection_id"`
	Keys         []KeyDoc `json:"keys"`
}

// MonitorKeys converts the request keys.
func (r CheckRequest) MonitorKeys() []tps.MonitorKey {
	keys := make([]tps.MonitorKey, 0, len(r.Keys))
	for _, k := range r.Keys {
		keys = append(keys, tps.NewKey(k.Type, k.Key))
	}
	return keys
}

// CheckResult describes one rule checked within a decision.
type CheckResult struct {
	Pattern  string `json:"pattern,omitempty"`
	Key      string `json:"key,omitempty"`
	MaxCount int64  `json:"max_count"`
	Mode     string `json:"model"`
	Action   string `json:"action"`
	Admitted bool   `json:"admitted"`
	Count    int64  `json:"count"`
}

// CheckResponse is the body of an admitted check.
type CheckResponse struct {
	Point       string        `json:"point"`
	Allowed     bool          `json:"allowed"`
	RuleVersion uint64        `json:"rule_version"`
	Checks      []CheckResult `json:"checks,omitempty"`
}

// NewCheckResponse converts a decision.
func NewCheckResponse(d tps.Decision) CheckResponse {
	resp := CheckResponse{
		Point:       d.Point,
		Allowed:     d.Allowed,
		RuleVersion: d.RuleVersion,
	}
	for _, c := range d.Checks {
		resp.Checks = append(resp.Checks, CheckResult{
			Pattern:  c.Pattern,
			Key:      c.Key,
			MaxCount: c.Rule.MaxCount,
			Mode:     string(c.Rule.Mode),
			Action:   string(c.Rule.Action),
			Admitted: c.Admitted,
			Count:    c.Count,
		})
	}
	return resp
}

// PointSummary describes one registered point.
type PointSummary struct {
	Name        string `json:"name"`
	HasRule     bool   `json:"has_rule"`
	RuleVersion uint64 `json:"rule_version"`
	Counters    int    `json:"counters"`
}

// PointsResponse is the body of GET /v1/tps/points.
type PointsResponse struct {
	Points []PointSummary `json:"points"`
}

// RuleResponse is the body of GET and PUT /v1/tps/points/{name}/rule.
type RuleResponse struct {
	Point       string           `json:"point"`
	RuleVersion uint64           `json:"rule_version"`
	Rule        *tps.ControlRule `json:"rule"`
}

// StatsResponse is the body of GET /v1/tps/points/{name}/stats.
type StatsResponse struct {
	Point    string            `json:"point"`
	Counters []tps.CounterStat `json:"counters"`
}

// ServersResponse is the body of GET /v1/cluster/servers.
type ServersResponse struct {
	Name    string   `json:"name"`
	Current string   `json:"current"`
	Servers []string `json:"servers"`
}

// SelectRequest is the body of POST /v1/cluster/select.
type SelectRequest struct {
	Condition string           `json:"condition"`
	Context   selector.Context `json:"context"`
}

// SelectResponse is the body of a selection result.
type SelectResponse struct {
	Type      string               `json:"type"`
	Instances []*selector.Instance `json:"instances"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, code int, errType, message string) {
	WriteJSON(w, code, NewError(errType, message))
}
