package server

import (
	"net/http"
	"strings"

	"mercator-hq/tollgate/pkg/selector"
	"mercator-hq/tollgate/pkg/server/api"
)

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	servers := s.deps.Servers
	if servers == nil {
		api.WriteError(w, http.StatusServiceUnavailable, api.ErrorTypeUnavailable, "no cluster servers configured")
		return
	}

	current, err := servers.CurrentServer()
	if err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, api.ErrorTypeUnavailable, err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, api.ServersResponse{
		Name:    servers.Name(),
		Current: current,
		Servers: servers.ServerList(),
	})
}

// handleSelect filters the posted providers. A condition prefixed with a
// registered selector type ("label:zone=eu-1") uses that selector; any other
// condition goes to the label selector.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req api.SelectRequest
	if err := decodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRequest, err.Error())
		return
	}

	base := s.selectors[selector.LabelSelectorType]
	expr := req.Condition
	if t, e, ok := strings.Cut(req.Condition, ":"); ok {
		if sel, known := s.selectors[t]; known {
			base, expr = sel, e
		}
	}
	if base == nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRequest, "no selector for condition")
		return
	}

	sel, err := base.Parse(expr)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorTypeInvalidRequest, err.Error())
		return
	}

	instances := sel.Select(req.Context)
	if instances == nil {
		instances = []*selector.Instance{}
	}
	api.WriteJSON(w, http.StatusOK, api.SelectResponse{Type: sel.Type(), Instances: instances})
}
