package address

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	defaultPluginPrefix = "defaultPlugin"
	customPluginPrefix  = "customPlugin"
)

// fixedPlugin is implemented by plugins whose list comes from static
// configuration.
type fixedPlugin interface {
	Fixed() bool
}

// ServerListManager hands out servers from a plugin's list in round-robin
// order. It is safe for concurrent use.
type ServerListManager struct {
	plugin Plugin
	logger *slog.Logger
	name   string

	index atomic.Uint64

	mu        sync.Mutex
	started   bool
	listeners []Listener
}

// NewServerListManager creates a manager for plugin. name overrides the
// derived name when non-empty.
func NewServerListManager(plugin Plugin, name string, logger *slog.Logger) *ServerListManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerListManager{
		plugin: plugin,
		name:   name,
		logger: logger.With("component", "address.manager"),
	}
}

// Start starts the plugin once. Later calls are no-ops.
func (m *ServerListManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if m.plugin == nil {
		return fmt.Errorf("address: plugin is nil")
	}
	if err := m.plugin.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", m.plugin.Name(), err)
	}

	if m.name == "" {
		m.name = serverListName(m.plugin)
	}
	m.plugin.RegisterListener(m.onChange)
	m.started = true

	m.logger.Info("server list started",
		"name", m.name,
		"plugin", m.plugin.Name(),
		"servers", len(m.plugin.ServerList()),
	)
	return nil
}

// Name returns the server list name. It is derived at Start from the
// plugin: "defaultPlugin-<plugin>-<servers>" for fixed plugins and
// "customPlugin-<plugin>" otherwise, with "/" and ":" replaced by "_".
func (m *ServerListManager) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// ServerList returns the current server list.
func (m *ServerListManager) ServerList() []string {
	return m.plugin.ServerList()
}

// CurrentServer returns the server at the current rotation index.
func (m *ServerListManager) CurrentServer() (string, error) {
	return m.pick(m.index.Load())
}

// NextServer advances the rotation and returns the new current server.
func (m *ServerListManager) NextServer() (string, error) {
	return m.pick(m.index.Add(1))
}

func (m *ServerListManager) pick(i uint64) (string, error) {
	if !m.isStarted() {
		return "", ErrNotStarted
	}
	servers := m.plugin.ServerList()
	if len(servers) == 0 {
		return "", ErrNoServers
	}
	return servers[i%uint64(len(servers))], nil
}

// AddListener registers a callback for server list changes.
func (m *ServerListManager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *ServerListManager) onChange(servers []string) {
	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	name := m.name
	m.mu.Unlock()

	m.logger.Info("server list changed", "name", name, "servers", len(servers))
	for _, l := range listeners {
		l(servers)
	}
}

// Shutdown shuts the plugin down.
func (m *ServerListManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false
	return m.plugin.Shutdown(ctx)
}

func (m *ServerListManager) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func serverListName(p Plugin) string {
	var name string
	if f, ok := p.(fixedPlugin); ok && f.Fixed() {
		name = defaultPluginPrefix + "-" + p.Name() + "-" + fixedNameSuffix(p.ServerList())
	} else {
		name = customPluginPrefix + "-" + p.Name()
	}
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, ":", "_")
}

func fixedNameSuffix(servers []string) string {
	parts := make([]string, len(servers))
	for i, s := range servers {
		s = strings.TrimPrefix(s, httpsPrefix)
		s = strings.TrimPrefix(s, httpPrefix)
		parts[i] = strings.ReplaceAll(s, ":", "_")
	}
	return strings.Join(parts, "-")
}
