package address

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrEmptyAddress is returned when a plugin has no addresses to parse.
	ErrEmptyAddress = errors.New("address: server address list is empty")

	// ErrNoServers is returned when a server is requested from an empty list.
	ErrNoServers = errors.New("address: no servers available")

	// ErrNotStarted is returned when a manager is used before Start.
	ErrNotStarted = errors.New("address: server list manager not started")
)

// Listener is called with the new server list after it changes.
type Listener func(servers []string)

// Plugin produces a list of server addresses.
type Plugin interface {
	// Name identifies the plugin.
	Name() string

	// Start resolves the initial server list.
	Start(ctx context.Context) error

	// ServerList returns a copy of the current server list.
	ServerList() []string

	// RegisterListener adds a callback invoked when the list changes.
	RegisterListener(l Listener)

	// Shutdown releases plugin resources.
	Shutdown(ctx context.Context) error
}

// PropertyPluginName is the name of the static address plugin.
const PropertyPluginName = "property-address-plugin"

const (
	httpPrefix  = "http://"
	httpsPrefix = "https://"
)

// PropertyPlugin serves a fixed list of addresses taken from configuration.
// Addresses are separated by commas or semicolons; an address without a
// scheme gets "http://".
type PropertyPlugin struct {
	mu        sync.RWMutex
	raw       string
	servers   []string
	listeners []Listener
}

// NewPropertyPlugin creates a plugin for the given address string.
func NewPropertyPlugin(addrs string) *PropertyPlugin {
	return &PropertyPlugin{raw: addrs}
}

// Name implements Plugin.
func (p *PropertyPlugin) Name() string { return PropertyPluginName }

// Fixed reports that the list only changes through SetAddresses.
func (p *PropertyPlugin) Fixed() bool { return true }

// Start implements Plugin.
func (p *PropertyPlugin) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	servers, err := ParseServerList(p.raw)
	if err != nil {
		return err
	}
	p.servers = servers
	return nil
}

// SetAddresses replaces the address string and notifies listeners when the
// resulting list differs.
func (p *PropertyPlugin) SetAddresses(addrs string) error {
	servers, err := ParseServerList(addrs)
	if err != nil {
		return err
	}

	p.mu.Lock()
	changed := !equal(p.servers, servers)
	p.raw = addrs
	p.servers = servers
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l(append([]string(nil), servers...))
		}
	}
	return nil
}

// ServerList implements Plugin.
func (p *PropertyPlugin) ServerList() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.servers...)
}

// RegisterListener implements Plugin.
func (p *PropertyPlugin) RegisterListener(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Shutdown implements Plugin.
func (p *PropertyPlugin) Shutdown(ctx context.Context) error { return nil }

// ParseServerList splits addrs on commas and semicolons, trims each entry,
// drops empty entries and adds "http://" where no scheme is present.
func ParseServerList(addrs string) ([]string, error) {
	fields := strings.FieldsFunc(addrs, func(r rune) bool {
		return r == ',' || r == ';'
	})

	servers := make([]string, 0, len(fields))
	for _, f := range fields {
		addr := strings.TrimSpace(f)
		if addr == "" {
			continue
		}
		if !strings.HasPrefix(addr, httpPrefix) && !strings.HasPrefix(addr, httpsPrefix) {
			addr = httpPrefix + addr
		}
		servers = append(servers, addr)
	}
	if len(servers) == 0 {
		return nil, ErrEmptyAddress
	}
	return servers, nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
