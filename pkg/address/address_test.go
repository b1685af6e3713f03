package address

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{
			name:  "comma separated",
			input: "10.0.0.1:8848,10.0.0.2:8848",
			want:  []string{"http://10.0.0.1:8848", "http://10.0.0.2:8848"},
		},
		{
			name:  "semicolons and spaces",
			input: " 10.0.0.1:8848 ; https://peer:443 ",
			want:  []string{"http://10.0.0.1:8848", "https://peer:443"},
		},
		{
			name:  "empty entries dropped",
			input: "a,,b;",
			want:  []string{"http://a", "http://b"},
		},
		{name: "empty", input: "", wantErr: ErrEmptyAddress},
		{name: "separators only", input: " , ; ", wantErr: ErrEmptyAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServerList(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPropertyPlugin(t *testing.T) {
	p := NewPropertyPlugin("10.0.0.1:8848")
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, PropertyPluginName, p.Name())
	assert.Equal(t, []string{"http://10.0.0.1:8848"}, p.ServerList())

	// The returned slice is a copy.
	list := p.ServerList()
	list[0] = "mutated"
	assert.Equal(t, "http://10.0.0.1:8848", p.ServerList()[0])

	var notified [][]string
	p.RegisterListener(func(servers []string) { notified = append(notified, servers) })

	require.NoError(t, p.SetAddresses("10.0.0.1:8848"))
	assert.Empty(t, notified, "unchanged list should not notify")

	require.NoError(t, p.SetAddresses("10.0.0.1:8848,10.0.0.3:8848"))
	require.Len(t, notified, 1)
	assert.Len(t, notified[0], 2)

	assert.ErrorIs(t, p.SetAddresses(""), ErrEmptyAddress)
	assert.Len(t, p.ServerList(), 2, "failed update keeps the list")
}

func TestPropertyPlugin_StartEmpty(t *testing.T) {
	err := NewPropertyPlugin("").Start(context.Background())
	assert.ErrorIs(t, err, ErrEmptyAddress)
}

func TestServerListManager_Rotation(t *testing.T) {
	m := NewServerListManager(NewPropertyPlugin("a:1,b:2,c:3"), "", nil)

	_, err := m.CurrentServer()
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()), "second start is a no-op")

	cur, err := m.CurrentServer()
	require.NoError(t, err)
	assert.Equal(t, "http://a:1", cur)

	var got []string
	for i := 0; i < 4; i++ {
		next, err := m.NextServer()
		require.NoError(t, err)
		got = append(got, next)
	}
	assert.Equal(t, []string{"http://b:2", "http://c:3", "http://a:1", "http://b:2"}, got)

	cur, err = m.CurrentServer()
	require.NoError(t, err)
	assert.Equal(t, "http://b:2", cur)
}

func TestServerListManager_ConcurrentRotation(t *testing.T) {
	m := NewServerListManager(NewPropertyPlugin("a,b"), "", nil)
	require.NoError(t, m.Start(context.Background()))

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.NextServer()
			if err != nil {
				return
			}
			mu.Lock()
			counts[s]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counts["http://a"])
	assert.Equal(t, 50, counts["http://b"])
}

type dynamicPlugin struct {
	servers []string
}

func (d *dynamicPlugin) Name() string                       { return "dns/srv" }
func (d *dynamicPlugin) Start(ctx context.Context) error    { return nil }
func (d *dynamicPlugin) ServerList() []string               { return d.servers }
func (d *dynamicPlugin) RegisterListener(l Listener)        {}
func (d *dynamicPlugin) Shutdown(ctx context.Context) error { return nil }

func TestServerListManager_Name(t *testing.T) {
	tests := []struct {
		name     string
		plugin   Plugin
		override string
		want     string
	}{
		{
			name:   "fixed plugin",
			plugin: NewPropertyPlugin("10.0.0.1:8848;https://peer:443"),
			want:   "defaultPlugin-property-address-plugin-10.0.0.1_8848-peer_443",
		},
		{
			name:   "custom plugin",
			plugin: &dynamicPlugin{servers: []string{"x"}},
			want:   "customPlugin-dns_srv",
		},
		{
			name:     "override",
			plugin:   NewPropertyPlugin("a"),
			override: "primary",
			want:     "primary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewServerListManager(tt.plugin, tt.override, nil)
			require.NoError(t, m.Start(context.Background()))
			assert.Equal(t, tt.want, m.Name())
		})
	}
}

func TestServerListManager_Listeners(t *testing.T) {
	p := NewPropertyPlugin("a")
	m := NewServerListManager(p, "", nil)
	require.NoError(t, m.Start(context.Background()))

	var got []string
	m.AddListener(func(servers []string) { got = servers })

	require.NoError(t, p.SetAddresses("a,b"))
	assert.Equal(t, []string{"http://a", "http://b"}, got)
	assert.Len(t, m.ServerList(), 2)
}

func TestServerListManager_EmptyList(t *testing.T) {
	m := NewServerListManager(&dynamicPlugin{}, "", nil)
	require.NoError(t, m.Start(context.Background()))

	_, err := m.NextServer()
	assert.ErrorIs(t, err, ErrNoServers)
}

func TestServerListManager_Shutdown(t *testing.T) {
	m := NewServerListManager(NewPropertyPlugin("a"), "", nil)
	require.NoError(t, m.Shutdown(context.Background()), "shutdown before start")
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	_, err := m.CurrentServer()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestServerListManager_StartError(t *testing.T) {
	m := NewServerListManager(NewPropertyPlugin(""), "", nil)
	err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrEmptyAddress)
}
