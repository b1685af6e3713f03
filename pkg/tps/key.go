package tps

// Well-known monitor key types.
const (
	// KeyTypeConnection identifies the client connection a request arrived on.
	KeyTypeConnection = "connectionId"

	// KeyTypeGroup identifies the resource group a request targets.
	KeyTypeGroup = "group"

	// KeyTypeContent identifies the content key (data id) a request targets.
	KeyTypeContent = "content"
)

// MonitorKey is one typed dimension value extracted from a request.
//
// Type is a fixed discriminator (for example "connectionId"); Key is the
// value matched against the glob part of a pattern. Implementations must be
// immutable.
type MonitorKey interface {
	Type() string
	Key() string
}

// Key is the default MonitorKey implementation.
type Key struct {
	typ string
	key string
}

// NewKey returns a monitor key of the given type.
func NewKey(typ, key string) Key {
	return Key{typ: typ, key: key}
}

// ConnectionKey returns a connection id monitor key.
func ConnectionKey(connectionID string) Key {
	return NewKey(KeyTypeConnection, connectionID)
}

// GroupKey returns a resource group monitor key.
func GroupKey(group string) Key {
	return NewKey(KeyTypeGroup, group)
}

// ContentKey returns a content key monitor key.
func ContentKey(content string) Key {
	return NewKey(KeyTypeContent, content)
}

// Type returns the key type.
func (k Key) Type() string { return k.typ }

// Key returns the key value.
func (k Key) Key() string { return k.key }

// String returns the key in pattern form, "<type>:<key>".
func (k Key) String() string {
	return k.typ + patternSeparator + k.key
}
