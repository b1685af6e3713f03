package main

import (
	"fmt"
	"strings"

	"mercator-hq/tollgate/pkg/tps"
)

// parseKeys parses "type:key" flag values. The key part may itself contain
// colons.
func parseKeys(values []string) ([]tps.MonitorKey, error) {
	keys := make([]tps.MonitorKey, 0, len(values))
	for _, v := range values {
		typ, key, ok := strings.Cut(v, ":")
		if !ok || typ == "" {
			return nil, fmt.Errorf("invalid key %q: want type:key", v)
		}
		keys = append(keys, tps.NewKey(typ, key))
	}
	return keys, nil
}
