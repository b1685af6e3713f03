// Package rules loads TPS control rules from YAML files and keeps a Manager
// in sync with them.
//
// # File format
//
//	points:
//	  - name: configPublish
//	    point_rule: {max_count: 5000, period: 1s, model: SUM, action: intercept}
//	    monitor_key_rules:
//	      - {pattern: "testKey:a*b", max_count: 500, period: 1s, model: EACH, action: intercept}
//	      - {pattern: "testKey:*", max_count: 2000000, period: 1s, model: SUM, action: intercept}
//
// Pattern order in the file is the registration order used to break
// specificity ties. "mode" and "model" are interchangeable.
//
// # Reloading
//
// A Reloader applies a file to a Manager and records every applied rule in a
// store.Backend. A Watcher calls Reload whenever the file changes, with
// debouncing so editors that write in several steps trigger one reload.
package rules
