// Package tps provides per-second admission control for request handling.
//
// A MonitorPoint guards one request type (for example "configPublish"). Its
// ControlRule holds an optional point-wide budget plus budgets keyed by
// pattern over typed monitor keys, such as "connectionId:*" or
// "content:a*b". Each request carries a connection id and zero or more
// MonitorKey values; every matching budget is checked and incremented, and
// the request is rejected if any intercepting budget is exceeded.
//
// Counters are fixed periods aligned to the wall clock and are created on
// first use. Sweep evicts counters that have been idle for a few periods or
// whose pattern disappeared from the rule.
//
// The Manager is the registry of points and the entry point for checks:
//
//	manager := tps.NewManager()
//	point := manager.NewPoint("configPublish")
//	_ = point.ApplyRule(tps.NewControlRule().
//	    SetPointRule(tps.MustRule(5000, time.Second, "SUM", "intercept")))
//
//	if err := manager.Check(ctx, "configPublish", connID, keys); errors.Is(err, tps.ErrThrottled) {
//	    // reply 429
//	}
package tps
