// Package window provides the per-dimension counters used for TPS control.
//
// # Overview
//
// A Counter counts requests in fixed periods aligned to wall-clock
// boundaries. The first request after a period ends starts a new period from
// zero; periods with no traffic are never accumulated.
//
//	c := window.NewCounter()
//	res := c.TryAcquire(time.Now(), 500, time.Second)
//	if !res.Admitted {
//	    // ceiling reached for this second
//	}
//
// # Offered vs admitted load
//
// Attempts over the ceiling are not admitted but are still counted in a
// separate blocked count, so a monitor-only budget reports true offered load.
//
// # Eviction
//
// Counters that have been idle for several periods can be retired with
// RetireIfIdle. A retired counter refuses further updates and reports
// Retired, which tells the owner to create a fresh counter instead.
package window
