// Package address resolves the list of peer servers a tollgate node talks
// to.
//
// A Plugin produces the list; ServerListManager wraps a plugin and hands
// out servers in round-robin order. The admission engine does not depend on
// this package. It backs the cluster section of the admin API.
//
//	plugin := address.NewPropertyPlugin("10.0.0.1:8848,10.0.0.2:8848")
//	servers := address.NewServerListManager(plugin, logger)
//	if err := servers.Start(ctx); err != nil {
//	    return err
//	}
//	defer servers.Shutdown(ctx)
//
//	next, err := servers.NextServer()
package address
