// Package modules holds the concrete display and feed workers built on the
// bridge system context.
package modules

import (
	"github.com/tinyland-inc/gamelink/pkg/bridge"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

// All returns one of each module worker in registration order.
func All(sys *bridge.SystemContext) []worker.Worker {
	return []worker.Worker{
		NewServerStatus(sys),
		NewTradeFeed(sys),
		NewLoginFeed(sys),
		NewElectionFeed(sys),
		NewActivity(sys),
	}
}
