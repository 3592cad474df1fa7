package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

func TestObserver(t *testing.T) {
	m := New()

	m.Dispatch(bus.Event{Kind: bus.TradeCompleted})
	m.Dispatch(bus.Event{Kind: bus.TradeCompleted})
	m.Delivered("trades", bus.TradeCompleted)
	m.Faulted("trades", "update")
	m.Transitioned("trades", worker.StateSetup, worker.StateRunning)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("trade_completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("trades")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Faults.WithLabelValues("trades", "update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerState.WithLabelValues("trades", "running")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WorkerState.WithLabelValues("trades", "setup")))

	m.Transitioned("trades", worker.StateRunning, worker.StateStopped)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WorkerState.WithLabelValues("trades", "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerState.WithLabelValues("trades", "stopped")))
}

func TestBreakerAndConnection(t *testing.T) {
	m := New()
	m.BreakerChanged("closed", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerOpen))
	m.BreakerChanged("open", "half-open")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerOpen))

	m.SetConnected("discord", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected.WithLabelValues("discord")))
}
