package reactor

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/rcrowley/go-metrics"
)

// acceptDelay simulates the cost of accepting a connection.
const acceptDelay = 50 * time.Millisecond

// AcceptHandler processes ACCEPT events, the simulated counterpart of the
// accept() system call. It only tracks a connection counter and sleeps to
// model connection-setup latency.
type AcceptHandler struct {
	name        string
	logger      logr.Logger
	connections metrics.Counter
}

// NewAcceptHandler builds an AcceptHandler whose connection counter is
// registered as "<name>.connections" on the given registry.
func NewAcceptHandler(name string, logger logr.Logger, registry metrics.Registry) *AcceptHandler {
	return &AcceptHandler{
		name:        name,
		logger:      logger.WithName(name),
		connections: metrics.NewRegisteredCounter(name+".connections", registry),
	}
}

// Handle accepts a simulated connection. An event of a foreign type is
// tolerated: logged and ignored without touching the counter.
func (h *AcceptHandler) Handle(ev *Event) error {
	if ev.Type() != EventAccept {
		h.logger.Info("unsupported event type, ignored", "type", ev.Type().String())
		return nil
	}

	h.logger.Info("accepting connection", "source", ev.SourceID(), "info", ev.Data())
	time.Sleep(acceptDelay)
	h.connections.Inc(1)
	h.logger.Info("connection accepted", "source", ev.SourceID(), "total", h.connections.Count())
	return nil
}

// Name returns the handler's identifier.
func (h *AcceptHandler) Name() string { return h.name }

// SupportedType reports that this handler is built for ACCEPT events.
func (h *AcceptHandler) SupportedType() EventType { return EventAccept }

// ConnectionCount returns the number of connections accepted so far.
func (h *AcceptHandler) ConnectionCount() int64 { return h.connections.Count() }

// ResetStatistics zeroes the connection counter.
func (h *AcceptHandler) ResetStatistics() {
	h.connections.Clear()
	h.logger.Info("statistics reset")
}
