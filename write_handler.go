package reactor

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/rcrowley/go-metrics"
)

const (
	// formatDelay simulates encoding the outbound payload.
	formatDelay = 25 * time.Millisecond
	// transmitDelay simulates the low-level write itself.
	transmitDelay = 10 * time.Millisecond
)

// WriteHandler processes WRITE events, the simulated counterpart of the
// write() system call. The payload is formatted with a timestamp prefix,
// two sequential sleeps model encode and transmit cost, and the write always
// succeeds since no real I/O failure path exists.
type WriteHandler struct {
	name         string
	logger       logr.Logger
	bytesWritten metrics.Counter
	operations   metrics.Counter
}

// NewWriteHandler builds a WriteHandler whose counters are registered as
// "<name>.bytes" and "<name>.operations" on the given registry.
func NewWriteHandler(name string, logger logr.Logger, registry metrics.Registry) *WriteHandler {
	return &WriteHandler{
		name:         name,
		logger:       logger.WithName(name),
		bytesWritten: metrics.NewRegisteredCounter(name+".bytes", registry),
		operations:   metrics.NewRegisteredCounter(name+".operations", registry),
	}
}

// Handle writes a simulated payload. Foreign event types are tolerated and
// ignored; a non-string or missing payload is logged and skipped.
func (h *WriteHandler) Handle(ev *Event) error {
	if ev.Type() != EventWrite {
		h.logger.Info("unsupported event type, ignored", "type", ev.Type().String())
		return nil
	}

	op := h.operations.Count() + 1
	h.operations.Inc(1)
	h.logger.Info("write started", "op", op, "target", ev.SourceID())

	data, ok := ev.Data().(string)
	if !ok || data == "" {
		h.logger.Info("empty payload, write skipped", "op", op, "target", ev.SourceID())
		return nil
	}

	formatted := h.formatForTransmission(data)
	time.Sleep(formatDelay)
	h.transmit(formatted, ev.SourceID())

	h.bytesWritten.Inc(int64(len(data)))
	h.logger.Info("write finished", "op", op, "bytes", len(data), "totalBytes", h.bytesWritten.Count())
	return nil
}

// formatForTransmission prepends a timestamp, modelling protocol framing.
func (h *WriteHandler) formatForTransmission(data string) string {
	formatted := fmt.Sprintf("[%d] %s", time.Now().UnixMilli(), data)
	h.logger.V(1).Info("payload formatted", "payload", formatted)
	return formatted
}

// transmit models the low-level write, which always succeeds.
func (h *WriteHandler) transmit(data, target string) {
	h.logger.V(1).Info("transmitting", "target", target, "payload", data)
	time.Sleep(transmitDelay)
}

// Name returns the handler's identifier.
func (h *WriteHandler) Name() string { return h.name }

// SupportedType reports that this handler is built for WRITE events.
func (h *WriteHandler) SupportedType() EventType { return EventWrite }

// TotalBytesWritten returns the cumulative payload bytes flushed.
func (h *WriteHandler) TotalBytesWritten() int64 { return h.bytesWritten.Count() }

// WriteOperationCount returns the number of WRITE events processed.
func (h *WriteHandler) WriteOperationCount() int64 { return h.operations.Count() }

// ResetStatistics zeroes both counters.
func (h *WriteHandler) ResetStatistics() {
	h.bytesWritten.Clear()
	h.operations.Clear()
	h.logger.Info("statistics reset")
}
