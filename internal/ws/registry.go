package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/metrics"
	"github.com/nwthomas/deep-learning-research-agent/internal/transport"
)

// ErrInvalidCeiling is returned for a non-positive connection ceiling.
var ErrInvalidCeiling = errors.New("connection ceiling must be positive")

// slot is one admitted connection. It owns its transport.
type slot struct {
	transport  transport.Transport
	admittedAt time.Time
}

// ConnectionStats is a snapshot of registry occupancy.
type ConnectionStats struct {
	Active    int `json:"active_connections"`
	Max       int `json:"max_connections"`
	Available int `json:"available_slots"`
}

// Registry tracks live connection slots and enforces the ceiling.
type Registry struct {
	mu      sync.Mutex
	slots   map[string]*slot
	max     int
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRegistry creates a Registry admitting at most max connections.
func NewRegistry(max int, m *metrics.Metrics, logger *zap.Logger) (*Registry, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCeiling, max)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		slots:   make(map[string]*slot),
		max:     max,
		metrics: m,
		logger:  logger,
	}, nil
}

// Admit either rejects t with the overload close code or accepts it and
// stores a new slot. The count check and the insert happen under one lock,
// so concurrent arrivals can never exceed the ceiling; the slot is reserved
// before the handshake and the handshake itself runs unlocked. A failed
// handshake frees the reservation and returns the error.
func (r *Registry) Admit(t transport.Transport) (string, bool, error) {
	id, active, ok := r.reserve(t)
	if !ok {
		r.metrics.ConnectionRejected()
		r.logger.Warn("connection rejected, server at capacity",
			zap.Int("active", active),
			zap.Int("max", r.max))
		if err := t.Reject(transport.CloseTryAgainLater, transport.OverloadReason); err != nil {
			r.logger.Debug("reject handshake failed", zap.Error(err))
		}
		return "", false, nil
	}

	if err := t.Accept(); err != nil {
		r.mu.Lock()
		delete(r.slots, id)
		r.mu.Unlock()
		return "", false, fmt.Errorf("accept connection: %w", err)
	}

	r.metrics.ConnectionOpened()
	r.logger.Info("connection admitted",
		zap.String("conn_id", id),
		zap.Int("active", active),
		zap.Int("max", r.max))
	return id, true, nil
}

// reserve stores a slot for t unless the ceiling is reached. It returns the
// number of slots held afterwards.
func (r *Registry) reserve(t transport.Transport) (string, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.slots) >= r.max {
		return "", len(r.slots), false
	}

	id := uuid.New().String()
	for r.slots[id] != nil {
		id = uuid.New().String()
	}
	r.slots[id] = &slot{transport: t, admittedAt: time.Now()}
	return id, len(r.slots), true
}

// Release frees the connection's slot and closes its transport. Unknown ids
// are ignored, so releasing twice is safe.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	s, ok := r.slots[id]
	if ok {
		delete(r.slots, id)
	}
	active := len(r.slots)
	r.mu.Unlock()

	if !ok {
		return
	}

	if err := s.transport.Close(); err != nil {
		// already closed by the peer
		r.logger.Debug("close on release", zap.String("conn_id", id), zap.Error(err))
	}
	r.metrics.ConnectionClosed()
	r.logger.Info("connection released",
		zap.String("conn_id", id),
		zap.Duration("held", time.Since(s.admittedAt)),
		zap.Int("active", active))
}

// Stats returns the current occupancy.
func (r *Registry) Stats() ConnectionStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ConnectionStats{
		Active:    len(r.slots),
		Max:       r.max,
		Available: r.max - len(r.slots),
	}
}
