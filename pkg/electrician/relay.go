// Package electrician publishes layer payloads to an Electrician forward relay.
package electrician

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joeydtaylor/layman/pkg/codec"
)

// ErrNoRelay is returned by a relay layer when no target is configured and
// the caller asked for a real relay.
var ErrNoRelay = errors.New("electrician: no relay target configured")

// RelayRequest is the byte-level publish envelope.
type RelayRequest struct {
	Topic   string            `json:"topic"`
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout time.Duration     `json:"-"`
}

// RelayClient is the minimal interface the relay layer needs.
type RelayClient interface {
	Publish(ctx context.Context, rr RelayRequest) error
}

// Encode marshals rr into the wire frame carried by the relay.
func Encode(rr RelayRequest) ([]byte, error) {
	if rr.Topic == "" {
		return nil, fmt.Errorf("relay: missing topic")
	}
	return codec.JSONStrict.Marshal(rr)
}

// Decode is the inverse of Encode, for receivers and tests.
func Decode(b []byte) (RelayRequest, error) {
	var rr RelayRequest
	err := codec.JSONStrict.Unmarshal(b, &rr)
	return rr, err
}

// noopRelay accepts publishes and discards them.
type noopRelay struct{}

func (noopRelay) Publish(_ context.Context, rr RelayRequest) error {
	_, err := Encode(rr)
	return err
}

// Noop returns a RelayClient that validates and drops every publish.
func Noop() RelayClient { return noopRelay{} }

// Memory keeps published frames in order; useful for tests and local runs.
type Memory struct {
	mu   sync.Mutex
	msgs []RelayRequest
}

func (m *Memory) Publish(ctx context.Context, rr RelayRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := Encode(rr)
	if err != nil {
		return err
	}
	got, err := Decode(b)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.msgs = append(m.msgs, got)
	m.mu.Unlock()
	return nil
}

// Published returns a copy of everything published so far.
func (m *Memory) Published() []RelayRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RelayRequest(nil), m.msgs...)
}
