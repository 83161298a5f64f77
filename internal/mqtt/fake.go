package mqtt

import (
	"sync"
	"time"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

// FakeClient records published messages and lets tests inject sensor state.
// Implements Publisher and Subscriber.
type FakeClient struct {
	mu        sync.Mutex
	assembler *Assembler
	handler   SnapshotHandler

	Results      []ResultPayload
	SystemEvents []SystemEvent
	PublishErr   error
	Closed       bool
}

// NewFakeClient creates an empty fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{assembler: NewAssembler()}
}

// Subscribe stores the handler for Inject to deliver to.
func (f *FakeClient) Subscribe(handler SnapshotHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

// Inject simulates a broker message for one sensor field.
func (f *FakeClient) Inject(entityID, field, payload string) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()

	input, ready := f.assembler.Update(entityID, field, payload)
	if ready && handler != nil {
		handler(entityID, input)
	}
}

// PublishResult records the result payload.
func (f *FakeClient) PublishResult(entityID string, at time.Time, result model.OffsetResult) error {
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results = append(f.Results, ResultPayload{
		EntityID:   entityID,
		Timestamp:  at.UTC().Format(time.RFC3339),
		Offset:     result.Offset,
		Clamped:    result.Clamped,
		Confidence: result.Confidence,
		Reason:     result.Reason,
	})
	return nil
}

// PublishSystem records the lifecycle event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Close marks the fake closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
