package testsupport

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeRemote stands in for the NATS broker in service tests. Entities put
// with Put answer "<service>.get"; Reply sets the answer of any other subject.
type FakeRemote struct {
	mu       sync.Mutex
	entities map[string]map[string]json.RawMessage
	replies  map[string]json.RawMessage
	errors   map[string]error
	calls    map[string][]json.RawMessage
}

func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		entities: make(map[string]map[string]json.RawMessage),
		replies:  make(map[string]json.RawMessage),
		errors:   make(map[string]error),
		calls:    make(map[string][]json.RawMessage),
	}
}

// Put registers entity under service and id. It panics when entity does not
// encode as JSON.
func (f *FakeRemote) Put(service, id string, entity any) {
	data := mustJSON(entity)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entities[service] == nil {
		f.entities[service] = make(map[string]json.RawMessage)
	}
	f.entities[service][id] = data
}

// Reply sets the data returned for subject.
func (f *FakeRemote) Reply(subject string, reply any) {
	data := mustJSON(reply)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[subject] = data
}

// Fail makes every call to subject return err. A nil err clears it.
func (f *FakeRemote) Fail(subject string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errors, subject)
		return
	}
	f.errors[subject] = err
}

// Calls returns the request payloads sent to subject, in order.
func (f *FakeRemote) Calls(subject string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.calls[subject]...)
}

func (f *FakeRemote) Request(_ context.Context, subject string, req, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.calls[subject] = append(f.calls[subject], payload)
	reply, hasReply := f.replies[subject]
	failure := f.errors[subject]
	f.mu.Unlock()

	if failure != nil {
		return failure
	}
	if !hasReply || resp == nil {
		return nil
	}
	return json.Unmarshal(reply, resp)
}

func (f *FakeRemote) RemoteGet(_ context.Context, service, id string) (json.RawMessage, bool, error) {
	subject := service + ".get"

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[subject] = append(f.calls[subject], mustJSON(map[string]string{"id": id}))
	if err := f.errors[subject]; err != nil {
		return nil, false, err
	}
	data, ok := f.entities[service][id]
	return data, ok, nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("testsupport: " + err.Error())
	}
	return data
}
