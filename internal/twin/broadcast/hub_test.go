package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/cartwin/internal/pkg/metrics"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

type fakeSubscriber struct {
	id      string
	vehicle string
	fail    error

	mu       sync.Mutex
	received []Message
	closed   bool
}

func (f *fakeSubscriber) ID() string        { return f.id }
func (f *fakeSubscriber) VehicleID() string { return f.vehicle }

func (f *fakeSubscriber) Send(b []byte) error {
	if f.fail != nil {
		return f.fail
	}
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	f.mu.Lock()
	f.received = append(f.received, m)
	f.mu.Unlock()
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSubscriber) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.received...)
}

func (f *fakeSubscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type staticSource map[string]*model.Snapshot

func (s staticSource) Read(id string) (*model.Snapshot, bool) {
	snap, ok := s[id]
	return snap, ok
}

func (s staticSource) ReadAll() []*model.Snapshot {
	var out []*model.Snapshot
	for _, id := range []string{"V1", "V2"} {
		if snap, ok := s[id]; ok {
			out = append(out, snap)
		}
	}
	return out
}

func startHub(t *testing.T, source SnapshotSource) *Hub {
	t.Helper()
	h := NewHub(source, clocktesting.NewFakeClock(time.Unix(0, 0)), 256)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, h.Running, time.Second, time.Millisecond)
	return h
}

// flush waits until every task queued so far has run.
func flush(t *testing.T, h *Hub) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, h.schedule(task{kind: "flush", run: func() { close(done) }}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub loop did not drain")
	}
}

func running(vehicleID string, fields model.Fields) *model.Snapshot {
	return &model.Snapshot{VehicleID: vehicleID, Liveness: model.LivenessRunning, Latest: fields}
}

func TestSubmitWithoutLoopIsDropped(t *testing.T) {
	h := NewHub(nil, nil, 1)
	assert.ErrorIs(t, h.Submit(running("V1", nil)), ErrNotRunning)
	assert.ErrorIs(t, h.Register(&fakeSubscriber{id: "a"}), ErrNotRunning)

	s := &fakeSubscriber{id: "a"}
	h.Unregister(s)
	assert.True(t, s.isClosed())
}

func TestBroadcastDeliversToAll(t *testing.T) {
	h := startHub(t, nil)
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	require.NoError(t, h.Submit(running("V1", model.Fields{"vehicle_speed": int64(27)})))
	flush(t, h)

	for _, s := range []*fakeSubscriber{a, b} {
		msgs := s.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, TypeTelemetryUpdate, msgs[0].Type)
		assert.Equal(t, "V1", msgs[0].VehicleID)
		assert.Equal(t, model.LivenessRunning, msgs[0].State)
		assert.EqualValues(t, 27, msgs[0].Data["vehicle_speed"])
		assert.NotNil(t, msgs[0].History)
	}
}

func TestFailingSubscriberIsEvicted(t *testing.T) {
	h := startHub(t, nil)
	a := &fakeSubscriber{id: "a"}
	bad := &fakeSubscriber{id: "b", fail: errors.New("broken pipe")}
	c := &fakeSubscriber{id: "c"}
	for _, s := range []Subscriber{a, bad, c} {
		require.NoError(t, h.Register(s))
	}

	require.NoError(t, h.Submit(running("V1", nil)))
	require.NoError(t, h.Submit(running("V1", nil)))
	flush(t, h)

	assert.Len(t, a.messages(), 2)
	assert.Len(t, c.messages(), 2)
	assert.True(t, bad.isClosed())
	assert.Equal(t, 2, h.Subscribers())
}

func TestScopedSubscriber(t *testing.T) {
	h := startHub(t, nil)
	v1 := &fakeSubscriber{id: "a", vehicle: "V1"}
	require.NoError(t, h.Register(v1))

	require.NoError(t, h.Submit(running("V2", nil)))
	require.NoError(t, h.Submit(running("V1", nil)))
	flush(t, h)

	msgs := v1.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "V1", msgs[0].VehicleID)
}

func TestRegisterPushesCatchUp(t *testing.T) {
	source := staticSource{
		"V1": running("V1", model.Fields{"rpm": int64(800)}),
		"V2": {VehicleID: "V2", Liveness: model.LivenessOffline, Latest: model.Fields{"rpm": int64(0)}},
	}
	h := startHub(t, source)

	fleet := &fakeSubscriber{id: "fleet"}
	scoped := &fakeSubscriber{id: "scoped", vehicle: "V2"}
	unknown := &fakeSubscriber{id: "unknown", vehicle: "V9"}
	require.NoError(t, h.Register(fleet))
	require.NoError(t, h.Register(scoped))
	require.NoError(t, h.Register(unknown))
	flush(t, h)

	assert.Len(t, fleet.messages(), 2)
	require.Len(t, scoped.messages(), 1)
	assert.Equal(t, model.LivenessOffline, scoped.messages()[0].State)
	assert.Empty(t, unknown.messages())
}

func TestUnregisterDuringBroadcast(t *testing.T) {
	h := startHub(t, nil)
	subs := make([]*fakeSubscriber, 20)
	for i := range subs {
		subs[i] = &fakeSubscriber{id: string(rune('a' + i))}
		require.NoError(t, h.Register(subs[i]))
	}
	flush(t, h)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 10 {
			_ = h.Submit(running("V1", nil))
		}
	}()
	go func() {
		defer wg.Done()
		for _, s := range subs[:10] {
			h.Unregister(s)
		}
	}()
	wg.Wait()
	flush(t, h)

	assert.Equal(t, 10, h.Subscribers())
	for _, s := range subs[10:] {
		assert.NotEmpty(t, s.messages())
		assert.False(t, s.isClosed())
	}
}

func TestQueueFull(t *testing.T) {
	h := NewHub(nil, nil, 1)
	h.running.Store(true)

	require.NoError(t, h.Submit(running("V1", nil)))
	assert.ErrorIs(t, h.Submit(running("V1", nil)), ErrQueueFull)
}

func TestRunClosesSubscribers(t *testing.T) {
	h := NewHub(nil, nil, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	require.Eventually(t, h.Running, time.Second, time.Millisecond)

	s := &fakeSubscriber{id: "a"}
	require.NoError(t, h.Register(s))
	flush(t, h)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, h.Running())
	assert.True(t, s.isClosed())
	assert.Equal(t, 0, h.Subscribers())
}

func TestShutdownClosesQueuedRegistrations(t *testing.T) {
	h := NewHub(nil, nil, 4)
	h.running.Store(true)

	pending := &fakeSubscriber{id: "pending"}
	require.NoError(t, h.Register(pending))
	require.NoError(t, h.Submit(running("V1", nil)))

	h.shutdown()

	assert.True(t, pending.isClosed())
	assert.Empty(t, pending.messages())
	assert.Equal(t, 0, h.Subscribers())
	assert.Empty(t, h.tasks)
	assert.ErrorIs(t, h.Register(&fakeSubscriber{id: "late"}), ErrNotRunning)
}

func TestRunClosesRegistrationQueuedAtCancel(t *testing.T) {
	h := NewHub(nil, nil, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	require.Eventually(t, h.Running, time.Second, time.Millisecond)

	busy := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, h.schedule(task{kind: "hold", run: func() {
		close(busy)
		<-release
	}}))
	<-busy

	pending := &fakeSubscriber{id: "pending"}
	require.NoError(t, h.Register(pending))
	cancel()
	close(release)

	require.NoError(t, <-done)
	assert.True(t, pending.isClosed())
	assert.Equal(t, 0, h.Subscribers())
}

func TestHubTaskMetricsByKind(t *testing.T) {
	count := func(kind string) float64 {
		return testutil.ToFloat64(metrics.HubTasksTotal.WithLabelValues(kind, "scheduled"))
	}
	broadcasts, registers, unregisters := count(taskBroadcast), count(taskRegister), count(taskUnregister)

	h := NewHub(nil, nil, 8)
	h.running.Store(true)
	s := &fakeSubscriber{id: "a"}
	require.NoError(t, h.Register(s))
	h.Unregister(s)
	require.NoError(t, h.Submit(running("V1", nil)))

	assert.Equal(t, broadcasts+1, count(taskBroadcast))
	assert.Equal(t, registers+1, count(taskRegister))
	assert.Equal(t, unregisters+1, count(taskUnregister))
}
