package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mechanico/internal/observability"
	"mechanico/internal/types"
)

func newHub(sinks ...Sink) *Hub {
	log, _ := test.NewNullLogger()
	return NewHub(log, sinks...)
}

func TestParseTopic(t *testing.T) {
	kind, id, ok := ParseTopic(BookingTopic("b1"))
	assert.True(t, ok)
	assert.Equal(t, "booking", kind)
	assert.Equal(t, types.ID("b1"), id)

	kind, id, ok = ParseTopic(ProviderTopic("p1"))
	assert.True(t, ok)
	assert.Equal(t, "provider", kind)
	assert.Equal(t, types.ID("p1"), id)

	for _, bad := range []string{"", "booking:", "vehicle:v1", "p1"} {
		_, _, ok := ParseTopic(bad)
		assert.False(t, ok, bad)
	}
}

func TestHub_FanOutByTopic(t *testing.T) {
	h := newHub()
	a := h.Subscribe("booking:b1")
	b := h.Subscribe("booking:b1")
	other := h.Subscribe("booking:b2")

	e := BookingStatusUpdate("booking:b1", "b1", "p1", "CONFIRMED", time.Now())
	require.NoError(t, h.Publish(context.Background(), e))

	for _, sub := range []*Subscription{a, b} {
		select {
		case got := <-sub.C:
			assert.Equal(t, "CONFIRMED", got.Status)
		default:
			t.Fatal("subscriber did not receive event")
		}
	}
	select {
	case got := <-other.C:
		t.Fatalf("unrelated topic received %+v", got)
	default:
	}
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	h := newHub()
	h.buffer = 2
	sub := h.Subscribe("provider:p1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = h.Publish(context.Background(), ProviderLocationUpdate("provider:p1", "p1", types.Point{Lat: float64(i)}, time.Now()))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.C, 2)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := newHub()
	sub := h.Subscribe("booking:b1")
	assert.Equal(t, 1, h.SubscriberCount("booking:b1"))

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.SubscriberCount("booking:b1"))

	require.NoError(t, h.Publish(context.Background(), BookingStatusUpdate("booking:b1", "b1", "p1", "CANCELLED", time.Now())))
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := newHub()
	sub := h.Subscribe("booking:b1")
	h.Close()
	_, ok := <-sub.C
	assert.False(t, ok)

	late := h.Subscribe("booking:b1")
	_, ok = <-late.C
	assert.False(t, ok)
}

type fakeSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Write(_ context.Context, e Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func TestHub_SinkErrorsAreNotReturned(t *testing.T) {
	ok := &fakeSink{}
	failing := &fakeSink{err: errors.New("broker down")}
	h := newHub(failing, ok)

	err := h.Publish(context.Background(), BookingStatusUpdate("booking:b1", "b1", "p1", "PENDING", time.Now()))
	require.NoError(t, err)
	h.Close()
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
}

// blockingSink holds every Write until release is closed.
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (b *blockingSink) Name() string { return "blocking" }

func (b *blockingSink) Write(_ context.Context, e Event) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func TestHub_PublishDoesNotWaitForSinks(t *testing.T) {
	log, _ := test.NewNullLogger()
	sink := &blockingSink{release: make(chan struct{})}
	h := newHubWithQueue(log, 1, sink)
	dropsBefore := testutil.ToFloat64(observability.SinkErrors.WithLabelValues("blocking"))

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Publish(context.Background(), BookingStatusUpdate("booking:b1", "b1", "p1", "PENDING", time.Now())))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	// One write in flight plus one queued; the rest is dropped.
	assert.GreaterOrEqual(t, testutil.ToFloat64(observability.SinkErrors.WithLabelValues("blocking"))-dropsBefore, 1.0)

	close(sink.release)
	h.Close()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.NotEmpty(t, sink.events)
	assert.LessOrEqual(t, len(sink.events), 2)
}

func TestHub_CloseIsIdempotentAndStopsPublishing(t *testing.T) {
	sink := &fakeSink{}
	h := newHub(sink)
	h.Close()
	h.Close()
	require.NoError(t, h.Publish(context.Background(), BookingStatusUpdate("booking:b1", "b1", "p1", "PENDING", time.Now())))
	assert.Empty(t, sink.events)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_KeysByTopic(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Write(context.Background(), ProviderLocationUpdate("booking:b1", "p1", types.Point{Lat: 35.7, Lng: 51.4}, at)))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "booking:b1", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "provider-location-update", decoded["type"])
	assert.Equal(t, "p1", decoded["providerId"])
	assert.Equal(t, 35.7, decoded["lat"])

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestStream_PushesEventsOverWebSocket(t *testing.T) {
	h := newHub()
	log, _ := test.NewNullLogger()
	upgrader := websocket.Upgrader{}
	subscribed := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub := h.Subscribe("booking:b1")
		close(subscribed)
		Stream(r.Context(), conn, h, sub, log)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("server never subscribed")
	}
	require.NoError(t, h.Publish(context.Background(), BookingStatusUpdate("booking:b1", "b1", "p1", "CONFIRMED", time.Now())))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeBookingStatus, got.Type)
	assert.Equal(t, types.ID("b1"), got.BookingID)
	assert.Equal(t, "CONFIRMED", got.Status)
}
