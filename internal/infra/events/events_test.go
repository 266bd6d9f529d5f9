package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"newsmap/internal/config"
	"newsmap/internal/domain/entity"
	"newsmap/internal/handler/http/requestid"
	"newsmap/internal/usecase/notify"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	err   error
	calls int
}

func (f *fakeCache) InvalidateAll(context.Context) error {
	f.calls++
	return f.err
}

type fakeNotifier struct {
	mu         sync.Mutex
	outcome    notify.Outcome
	items      []int64
	requestIDs []string
}

func (f *fakeNotifier) HandleContentChange(ctx context.Context, itemID int64) notify.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, itemID)
	f.requestIDs = append(f.requestIDs, requestid.FromContext(ctx))
	return f.outcome
}

type staticSettings struct{ s config.Settings }

func (f staticSettings) Get() config.Settings { return f.s }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProcessor(pingOnUpdate bool) (*Processor, *fakeCache, *fakeNotifier) {
	s := config.Default()
	s.Ping.PingOnUpdate = pingOnUpdate
	cache := &fakeCache{}
	n := &fakeNotifier{outcome: notify.OutcomeDispatched}
	return NewProcessor(cache, n, staticSettings{s}, discardLogger()), cache, n
}

/* ─────────────────────────────── 1. Decode ─────────────────────────────── */

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    ContentChanged
		wantErr bool
	}{
		{
			name: "published",
			data: `{"item_id":42,"change":"published"}`,
			want: ContentChanged{ItemID: 42, Change: ChangePublished},
		},
		{
			name: "significant update",
			data: `{"item_id":7,"change":"updated","significant":true}`,
			want: ContentChanged{ItemID: 7, Change: ChangeUpdated, Significant: true},
		},
		{name: "not json", data: `item 42`, wantErr: true},
		{name: "missing item", data: `{"change":"deleted"}`, wantErr: true},
		{name: "unknown change", data: `{"item_id":3,"change":"archived"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))

			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_ValidationErrorIsExposed(t *testing.T) {
	_, err := Decode([]byte(`{"item_id":0,"change":"published"}`))

	var ve *entity.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "item_id", ve.Field)
}

/* ─────────────────────────────── 2. Processor ─────────────────────────────── */

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name         string
		event        ContentChanged
		pingOnUpdate bool
		wantNotified bool
	}{
		{name: "published notifies", event: ContentChanged{ItemID: 1, Change: ChangePublished}, pingOnUpdate: true, wantNotified: true},
		{name: "significant update notifies", event: ContentChanged{ItemID: 1, Change: ChangeUpdated, Significant: true}, pingOnUpdate: true, wantNotified: true},
		{name: "minor update only invalidates", event: ContentChanged{ItemID: 1, Change: ChangeUpdated}, pingOnUpdate: true},
		{name: "update trigger switched off", event: ContentChanged{ItemID: 1, Change: ChangeUpdated, Significant: true}, pingOnUpdate: false},
		{name: "unpublished only invalidates", event: ContentChanged{ItemID: 1, Change: ChangeUnpublished}, pingOnUpdate: true},
		{name: "deleted only invalidates", event: ContentChanged{ItemID: 1, Change: ChangeDeleted}, pingOnUpdate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			p, cache, n := newProcessor(tt.pingOnUpdate)

			// Act
			res := p.Process(context.Background(), tt.event)

			// Assert
			assert.Equal(t, 1, cache.calls)
			assert.True(t, res.Invalidated)
			assert.Equal(t, tt.wantNotified, res.Notified)
			if tt.wantNotified {
				assert.Equal(t, []int64{tt.event.ItemID}, n.items)
				assert.Equal(t, notify.OutcomeDispatched, res.Outcome)
			} else {
				assert.Empty(t, n.items)
				assert.Empty(t, res.Outcome)
			}
		})
	}
}

func TestProcessor_InvalidationFailureStillNotifies(t *testing.T) {
	// Arrange
	p, cache, n := newProcessor(true)
	cache.err = errors.New("redis: connection refused")

	// Act
	res := p.Process(context.Background(), ContentChanged{ItemID: 9, Change: ChangePublished})

	// Assert
	assert.False(t, res.Invalidated)
	assert.True(t, res.Notified)
	assert.Equal(t, []int64{9}, n.items)
}

/* ─────────────────────────────── 3. Subscriber ─────────────────────────────── */

func TestSubscriber_HandleMessage(t *testing.T) {
	// Arrange
	p, cache, n := newProcessor(true)
	s := NewSubscriber(nil, p, discardLogger())

	// Act
	s.handleMessage(&nats.Msg{Subject: Subject, Data: []byte(`{"item_id":42,"change":"published"}`)})

	// Assert
	assert.Equal(t, 1, cache.calls)
	require.Equal(t, []int64{42}, n.items)
	assert.NotEmpty(t, n.requestIDs[0], "each message gets a request id")
}

func TestSubscriber_HandleMessageDropsMalformed(t *testing.T) {
	p, cache, n := newProcessor(true)
	s := NewSubscriber(nil, p, discardLogger())

	s.handleMessage(&nats.Msg{Subject: Subject, Data: []byte(`{"change":"published"}`)})

	assert.Zero(t, cache.calls)
	assert.Empty(t, n.items)
}

func TestSubscriber_CloseBeforeStart(t *testing.T) {
	s := NewSubscriber(nil, nil, discardLogger())

	assert.NoError(t, s.Close())
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", discardLogger())

	assert.Error(t, err)
}
