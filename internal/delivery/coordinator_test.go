package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenty/webchannel-server-go/internal/cache"
	"github.com/quenty/webchannel-server-go/internal/correlation"
	"github.com/quenty/webchannel-server-go/internal/model"
	"github.com/quenty/webchannel-server-go/internal/registry"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []model.ChatMessage
	fail   bool
}

func (c *fakeConn) Send(msg model.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("connection closed")
	}
	c.frames = append(c.frames, msg)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Frames() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ChatMessage(nil), c.frames...)
}

type fakePipeline struct {
	mu       sync.Mutex
	requests []model.DispatchRequest
	err      error
}

func (p *fakePipeline) Dispatch(_ context.Context, req model.DispatchRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.requests = append(p.requests, req)
	return nil
}

func (p *fakePipeline) Requests() []model.DispatchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.DispatchRequest(nil), p.requests...)
}

type fakeArchive struct {
	mu   sync.Mutex
	msgs []model.ArchivedMessage
}

func (a *fakeArchive) Insert(_ context.Context, msg model.ArchivedMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
	return nil
}

type fixture struct {
	tracker     *correlation.Tracker
	registry    *registry.Registry
	cache       *cache.Cache
	pipeline    *fakePipeline
	archive     *fakeArchive
	coordinator *Coordinator
	conn        *fakeConn
	session     *model.Session
}

func newFixture(correlationTTL time.Duration) *fixture {
	f := &fixture{
		tracker:  correlation.NewTracker(correlationTTL),
		registry: registry.New(),
		cache: cache.New(map[model.ContentKind]time.Duration{
			model.ContentKindTrends:  time.Minute,
			model.ContentKindTopics:  time.Minute,
			model.ContentKindSummary: time.Minute,
		}, time.Minute),
		pipeline: &fakePipeline{},
		archive:  &fakeArchive{},
		conn:     &fakeConn{},
	}
	f.coordinator = NewCoordinator(f.tracker, f.registry, f.cache, f.pipeline, f.archive)

	now := time.Now()
	f.session = &model.Session{
		ID:            "sess_A",
		UserID:        "u_1",
		Email:         "reader@example.com",
		Conn:          f.conn,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}
	f.registry.Register(f.session)
	return f
}

func TestCoordinator_RequestContent(t *testing.T) {
	t.Run("dispatches to the pipeline with a correlation entry", func(t *testing.T) {
		f := newFixture(10 * time.Minute)

		err := f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1")
		require.NoError(t, err)

		reqs := f.pipeline.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "corr_1", reqs[0].CorrelationID)
		assert.Equal(t, "sess_A", reqs[0].SessionID)
		assert.Equal(t, model.ContentKindTrends, reqs[0].Kind)
		assert.Equal(t, "tech", reqs[0].Tag)

		entry := f.tracker.Resolve("corr_1")
		require.NotNil(t, entry)
		assert.Equal(t, "sess_A", entry.SessionID)
		assert.Equal(t, "u_1", entry.UserID)
	})

	t.Run("generates a correlation id when none is supplied", func(t *testing.T) {
		f := newFixture(10 * time.Minute)

		err := f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTopics, "world", "", "")
		require.NoError(t, err)

		reqs := f.pipeline.Requests()
		require.Len(t, reqs, 1)
		assert.NotEmpty(t, reqs[0].CorrelationID)
		assert.NotNil(t, f.tracker.Resolve(reqs[0].CorrelationID))
	})

	t.Run("fresh cache short-circuits the dispatch", func(t *testing.T) {
		f := newFixture(10 * time.Minute)
		f.cache.Set("trends:tech", "cached trends")

		err := f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1")
		require.NoError(t, err)

		assert.Empty(t, f.pipeline.Requests())

		frames := f.conn.Frames()
		require.Len(t, frames, 1)
		assert.Equal(t, "cached trends", frames[0].Content)
		assert.Equal(t, true, frames[0].Metadata["cached"])
	})

	t.Run("dispatch failure clears the correlation entry", func(t *testing.T) {
		f := newFixture(10 * time.Minute)
		f.pipeline.err = fmt.Errorf("pipeline unavailable")

		err := f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1")
		assert.Error(t, err)
		assert.Nil(t, f.tracker.Resolve("corr_1"))
	})
}

func TestCoordinator_HandleCallback(t *testing.T) {
	t.Run("delivers to the originating session", func(t *testing.T) {
		f := newFixture(10 * time.Minute)
		require.NoError(t, f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1"))

		outcome := f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "today's trends",
			CorrelationID: "corr_1",
			Kind:          model.ContentKindTrends,
			Tag:           "tech",
		})

		assert.Equal(t, OutcomeDelivered, outcome)

		frames := f.conn.Frames()
		require.Len(t, frames, 1)
		assert.Equal(t, model.MessageTypeMessage, frames[0].Type)
		assert.Equal(t, "today's trends", frames[0].Content)
		assert.Equal(t, "corr_1", frames[0].CorrelationID)
		assert.Equal(t, "sess_A", frames[0].SessionID)
		assert.NotEmpty(t, frames[0].MessageID)
	})

	t.Run("populates the cache for cacheable content", func(t *testing.T) {
		f := newFixture(10 * time.Minute)
		require.NoError(t, f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1"))

		f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "today's trends",
			CorrelationID: "corr_1",
			Kind:          model.ContentKindTrends,
			Tag:           "tech",
		})

		payload, ok := f.cache.Get("trends:tech")
		require.True(t, ok)
		assert.Equal(t, "today's trends", payload)
	})

	t.Run("archives the delivered message", func(t *testing.T) {
		f := newFixture(10 * time.Minute)
		require.NoError(t, f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1"))

		f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "today's trends",
			CorrelationID: "corr_1",
		})

		require.Len(t, f.archive.msgs, 1)
		assert.Equal(t, "sess_A", f.archive.msgs[0].SessionID)
		assert.Equal(t, "u_1", f.archive.msgs[0].UserID)
		assert.Equal(t, "today's trends", f.archive.msgs[0].Content)
	})

	t.Run("drops the callback when the session is gone", func(t *testing.T) {
		f := newFixture(10 * time.Minute)
		require.NoError(t, f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1"))

		f.registry.Remove("sess_A")

		outcome := f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "too late",
			CorrelationID: "corr_1",
		})

		assert.Equal(t, OutcomeSessionGone, outcome)
		assert.Empty(t, f.conn.Frames())
	})

	t.Run("drops an unknown correlation with no session fallback", func(t *testing.T) {
		f := newFixture(10 * time.Minute)

		outcome := f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "orphan",
			CorrelationID: "corr_unknown",
		})

		assert.Equal(t, OutcomeUnresolved, outcome)
		assert.Empty(t, f.conn.Frames())
	})

	t.Run("falls back to a directly addressed session", func(t *testing.T) {
		f := newFixture(10 * time.Minute)

		outcome := f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:     "broadcast",
			Message:   "direct delivery",
			SessionID: "sess_A",
		})

		assert.Equal(t, OutcomeDelivered, outcome)
		require.Len(t, f.conn.Frames(), 1)
		assert.Equal(t, "direct delivery", f.conn.Frames()[0].Content)
	})

	t.Run("expired correlation drops and stays absent", func(t *testing.T) {
		f := newFixture(30 * time.Millisecond)
		require.NoError(t, f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1"))

		time.Sleep(50 * time.Millisecond)

		outcome := f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "too late",
			CorrelationID: "corr_1",
		})

		assert.Equal(t, OutcomeUnresolved, outcome)
		assert.Empty(t, f.conn.Frames())
		// The expired lookup deleted the entry outright.
		assert.Nil(t, f.tracker.Resolve("corr_1"))
		assert.Equal(t, 0, f.tracker.Len())
	})

	t.Run("drops an expired correlation even when the session is echoed back", func(t *testing.T) {
		f := newFixture(30 * time.Millisecond)
		f.tracker.Track("corr_1", "sess_A", "u_1", "reader@example.com")

		time.Sleep(50 * time.Millisecond)

		outcome := f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "too late",
			CorrelationID: "corr_1",
			SessionID:     "sess_A",
		})

		assert.Equal(t, OutcomeUnresolved, outcome)
		assert.Empty(t, f.conn.Frames())
	})

	t.Run("drops an unknown correlation even when a session is named", func(t *testing.T) {
		f := newFixture(10 * time.Minute)

		outcome := f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "orphan",
			CorrelationID: "corr_unknown",
			SessionID:     "sess_A",
		})

		assert.Equal(t, OutcomeUnresolved, outcome)
		assert.Empty(t, f.conn.Frames())
	})

	t.Run("reports session gone when the connection refuses the frame", func(t *testing.T) {
		f := newFixture(10 * time.Minute)
		require.NoError(t, f.coordinator.RequestContent(context.Background(), f.session, model.ContentKindTrends, "tech", "", "corr_1"))

		f.conn.fail = true

		outcome := f.coordinator.HandleCallback(context.Background(), model.Callback{
			Event:         "content_ready",
			Message:       "unreachable",
			CorrelationID: "corr_1",
		})

		assert.Equal(t, OutcomeSessionGone, outcome)
	})
}
