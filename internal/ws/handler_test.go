package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenty/webchannel-server-go/internal/cache"
	"github.com/quenty/webchannel-server-go/internal/correlation"
	"github.com/quenty/webchannel-server-go/internal/delivery"
	"github.com/quenty/webchannel-server-go/internal/model"
	"github.com/quenty/webchannel-server-go/internal/registry"
	"github.com/quenty/webchannel-server-go/internal/token"
)

const testSecret = "ws-test-secret"

func signHandoffToken(t *testing.T, email string) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"email": email,
		"iss":   token.Issuer,
		"aud":   token.Audience,
		"iat":   now.Unix(),
		"exp":   now.Add(5 * time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type capturingPipeline struct {
	mu       sync.Mutex
	requests []model.DispatchRequest
}

func (p *capturingPipeline) Dispatch(_ context.Context, req model.DispatchRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return nil
}

func (p *capturingPipeline) dispatched() []model.DispatchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.DispatchRequest(nil), p.requests...)
}

func newTestHandler(t *testing.T) (*Handler, *registry.Registry, *capturingPipeline) {
	t.Helper()

	verifier, err := token.NewVerifier(testSecret)
	require.NoError(t, err)

	reg := registry.New()
	tracker := correlation.NewTracker(time.Minute)
	contentCache := cache.New(map[model.ContentKind]time.Duration{
		model.ContentKindTrends: time.Minute,
	}, time.Minute)
	pipeline := &capturingPipeline{}
	coord := delivery.NewCoordinator(tracker, reg, contentCache, pipeline, nil)

	return NewHandler(verifier, reg, coord), reg, pipeline
}

func TestParseContentCommand(t *testing.T) {
	t.Run("recognizes kind commands with and without tags", func(t *testing.T) {
		cmd := parseContentCommand("/trends tech")
		require.NotNil(t, cmd)
		assert.Equal(t, model.ContentKindTrends, cmd.Kind)
		assert.Equal(t, "tech", cmd.Tag)

		cmd = parseContentCommand("  /topics  ")
		require.NotNil(t, cmd)
		assert.Equal(t, model.ContentKindTopics, cmd.Kind)
		assert.Equal(t, "default", cmd.Tag)

		cmd = parseContentCommand("/summary World")
		require.NotNil(t, cmd)
		assert.Equal(t, model.ContentKindSummary, cmd.Kind)
		assert.Equal(t, "world", cmd.Tag)
	})

	t.Run("returns nil for free-form queries", func(t *testing.T) {
		assert.Nil(t, parseContentCommand("what happened in tech today?"))
		assert.Nil(t, parseContentCommand("/unknown tag"))
		assert.Nil(t, parseContentCommand("/"))
		assert.Nil(t, parseContentCommand(""))
	})
}

func TestHandler_RejectsInvalidToken(t *testing.T) {
	h, reg, _ := newTestHandler(t)

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/channel", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, reg.Count())
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/channel?token=not.a.token", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with the wrong secret", func(t *testing.T) {
		now := time.Now()
		claims := jwt.MapClaims{
			"email": "reader@example.com",
			"iss":   token.Issuer,
			"aud":   token.Audience,
			"iat":   now.Unix(),
			"exp":   now.Add(5 * time.Minute).Unix(),
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/channel?token="+forged, nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandler_ConnectionLifecycle(t *testing.T) {
	h, reg, pipeline := newTestHandler(t)

	server := httptest.NewServer(h)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/?token=" + signHandoffToken(t, "reader@example.com")

	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	t.Run("announces the session on connect", func(t *testing.T) {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))

		var frame model.ChatMessage
		require.NoError(t, client.ReadJSON(&frame))
		assert.Equal(t, model.MessageTypeMessage, frame.Type)
		assert.NotEmpty(t, frame.SessionID)
		assert.Equal(t, "connected", frame.Metadata["event"])

		require.Eventually(t, func() bool { return reg.Count() == 1 }, time.Second, 10*time.Millisecond)
	})

	t.Run("answers ping with pong", func(t *testing.T) {
		require.NoError(t, client.WriteJSON(model.ChatMessage{Type: model.MessageTypePing, CorrelationID: "hb_1"}))

		client.SetReadDeadline(time.Now().Add(2 * time.Second))

		var frame model.ChatMessage
		require.NoError(t, client.ReadJSON(&frame))
		assert.Equal(t, model.MessageTypePong, frame.Type)
		assert.Equal(t, "hb_1", frame.CorrelationID)
	})

	t.Run("forwards content commands to the pipeline", func(t *testing.T) {
		require.NoError(t, client.WriteJSON(model.ChatMessage{Type: model.MessageTypeMessage, Content: "/trends tech"}))

		require.Eventually(t, func() bool { return len(pipeline.dispatched()) == 1 }, time.Second, 10*time.Millisecond)

		req := pipeline.dispatched()[0]
		assert.Equal(t, model.ContentKindTrends, req.Kind)
		assert.Equal(t, "tech", req.Tag)
		assert.NotEmpty(t, req.CorrelationID)
	})

	t.Run("removes the session when the client disconnects", func(t *testing.T) {
		require.NoError(t, client.Close())

		require.Eventually(t, func() bool { return reg.Count() == 0 }, time.Second, 10*time.Millisecond)
	})
}
