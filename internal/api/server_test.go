package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpterminal/internal/api/health"
	"dpterminal/internal/domain/personality"
	"dpterminal/internal/domain/session"
	"dpterminal/internal/domain/thumbnail"
	"dpterminal/internal/repository/memory"
	"dpterminal/internal/services/dispatch"
	sessionsvc "dpterminal/internal/services/session"
	"dpterminal/pkg/logger"
)

type fakeDispatcher struct {
	calls       int
	message     string
	personality string
	publish     bool
	sessionID   string
	panic       bool
}

func (f *fakeDispatcher) Handle(ctx context.Context, message, personalityKey string, publish bool) dispatch.Envelope {
	if f.panic {
		panic("boom")
	}
	f.calls++
	f.message, f.personality, f.publish = message, personalityKey, publish
	f.sessionID = session.IDFromContext(ctx)
	return dispatch.Envelope{Text: "reply", Personality: personalityKey}
}

type testServer struct {
	handler    http.Handler
	dispatcher *fakeDispatcher
	thumbnails *memory.ThumbnailRepository
}

func newTestServer(t *testing.T, mutate func(*ServerConfig)) *testServer {
	t.Helper()
	reg, err := personality.LoadEmbedded("WALLET")
	require.NoError(t, err)

	cfg := ServerConfig{
		ServiceName:    "dpterminal",
		Version:        "test",
		SessionCookie:  "dp_session",
		SessionTTL:     time.Hour,
		AllowedOrigins: []string{"https://app.example"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	ts := &testServer{
		dispatcher: &fakeDispatcher{},
		thumbnails: memory.NewThumbnailRepository(),
	}
	ts.handler = NewRouter(cfg, Dependencies{
		Dispatcher: ts.dispatcher,
		Sessions:   sessionsvc.NewService(memory.NewSessionRepository(), reg, time.Hour, logger.Nop()),
		Thumbnails: ts.thumbnails,
		Health:     health.New(logger.Nop(), "dpterminal", "test"),
	}, logger.Nop())
	return ts
}

func (ts *testServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func sessionFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "dp_session" {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/chat", `{"message":"gm","tweet":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "reply", body["response"])
	assert.Nil(t, body["image"])
	assert.Equal(t, "default", body["personality"])
	assert.Equal(t, "gm", ts.dispatcher.message)
	assert.True(t, ts.dispatcher.publish)
	assert.NotEmpty(t, ts.dispatcher.sessionID)

	c := sessionFrom(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, ts.dispatcher.sessionID, c.Value)
}

func TestChatRejectsMissingMessage(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, body := range []string{`{}`, `{"message":"   "}`, `not json`, ``} {
		rec := ts.do(http.MethodPost, "/chat", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"No message"}`, rec.Body.String())
	}
	assert.Zero(t, ts.dispatcher.calls)
}

func TestSetPersonalityPersistsPerSession(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/set_personality", `{"personality":"pirate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Active personality: pirate"}`, rec.Body.String())
	cookie := sessionFrom(t, rec)

	rec = ts.do(http.MethodPost, "/chat", `{"message":"ahoy"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pirate", ts.dispatcher.personality)
	assert.Equal(t, cookie.Value, ts.dispatcher.sessionID)

	// a different session is unaffected
	rec = ts.do(http.MethodPost, "/chat", `{"message":"ahoy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "default", ts.dispatcher.personality)
}

func TestSetPersonalityValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		body string
		want string
	}{
		{`{}`, "Missing personality"},
		{`garbage`, "Missing personality"},
		{`{"personality":"ninja"}`, "Invalid personality"},
	}

	for _, tt := range tests {
		rec := ts.do(http.MethodPost, "/set_personality", tt.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.body)
		assert.Equal(t, tt.want, decodeBody(t, rec)["error"], tt.body)
	}
}

func TestPersonalities(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/personalities", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["personalities"], 12)
	assert.Equal(t, "default", body["active"])
}

func TestInvalidSessionCookieIsReplaced(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/personalities", "", &http.Cookie{Name: "dp_session", Value: "not-a-uuid"})

	assert.NotEqual(t, "not-a-uuid", sessionFrom(t, rec).Value)
}

func TestThumbnail(t *testing.T) {
	ts := newTestServer(t, nil)
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	require.NoError(t, ts.thumbnails.Save(context.Background(), &thumbnail.Thumbnail{
		ID: id, ContentType: "image/png", Data: []byte("png-bytes"),
	}, time.Minute))

	rec := ts.do(http.MethodGet, "/thumbnails/"+id+".png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	rec = ts.do(http.MethodGet, "/thumbnails/0f8fad5b-0000-469f-a165-70867728950e.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/chat", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRootAndProbes(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", decodeBody(t, rec)["status"])

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/nope", "").Code)
}

func TestPanicRecovery(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.dispatcher.panic = true

	rec := ts.do(http.MethodPost, "/chat", `{"message":"gm"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTPSRedirect(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) { cfg.ForceHTTPS = true })

	req := httptest.NewRequest(http.MethodGet, "http://dp.example/personalities?x=1", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://dp.example/personalities?x=1", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "http://dp.example/personalities", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/live", "").Code)
}
