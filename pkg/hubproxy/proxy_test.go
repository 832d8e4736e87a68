package hubproxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agent-matrix/matrixhub-admin/pkg/shared/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorded is what a stub upstream saw.
type recorded struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
	Length   int64
}

type stubUpstream struct {
	*httptest.Server
	mu   sync.Mutex
	reqs []recorded
}

func newStubUpstream(t *testing.T, handler http.HandlerFunc) *stubUpstream {
	t.Helper()
	s := &stubUpstream{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.reqs = append(s.reqs, recorded{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
			Length:   r.ContentLength,
		})
		s.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *stubUpstream) hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func (s *stubUpstream) last(t *testing.T) recorded {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.reqs, "upstream was never called")
	return s.reqs[len(s.reqs)-1]
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// closedURL returns the address of a server that is no longer listening.
func closedURL(t *testing.T) string {
	t.Helper()
	s := httptest.NewServer(http.NotFoundHandler())
	u := s.URL
	s.Close()
	return u
}

type testTargets struct {
	hubURL, hubToken string
	gwURL, gwToken   string
}

func newTestMux(t *testing.T, targets testTargets, mutate ...func(*Config)) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	newTestProxy(t, targets, mutate...).Register(mux)
	return mux
}

func newTestProxy(t *testing.T, targets testTargets, mutate ...func(*Config)) *Proxy {
	t.Helper()
	hub, err := NewTarget("hub", targets.hubURL, targets.hubToken, "HUB_URL", "HUB_API_TOKEN")
	require.NoError(t, err)
	gw, err := NewTarget("gateway", targets.gwURL, targets.gwToken, "GW_URL", "GW_API_TOKEN")
	require.NoError(t, err)

	cfg := Config{
		Hub:     hub,
		Gateway: gw,
		HubPaths: HubPaths{
			Catalog:     "/catalog",
			Search:      "/catalog/search",
			Entities:    "/catalog/entities",
			Install:     "/catalog/install",
			Ingest:      "/catalog/ingest",
			Remotes:     "/catalog/remotes",
			RemotesSync: "/remotes/sync",
			Health:      "/health",
		},
		GatewayPaths: GatewayPaths{Register: "/gateways", Health: "/health"},
		UserAgent:    "matrixhub-admin/test",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	p, err := New(cfg, logging.NewTestLoggerVerbose(t))
	require.NoError(t, err)
	return p
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func TestCatalog_RelaysUpstreamUnchanged(t *testing.T) {
	const body = "{\"items\":[{\"id\":\"tool:echo@1.0.0\"}],\"total\":1}\n"
	hub := newStubUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Upstream-Internal", "secret")
		w.Header().Set("Set-Cookie", "upstream=1")
		_, _ = io.WriteString(w, body)
	})
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/hub/catalog?q=hello+world&type=tool&limit=5", nil)
	req.Header.Set("Authorization", "Bearer from-browser")
	req.Header.Set("Cookie", "_matrixhub_admin=abc")
	rec := serve(mux, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, body, rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Upstream-Internal"))
	assert.Empty(t, rec.Header().Get("Set-Cookie"))

	got := hub.last(t)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/catalog", got.Path)
	assert.Equal(t, "q=hello+world&type=tool&limit=5", got.RawQuery)
	assert.Empty(t, got.Header.Values("Authorization"), "read routes never carry a token")
	assert.Empty(t, got.Header.Get("Cookie"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "matrixhub-admin/test", got.Header.Get("User-Agent"))
	assert.Empty(t, got.Header.Get("Content-Type"))
}

func TestCatalog_DefaultsContentType(t *testing.T) {
	hub := newStubUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = io.WriteString(w, `{"items":[]}`)
	})
	mux := newTestMux(t, testTargets{hubURL: hub.URL})

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/hub/catalog", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"items":[]}`, rec.Body.String())
}

func TestReadRoutes(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{"ok":true}`))
	gw := newStubUpstream(t, jsonReply(http.StatusOK, `{"status":"healthy"}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, gwURL: gw.URL})

	tests := []struct {
		name     string
		target   string
		upstream *stubUpstream
		wantPath string
	}{
		{"search", "/api/hub/search?q=pdf&mode=hybrid", hub, "/catalog/search"},
		{"entity", "/api/hub/entities/mcp_server:hello-sse-server@0.1.0", hub, "/catalog/entities/mcp_server:hello-sse-server@0.1.0"},
		{"hub health", "/api/hub/health", hub, "/health"},
		{"gateway health", "/api/gateway/health", gw, "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, http.StatusOK, rec.Code)

			got := tt.upstream.last(t)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Empty(t, got.Header.Values("Authorization"))
		})
	}
}

func TestCatalog_Unreachable(t *testing.T) {
	mux := newTestMux(t, testTargets{hubURL: closedURL(t)})

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/hub/catalog", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, KindHubUnreachable, env.Error)
	assert.NotEmpty(t, env.Detail)
}

func TestIngest_AttachesBearerExactlyOnce(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusAccepted, `{"job":"42"}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/hub/ingest", strings.NewReader(`{"url":"https://example.com/index.json"}`))
	req.Header.Set("Authorization", "Bearer from-browser")
	req.Header.Set("Content-Type", "text/plain")
	rec := serve(mux, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, `{"job":"42"}`, rec.Body.String())

	got := hub.last(t)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/catalog/ingest", got.Path)
	assert.Equal(t, []string{"Bearer hub-secret"}, got.Header.Values("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, `{"url":"https://example.com/index.json"}`, string(got.Body))
}

func TestIngest_EmptyBodyBecomesEmptyObject(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret"})

	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/ingest", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "{}", string(hub.last(t).Body))
}

func TestIngest_MissingTokenNeverCallsUpstream(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL})

	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/ingest", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, KindAdminProxyError, env.Error)
	assert.Contains(t, env.Detail, "HUB_API_TOKEN")
	assert.Zero(t, hub.hits())
}

func TestAdminRoutes_MissingToken(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	gw := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, gwURL: gw.URL})

	tests := []struct {
		method, target, envVar string
	}{
		{http.MethodPost, "/api/hub/install", "HUB_API_TOKEN"},
		{http.MethodGet, "/api/hub/remotes", "HUB_API_TOKEN"},
		{http.MethodDelete, "/api/hub/remotes", "HUB_API_TOKEN"},
		{http.MethodPost, "/api/hub/remotes/sync", "HUB_API_TOKEN"},
		{http.MethodPost, "/api/hub/registry", "GW_API_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := serve(mux, httptest.NewRequest(tt.method, tt.target, strings.NewReader(`{}`)))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.Equal(t, KindAdminProxyError, env.Error)
			assert.Contains(t, env.Detail, tt.envVar)
		})
	}
	assert.Zero(t, hub.hits())
	assert.Zero(t, gw.hits())
}

func TestAdmin_UnreachableIsAdminProxyError(t *testing.T) {
	mux := newTestMux(t, testTargets{hubURL: closedURL(t), hubToken: "hub-secret"})

	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/ingest", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, KindAdminProxyError, env.Error)
	assert.NotEmpty(t, env.Detail)
}

func TestMethodNotAllowed(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret", gwURL: hub.URL, gwToken: "gw"})

	tests := []struct {
		method, target, allow string
	}{
		{http.MethodPost, "/api/hub/catalog", "GET"},
		{http.MethodDelete, "/api/hub/search", "GET"},
		{http.MethodPut, "/api/hub/entities/tool:x@1", "GET"},
		{http.MethodGet, "/api/hub/ingest", "POST"},
		{http.MethodPut, "/api/hub/remotes", "GET, POST, DELETE"},
		{http.MethodPatch, "/api/hub/remotes", "GET, POST, DELETE"},
		{http.MethodGet, "/api/hub/registry", "POST"},
		{http.MethodPost, "/api/hub/health", "GET"},
		{http.MethodPost, "/api/gateway/health", "GET"},
		{http.MethodPost, "/api/health", "GET"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := serve(mux, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, `{"error":"method_not_allowed"}`, rec.Body.String())
			assert.Equal(t, tt.allow, strings.Join(rec.Header().Values("Allow"), ", "))
		})
	}
	assert.Zero(t, hub.hits())
}

func TestMethodNotAllowed_BeforeTokenCheck(t *testing.T) {
	mux := newTestMux(t, testTargets{hubURL: closedURL(t)})

	rec := serve(mux, httptest.NewRequest(http.MethodPut, "/api/hub/remotes", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAllows(t *testing.T) {
	p := newTestProxy(t, testTargets{hubURL: "http://hub.test", hubToken: "t"})

	tests := []struct {
		path  string
		want  []string
		known bool
	}{
		{"/api/hub/ingest", []string{http.MethodPost}, true},
		{"/api/hub/remotes", []string{http.MethodGet, http.MethodPost, http.MethodDelete}, true},
		{"/api/hub/entities/tool:a@1", []string{http.MethodGet}, true},
		{"/api/health", []string{http.MethodGet}, true},
		{"/api/hub/unknown", nil, false},
		{"/api/auth/login", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			allowed, known := p.Allows(httptest.NewRequest(http.MethodPut, tt.path, nil))
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.want, allowed)
		})
	}
}

func TestEntities_EmptyID(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL})

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/hub/entities/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, KindBadRequest, env.Error)
	assert.Equal(t, ErrMissingEntityID.Error(), env.Detail)
	assert.Equal(t, 0, hub.hits())

	rec = serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/entities/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRemotes_ForwardsEachMethod(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `["https://example.com/index.json"]`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret"}, func(c *Config) {
		c.HubPaths.Remotes = "/remotes"
	})

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/hub/remotes?verbose=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `["https://example.com/index.json"]`, rec.Body.String())
	got := hub.last(t)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/remotes", got.Path)
	assert.Equal(t, "verbose=1", got.RawQuery)
	assert.Empty(t, got.Body)
	assert.Empty(t, got.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer hub-secret", got.Header.Get("Authorization"))

	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		payload := `{"url":"https://example.com/index.json"}`
		rec = serve(mux, httptest.NewRequest(method, "/api/hub/remotes", strings.NewReader(payload)))
		assert.Equal(t, http.StatusOK, rec.Code)
		got = hub.last(t)
		assert.Equal(t, method, got.Method)
		assert.Equal(t, payload, string(got.Body))
		assert.Equal(t, int64(len(payload)), got.Length)
		assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	}
}

func TestAdmin_RelaysUpstreamErrorStatus(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusUnprocessableEntity, `{"detail":"remote already exists"}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret"})

	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/remotes", strings.NewReader(`{"url":"x"}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, `{"detail":"remote already exists"}`, rec.Body.String())
}

func TestAdmin_BodyTooLarge(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret"}, func(c *Config) {
		c.MaxBodyBytes = 16
	})

	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/install", strings.NewReader(`{"id":"tool:very-long-name@1.0.0"}`)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, KindAdminProxyError, decodeEnvelope(t, rec).Error)
	assert.Zero(t, hub.hits())
}

func TestRequestID(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret"})

	t.Run("propagated unchanged", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/hub/catalog", nil)
		req.Header.Set("X-Request-ID", "req-7f3a 01")
		serve(mux, req)
		assert.Equal(t, []string{"req-7f3a 01"}, hub.last(t).Header.Values("X-Request-ID"))
	})

	t.Run("never synthesized", func(t *testing.T) {
		serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/ingest", nil))
		_, present := hub.last(t).Header["X-Request-Id"]
		assert.False(t, present)
	})
}

func TestRegistry_RoundTrip(t *testing.T) {
	gw := newStubUpstream(t, jsonReply(http.StatusOK, `{"uid":"mcp_server:hello-sse-server@0.1.0"}`))
	mux := newTestMux(t, testTargets{hubURL: closedURL(t), gwURL: gw.URL, gwToken: "gw-secret"})

	payload := `{"id":"hello-sse-server","name":"Hello SSE Server","url":"http://127.0.0.1:8000/messages/","transport":"SSE","version":"0.1.0","capabilities":["search"]}`
	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/registry", strings.NewReader(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"uid":"mcp_server:hello-sse-server@0.1.0"}`, rec.Body.String())

	got := gw.last(t)
	assert.Equal(t, "/gateways", got.Path)
	assert.Equal(t, []string{"Bearer gw-secret"}, got.Header.Values("Authorization"))
	assert.JSONEq(t, `{
		"id":"hello-sse-server",
		"name":"Hello SSE Server",
		"version":"0.1.0",
		"endpoint":{"transport":"SSE","url":"http://127.0.0.1:8000/messages/"},
		"capabilities":["search"]
	}`, string(got.Body))
}

func TestRegistry_FlatFormat(t *testing.T) {
	gw := newStubUpstream(t, jsonReply(http.StatusCreated, `{"id":1}`))
	mux := newTestMux(t, testTargets{hubURL: closedURL(t), gwURL: gw.URL, gwToken: "gw-secret"}, func(c *Config) {
		c.RegistrationFormat = FormatFlat
	})

	payload := `{"endpoint":{"transport":"sse","url":"http://127.0.0.1:8000/messages/"},"name":"hello","description":"demo"}`
	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/registry", strings.NewReader(payload)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"name":"hello","url":"http://127.0.0.1:8000/messages/","transport":"SSE","description":"demo"}`, string(gw.last(t).Body))
}

func TestRegistry_InvalidPayload(t *testing.T) {
	gw := newStubUpstream(t, jsonReply(http.StatusOK, `{}`))
	mux := newTestMux(t, testTargets{hubURL: closedURL(t), gwURL: gw.URL, gwToken: "gw-secret"})

	for _, payload := range []string{`{"name":"no-url"}`, `{"url":"http://x"}`, `{not json`, ``} {
		rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/registry", strings.NewReader(payload)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payload %q", payload)
		assert.Equal(t, KindAdminProxyError, decodeEnvelope(t, rec).Error)
	}
	assert.Zero(t, gw.hits())
}

func TestGatewayNotConfigured(t *testing.T) {
	mux := newTestMux(t, testTargets{hubURL: closedURL(t), gwToken: "gw-secret"})

	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/hub/registry", strings.NewReader(`{"name":"a","url":"http://b"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, KindAdminProxyError, env.Error)
	assert.Contains(t, env.Detail, "GW_URL")

	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/api/gateway/health", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, KindHubUnreachable, decodeEnvelope(t, rec).Error)
}

func TestClientCancellationDoesNotAbortUpstream(t *testing.T) {
	hub := newStubUpstream(t, jsonReply(http.StatusOK, `{"done":true}`))
	mux := newTestMux(t, testTargets{hubURL: hub.URL, hubToken: "hub-secret"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/hub/ingest", strings.NewReader(`{}`)).WithContext(ctx)
	rec := serve(mux, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, hub.hits())
}

func TestUpstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	hub := newStubUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })
	mux := newTestMux(t, testTargets{hubURL: hub.URL}, func(c *Config) {
		c.UpstreamTimeout = 50 * time.Millisecond
	})

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/hub/catalog", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, KindHubUnreachable, decodeEnvelope(t, rec).Error)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, logging.NewTestLogger())
	assert.Error(t, err)

	hub, err := NewTarget("hub", "http://hub", "", "HUB_URL", "HUB_API_TOKEN")
	require.NoError(t, err)
	_, err = New(Config{Hub: hub, RegistrationFormat: "xml"}, logging.NewTestLogger())
	assert.Error(t, err)

	p, err := New(Config{Hub: hub}, logging.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, FormatStructured, p.registrationFormat)
	assert.Equal(t, int64(10<<20), p.maxBodyBytes)
	assert.False(t, p.gateway.Configured())
}
