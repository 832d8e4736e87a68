// Package hubproxy is the same-origin HTTP surface the admin console uses to
// reach the Matrix Hub and MCP gateway. Handlers forward to a configured
// upstream, inject the server-held bearer token on admin routes, relay the
// upstream status and body unchanged, and report every failure as a
// {"error","detail"} envelope.
package hubproxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/agent-matrix/matrixhub-admin/pkg/shared/logging"
)

// HubPaths are the Hub endpoints behind the console routes.
type HubPaths struct {
	Catalog     string
	Search      string
	Entities    string
	Install     string
	Ingest      string
	Remotes     string
	RemotesSync string
	Health      string
}

// GatewayPaths are the gateway endpoints behind the console routes.
type GatewayPaths struct {
	Register string
	Health   string
}

// Config configures a Proxy
type Config struct {
	Hub     *Target
	Gateway *Target

	HubPaths     HubPaths
	GatewayPaths GatewayPaths

	// RegistrationFormat is "structured" or "flat".
	RegistrationFormat string

	// MaxBodyBytes caps admin request bodies. Zero means 10 MiB.
	MaxBodyBytes int64

	// UpstreamTimeout bounds one outbound call. Zero means none.
	UpstreamTimeout time.Duration

	// UserAgent is sent on every outbound request.
	UserAgent string

	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// CopyBufferBytes sizes the buffers used to relay upstream bodies.
	// Zero means 32 KiB.
	CopyBufferBytes int
}

// Proxy serves the /api/hub, /api/gateway and /api/health routes.
type Proxy struct {
	hub                *Target
	gateway            *Target
	hubPaths           HubPaths
	gatewayPaths       GatewayPaths
	registrationFormat string
	maxBodyBytes       int64
	timeout            time.Duration
	userAgent          string
	transport          http.RoundTripper
	copyBufferBytes    int
	logger             logging.Logger

	rp     *httputil.ReverseProxy
	health *http.Client

	// lookup resolves a request to its route pattern without serving it.
	lookup  *http.ServeMux
	methods map[string][]string
}

// route describes one browser-facing endpoint.
type route struct {
	pattern string
	methods []string
	target  *Target
	// admin routes require the target token and report admin_proxy_error.
	admin bool
	// path returns the escaped upstream path.
	path func(r *http.Request) string
	// body optionally rewrites the admin request body before forwarding.
	body func(raw []byte) ([]byte, error)
	// check optionally rejects a malformed request with 400 before any other work.
	check func(r *http.Request) error
}

// New creates a Proxy
func New(cfg Config, logger logging.Logger) (*Proxy, error) {
	if cfg.Hub == nil {
		return nil, errors.New("hub target is required")
	}
	if cfg.Gateway == nil {
		cfg.Gateway = &Target{Name: "gateway", URLEnv: "GW_URL", TokenEnv: "GW_API_TOKEN"}
	}
	switch cfg.RegistrationFormat {
	case "":
		cfg.RegistrationFormat = FormatStructured
	case FormatStructured, FormatFlat:
	default:
		return nil, fmt.Errorf("unknown registration format %q", cfg.RegistrationFormat)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "matrixhub-admin"
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.CopyBufferBytes <= 0 {
		cfg.CopyBufferBytes = 32 * 1024
	}

	p := &Proxy{
		hub:                cfg.Hub,
		gateway:            cfg.Gateway,
		hubPaths:           cfg.HubPaths,
		gatewayPaths:       cfg.GatewayPaths,
		registrationFormat: cfg.RegistrationFormat,
		maxBodyBytes:       cfg.MaxBodyBytes,
		timeout:            cfg.UpstreamTimeout,
		userAgent:          cfg.UserAgent,
		transport:          cfg.Transport,
		copyBufferBytes:    cfg.CopyBufferBytes,
		logger:             logger.WithModule("hubproxy"),
	}
	p.rp = p.newReverseProxy()
	p.health = &http.Client{Transport: cfg.Transport, Timeout: cfg.UpstreamTimeout}

	p.lookup = http.NewServeMux()
	p.methods = make(map[string][]string)
	for _, rt := range p.routes() {
		p.lookup.Handle(rt.pattern, http.NotFoundHandler())
		p.methods[rt.pattern] = rt.methods
	}
	p.lookup.Handle(healthPattern, http.NotFoundHandler())
	p.methods[healthPattern] = []string{http.MethodGet}
	return p, nil
}

const healthPattern = "/api/health"

// Allows reports the methods accepted by the route r resolves to. known is
// false when r matches no proxy route.
func (p *Proxy) Allows(r *http.Request) (allowed []string, known bool) {
	_, pattern := p.lookup.Handler(r)
	allowed, known = p.methods[pattern]
	return allowed, known
}

// Register mounts every proxy route on mux.
func (p *Proxy) Register(mux *http.ServeMux) {
	for _, rt := range p.routes() {
		mux.Handle(rt.pattern, p.handle(rt))
	}
	mux.HandleFunc(healthPattern, p.handleHealth)
}

func (p *Proxy) routes() []route {
	fixed := func(path string) func(*http.Request) string {
		return func(*http.Request) string { return path }
	}
	get := []string{http.MethodGet}
	post := []string{http.MethodPost}

	return []route{
		{pattern: "/api/hub/catalog", methods: get, target: p.hub, path: fixed(p.hubPaths.Catalog)},
		{pattern: "/api/hub/search", methods: get, target: p.hub, path: fixed(p.hubPaths.Search)},
		{
			pattern: "/api/hub/entities/{id...}",
			methods: get,
			target:  p.hub,
			path: func(r *http.Request) string {
				return p.hubPaths.Entities + "/" + url.PathEscape(r.PathValue("id"))
			},
			check: requireEntityID,
		},
		{pattern: "/api/hub/health", methods: get, target: p.hub, path: fixed(p.hubPaths.Health)},
		{pattern: "/api/gateway/health", methods: get, target: p.gateway, path: fixed(p.gatewayPaths.Health)},

		{pattern: "/api/hub/ingest", methods: post, target: p.hub, admin: true, path: fixed(p.hubPaths.Ingest)},
		{pattern: "/api/hub/install", methods: post, target: p.hub, admin: true, path: fixed(p.hubPaths.Install)},
		{
			pattern: "/api/hub/remotes",
			methods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			target:  p.hub,
			admin:   true,
			path:    fixed(p.hubPaths.Remotes),
		},
		{pattern: "/api/hub/remotes/sync", methods: post, target: p.hub, admin: true, path: fixed(p.hubPaths.RemotesSync)},
		{
			pattern: "/api/hub/registry",
			methods: post,
			target:  p.gateway,
			admin:   true,
			path:    fixed(p.gatewayPaths.Register),
			body:    p.encodeRegistration,
		},
	}
}

// handle returns the handler for one route.
func (p *Proxy) handle(rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(rt.methods, r.Method) {
			WriteMethodNotAllowed(w, rt.methods)
			return
		}

		start := time.Now()
		if rt.check != nil {
			if err := rt.check(r); err != nil {
				WriteError(w, http.StatusBadRequest, KindBadRequest, err.Error())
				p.logAccess(r, rt, http.StatusBadRequest, start)
				return
			}
		}

		fr, err := p.prepare(w, r, rt)
		if err != nil {
			status := p.reject(w, rt, err)
			p.logAccess(r, rt, status, start)
			return
		}

		p.forward(w, r, fr)
		p.logAccess(r, rt, fr.status, start)
	}
}

// prepare builds the ForwardedRequest. Token and target checks come first so
// a misconfigured admin route never touches the network.
func (p *Proxy) prepare(w http.ResponseWriter, r *http.Request, rt route) (*ForwardedRequest, error) {
	fr := &ForwardedRequest{
		Target:        rt.target,
		Method:        r.Method,
		Path:          rt.path(r),
		RawQuery:      r.URL.RawQuery,
		CorrelationID: r.Header.Get(RequestIDHeader),
		Admin:         rt.admin,
		route:         rt.pattern,
	}

	if rt.admin {
		token, err := rt.target.requireToken()
		if err != nil {
			return nil, err
		}
		fr.Token = token
	}

	if _, err := rt.target.endpoint(fr.Path, fr.RawQuery); err != nil {
		return nil, err
	}

	if rt.admin && r.Method != http.MethodGet {
		body, err := p.readBody(w, r)
		if err != nil {
			return nil, err
		}
		if rt.body != nil {
			if body, err = rt.body(body); err != nil {
				return nil, err
			}
		}
		fr.Body = body
	}

	return fr, nil
}

func requireEntityID(r *http.Request) error {
	if strings.Trim(r.PathValue("id"), "/") == "" {
		return ErrMissingEntityID
	}
	return nil
}

// readBody reads an admin body up to the configured limit; empty becomes {}.
func (p *Proxy) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, p.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &StatusError{
				Status: http.StatusRequestEntityTooLarge,
				Err:    fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit),
			}
		}
		return nil, &StatusError{Status: http.StatusBadRequest, Err: fmt.Errorf("failed to read request body: %w", err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("{}"), nil
	}
	return data, nil
}

// reject answers a request that failed before forwarding and returns the status sent.
func (p *Proxy) reject(w http.ResponseWriter, rt route, err error) int {
	if rt.admin {
		status := StatusOf(err, http.StatusInternalServerError)
		writeAdminError(w, err)
		return status
	}
	WriteError(w, http.StatusBadGateway, KindHubUnreachable, err.Error())
	return http.StatusBadGateway
}

// forward hands fr to the reverse proxy. The outbound context keeps the
// inbound values but not its cancellation, so a client that goes away does
// not abort a call the upstream may already be acting on.
func (p *Proxy) forward(w http.ResponseWriter, r *http.Request, fr *ForwardedRequest) {
	ctx := withForwarded(r.Context(), fr)

	outCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if p.timeout > 0 {
		outCtx, cancel = context.WithTimeout(outCtx, p.timeout)
	}
	defer cancel()
	fr.ctx = outCtx

	p.rp.ServeHTTP(w, r.WithContext(ctx))
}

func (p *Proxy) logAccess(r *http.Request, rt route, status int, start time.Time) {
	p.logger.Info("Proxied request",
		"path", r.URL.Path,
		"route", rt.pattern,
		"method", r.Method,
		"target", rt.target.Name,
		"status", status,
		"duration", time.Since(start).Round(time.Millisecond),
		"request_id", r.Header.Get(RequestIDHeader))
}
