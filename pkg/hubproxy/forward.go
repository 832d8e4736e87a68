package hubproxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"sync"
	"time"
)

// RequestIDHeader is the correlation header relayed to upstreams.
const RequestIDHeader = "X-Request-ID"

// ForwardedRequest is the outbound call derived from one inbound request.
// It lives for the duration of that request only.
type ForwardedRequest struct {
	Target        *Target
	Method        string
	Path          string // escaped, relative to the target base URL
	RawQuery      string
	Body          []byte // nil sends no body
	CorrelationID string
	Token         string // empty sends no Authorization header
	// Admin selects admin_proxy_error instead of hub_unreachable on failure.
	Admin bool

	route  string
	ctx    context.Context
	status int
}

type forwardedKey struct{}

func withForwarded(ctx context.Context, fr *ForwardedRequest) context.Context {
	return context.WithValue(ctx, forwardedKey{}, fr)
}

func forwardedFrom(ctx context.Context) *ForwardedRequest {
	fr, _ := ctx.Value(forwardedKey{}).(*ForwardedRequest)
	return fr
}

// outboundHeaders builds the upstream header set from scratch. Inbound
// Authorization and cookies are never copied.
func outboundHeaders(fr *ForwardedRequest, userAgent string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("User-Agent", userAgent)
	if fr.Body != nil {
		h.Set("Content-Type", "application/json")
	}
	if fr.Token != "" {
		h.Set("Authorization", "Bearer "+fr.Token)
	}
	if fr.CorrelationID != "" {
		h.Set(RequestIDHeader, fr.CorrelationID)
	}
	return h
}

// newReverseProxy creates the single reverse proxy shared by every route.
// The route handlers attach a ForwardedRequest to the inbound context and
// the proxy turns it into the outbound request.
func (p *Proxy) newReverseProxy() *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		Transport:      p.transport,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.errorHandler,
		FlushInterval:  100 * time.Millisecond,
		BufferPool:     newCopyBuffers(p.copyBufferBytes),
	}
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	fr := forwardedFrom(pr.In.Context())

	// Route handlers resolve the endpoint before forwarding, so this cannot fail.
	u, _ := fr.Target.endpoint(fr.Path, fr.RawQuery)

	out := pr.Out.WithContext(fr.ctx)
	out.Method = fr.Method
	out.URL = u
	out.Host = ""
	out.Header = outboundHeaders(fr, p.userAgent)
	out.Trailer = nil

	if fr.Body != nil {
		body := fr.Body
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	} else {
		out.Body = nil
		out.ContentLength = 0
		out.GetBody = nil
	}
	out.TransferEncoding = nil

	pr.Out = out
}

// modifyResponse keeps only the status, body and content headers.
func (p *Proxy) modifyResponse(resp *http.Response) error {
	if fr := forwardedFrom(resp.Request.Context()); fr != nil {
		fr.status = resp.StatusCode
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	contentLength := resp.Header.Get("Content-Length")

	resp.Header = make(http.Header)
	resp.Header.Set("Content-Type", contentType)
	if contentLength != "" {
		resp.Header.Set("Content-Length", contentLength)
	}
	resp.Trailer = nil
	return nil
}

// errorHandler converts transport failures into the error envelope.
// r is the outbound request; its context still carries the ForwardedRequest.
func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	fr := forwardedFrom(r.Context())

	status, kind := http.StatusBadGateway, KindHubUnreachable
	if fr != nil && fr.Admin {
		status, kind = StatusOf(err, http.StatusInternalServerError), KindAdminProxyError
	}
	if fr != nil {
		fr.status = status
	}

	p.logger.Warn("Upstream call failed",
		"path", routeName(fr),
		"target", targetName(fr),
		"upstream", r.URL.Redacted(),
		"status", status,
		"error", err)
	WriteError(w, status, kind, err.Error())
}

func routeName(fr *ForwardedRequest) string {
	if fr == nil {
		return ""
	}
	return fr.route
}

func targetName(fr *ForwardedRequest) string {
	if fr == nil || fr.Target == nil {
		return "unknown"
	}
	return fr.Target.Name
}

// copyBuffers hands the reverse proxy fixed-size buffers for relaying
// upstream bodies. Buffers of any other capacity are dropped on Put.
type copyBuffers struct {
	size int
	pool sync.Pool
}

func newCopyBuffers(size int) *copyBuffers {
	cb := &copyBuffers{size: size}
	cb.pool.New = func() interface{} {
		b := make([]byte, size)
		return &b
	}
	return cb
}

func (cb *copyBuffers) Get() []byte {
	return *cb.pool.Get().(*[]byte)
}

func (cb *copyBuffers) Put(b []byte) {
	if cap(b) != cb.size {
		return
	}
	b = b[:cb.size]
	cb.pool.Put(&b)
}
