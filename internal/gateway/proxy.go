package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/logging"
	"github.com/clusterinfer/orchestrator/internal/sshtunnel"
)

// hopByHopHeaders are stripped before forwarding in either direction, per
// RFC 7230 §6.1 and spec §4.10.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Proxy constructs the internal orchestrator URL for each public call and
// forwards it over the SSH tunnel, passing the response through verbatim
// except for hop-by-hop headers (spec §4.10).
type Proxy struct {
	tunnel           *sshtunnel.Manager
	localPort        int
	orchestratorHost string
	orchestratorPort int
	http             *http.Client
	log              *logging.Logger
}

func NewProxy(tunnel *sshtunnel.Manager, localPort int, orchestratorHost string, orchestratorPort int) *Proxy {
	return &Proxy{
		tunnel:           tunnel,
		localPort:        localPort,
		orchestratorHost: orchestratorHost,
		orchestratorPort: orchestratorPort,
		http:             &http.Client{},
		log:              logging.With("gateway-proxy"),
	}
}

// Handler forwards every request it is mounted on to the orchestrator
// facade, preserving method, path, query string, and body.
func (p *Proxy) Handler() gin.HandlerFunc {
	return p.forwardTo(func(c *gin.Context) string { return c.Request.URL.RequestURI() })
}

// HandlerForPath forwards every request to a fixed facade path (plus the
// incoming query string) regardless of the inbound request path, for
// gateway routes that alias a facade endpoint under a different public
// path (e.g. the top-level /events passthrough to /api/v1/events).
func (p *Proxy) HandlerForPath(remotePath string) gin.HandlerFunc {
	return p.forwardTo(func(c *gin.Context) string {
		if q := c.Request.URL.RawQuery; q != "" {
			return remotePath + "?" + q
		}
		return remotePath
	})
}

func (p *Proxy) forwardTo(target func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.ensureTunnel(c); err != nil {
			writeProxyError(c, err)
			return
		}

		targetURL := fmt.Sprintf("http://127.0.0.1:%d%s", p.localPort, target(c))

		body := c.Request.Body
		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, body)
		if err != nil {
			writeProxyError(c, apierr.Wrap(apierr.KindUpstreamFailure, "build proxy request failed", err))
			return
		}
		copyHeaders(req.Header, c.Request.Header)

		resp, err := p.http.Do(req)
		if err != nil {
			writeProxyError(c, apierr.Wrap(apierr.KindTunnelFailure, "orchestrator unreachable", err))
			return
		}
		defer resp.Body.Close()

		copyHeaders(c.Writer.Header(), resp.Header)
		c.Status(resp.StatusCode)
		streamCopy(c.Writer, resp.Body)
	}
}

// streamCopy copies the upstream response through, flushing after every
// chunk so a streamed response (the SSE event feed) reaches the client
// incrementally instead of buffering until the upstream closes.
func streamCopy(w http.ResponseWriter, r io.Reader) {
	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *Proxy) ensureTunnel(c *gin.Context) error {
	if p.tunnel == nil {
		return nil
	}
	_, err := p.tunnel.EnsureTunnel(c.Request.Context(), p.localPort, p.orchestratorHost, p.orchestratorPort)
	return err
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isHopByHop(header string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, header) {
			return true
		}
	}
	return false
}

// writeProxyError maps an error to the gateway's response per spec §4.10:
// TunnelFailure -> 502, AuthExpired -> 401, other handler errors pass
// through their original status.
func writeProxyError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if apierr.As(err, &apiErr) {
		c.JSON(apiErr.HTTPStatus(), gin.H{"detail": apiErr.Detail})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"detail": "gateway error"})
}
