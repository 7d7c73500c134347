package gateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestConcurrencyCapRejectsBeyondLimit(t *testing.T) {
	cc := newConcurrencyCap(1)

	r := gin.New()
	started := make(chan struct{})
	release := make(chan struct{})
	r.Use(cc.middleware())
	r.GET("/", func(c *gin.Context) {
		close(started)
		<-release
		c.Status(http.StatusOK)
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		r.ServeHTTP(w, req)
		done <- w
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never acquired the semaphore slot")
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusServiceUnavailable, w2.Code)
	assert.Equal(t, "1", w2.Header().Get("Retry-After"))

	close(release)
	w1 := <-done
	assert.Equal(t, http.StatusOK, w1.Code)
}

func TestClientRateLimiterDisabledWhenRPMNonPositive(t *testing.T) {
	rl := newClientRateLimiter(0, 0)

	r := gin.New()
	r.Use(rl.middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestClientRateLimiterRejectsBeyondBurst(t *testing.T) {
	rl := newClientRateLimiter(60, 2)

	r := gin.New()
	r.Use(rl.middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestIsHopByHopHeaders(t *testing.T) {
	assert.True(t, isHopByHop("Connection"))
	assert.True(t, isHopByHop("keep-alive"))
	assert.True(t, isHopByHop("Transfer-Encoding"))
	assert.False(t, isHopByHop("Content-Type"))
	assert.False(t, isHopByHop("Authorization"))
}

func TestCopyHeadersStripsHopByHop(t *testing.T) {
	src := http.Header{}
	src.Set("Connection", "keep-alive")
	src.Set("Content-Type", "application/json")

	dst := http.Header{}
	copyHeaders(dst, src)

	assert.Empty(t, dst.Get("Connection"))
	assert.Equal(t, "application/json", dst.Get("Content-Type"))
}

func TestProxyHandlerForwardsRequestAndResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/recipes", r.URL.Path)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	parsed, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	p := NewProxy(nil, port, "", 0)

	r := gin.New()
	r.Any("/api/v1/*path", p.Handler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recipes", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestProxyHandlerForPathRewritesToFixedTarget(t *testing.T) {
	var sawPath, sawQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawPath = r.URL.Path
		sawQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	parsed, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	p := NewProxy(nil, port, "", 0)

	r := gin.New()
	r.GET("/events", p.HandlerForPath("/api/v1/events"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events?since=5", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/events", sawPath)
	assert.Equal(t, "since=5", sawQuery)
}
