package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRemoteAddr = "1.2.3.4:1234"
	testSecret     = "s3cret"
)

func newLimitedEcho(ratePerSecond float64, burst int, trustProxy bool) *echo.Echo {
	e := echo.New()
	e.IPExtractor = ipExtractor(trustProxy)
	e.POST("/webhooks/slack", func(c echo.Context) error {
		var req webhookRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		return c.String(http.StatusOK, req.TeamID)
	}, newWebhookRateLimiter(ratePerSecond, burst, testSecret))
	return e
}

func postDelivery(e *echo.Echo, remoteAddr, token, team string, header map[string]string) *httptest.ResponseRecorder {
	form := url.Values{"token": {token}, "team_id": {team}, "text": {"foo++"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRateLimiter_AllowsRequestsUnderLimit(t *testing.T) {
	e := newLimitedEcho(10, 3, false)

	for i := 0; i < 3; i++ {
		rec := postDelivery(e, testRemoteAddr, testSecret, "T1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "T1", rec.Body.String())
	}
}

func TestWebhookRateLimiter_BlocksExcessiveRequests(t *testing.T) {
	e := newLimitedEcho(0.01, 1, false)

	rec := postDelivery(e, testRemoteAddr, testSecret, "T1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postDelivery(e, testRemoteAddr, testSecret, "T1", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp["error"])
}

func TestWebhookRateLimiter_WorkspacesBehindSameEgressAreIndependent(t *testing.T) {
	e := newLimitedEcho(0.01, 1, false)

	assert.Equal(t, http.StatusOK, postDelivery(e, testRemoteAddr, testSecret, "T1", nil).Code)
	assert.Equal(t, http.StatusOK, postDelivery(e, testRemoteAddr, testSecret, "T2", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, postDelivery(e, testRemoteAddr, testSecret, "T1", nil).Code)
}

func TestWebhookRateLimiter_WorkspaceBucketSpansEgressAddresses(t *testing.T) {
	e := newLimitedEcho(0.01, 1, false)

	assert.Equal(t, http.StatusOK, postDelivery(e, testRemoteAddr, testSecret, "T1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, postDelivery(e, "5.6.7.8:5678", testSecret, "T1", nil).Code)
}

func TestWebhookRateLimiter_BadTokenFallsBackToPeerAddress(t *testing.T) {
	e := newLimitedEcho(0.01, 1, false)

	// Forged deliveries naming T1 are throttled on the sender's address.
	assert.Equal(t, http.StatusOK, postDelivery(e, "9.9.9.9:1", "wrong", "T1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, postDelivery(e, "9.9.9.9:1", "wrong", "T1", nil).Code)

	// T1's own bucket is untouched.
	assert.Equal(t, http.StatusOK, postDelivery(e, testRemoteAddr, testSecret, "T1", nil).Code)
}

func TestWebhookRateLimiter_MissingTeamFallsBackToPeerAddress(t *testing.T) {
	e := newLimitedEcho(0.01, 1, false)

	assert.Equal(t, http.StatusOK, postDelivery(e, testRemoteAddr, testSecret, "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, postDelivery(e, testRemoteAddr, testSecret, "", nil).Code)
	assert.Equal(t, http.StatusOK, postDelivery(e, "5.6.7.8:5678", testSecret, "", nil).Code)
}

func TestWebhookRateLimiter_IgnoresForwardedForByDefault(t *testing.T) {
	e := newLimitedEcho(0.01, 1, false)

	first := postDelivery(e, testRemoteAddr, "wrong", "", map[string]string{echo.HeaderXForwardedFor: "203.0.113.1"})
	second := postDelivery(e, testRemoteAddr, "wrong", "", map[string]string{echo.HeaderXForwardedFor: "203.0.113.2"})

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestWebhookRateLimiter_TrustsForwardedForWhenEnabled(t *testing.T) {
	e := newLimitedEcho(0.01, 1, true)
	proxy := "10.0.0.1:4321"

	first := postDelivery(e, proxy, "wrong", "", map[string]string{echo.HeaderXForwardedFor: "203.0.113.1"})
	second := postDelivery(e, proxy, "wrong", "", map[string]string{echo.HeaderXForwardedFor: "203.0.113.2"})

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
}

func TestWebhookRateLimiter_JSONBodyStaysBindable(t *testing.T) {
	e := newLimitedEcho(0.01, 1, false)

	post := func() *httptest.ResponseRecorder {
		body := `{"token":"s3cret","team_id":"T9","text":"foo++"}`
		req := httptest.NewRequest(http.MethodPost, "/webhooks/slack", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.RemoteAddr = testRemoteAddr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := post()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T9", rec.Body.String())

	assert.Equal(t, http.StatusTooManyRequests, post().Code)

	// The JSON delivery used T9's bucket, not the peer address.
	assert.Equal(t, http.StatusOK, postDelivery(e, testRemoteAddr, "wrong", "", nil).Code)
}

func TestWebhookRateLimiter_OversizedBodyStillRejected(t *testing.T) {
	e := echo.New()
	e.IPExtractor = ipExtractor(false)
	e.POST("/webhooks/slack", func(c echo.Context) error {
		var req webhookRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		return c.NoContent(http.StatusOK)
	}, middleware.BodyLimit("1K"), newWebhookRateLimiter(10, 10, testSecret))

	form := url.Values{"token": {testSecret}, "team_id": {"T1"}, "text": {strings.Repeat("a", 4096)}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.RemoteAddr = testRemoteAddr
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
