package httpserver

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

// newWebhookRateLimiter throttles webhook deliveries per Slack workspace.
//
// Every outgoing webhook arrives from Slack's shared egress addresses, so the
// peer IP says nothing about who is voting. A delivery carrying the right token
// is keyed by its team_id. Anything else is keyed by the peer IP, so forged
// requests cannot drain a workspace's bucket.
func newWebhookRateLimiter(ratePerSecond float64, burst int, secret string) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return deliveryKey(c, secret), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded",
			})
		},
	})
}

func deliveryKey(c echo.Context, secret string) string {
	token, team := peekDelivery(c)
	if team != "" && subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1 {
		return "team:" + team
	}
	return "ip:" + c.RealIP()
}

// peekDelivery reads token and team_id without consuming the body for Bind.
func peekDelivery(c echo.Context) (token, team string) {
	req := c.Request()
	contentType := req.Header.Get(echo.HeaderContentType)
	isJSON := strings.HasPrefix(contentType, echo.MIMEApplicationJSON)
	if !isJSON && !strings.HasPrefix(contentType, echo.MIMEApplicationForm) {
		return "", ""
	}

	body, err := io.ReadAll(req.Body)
	// A failed read (e.g. body limit) replays the rest so Bind sees the same error.
	req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), req.Body))
	if err != nil {
		return "", ""
	}

	if !isJSON {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return "", ""
		}
		return form.Get("token"), form.Get("team_id")
	}

	var p struct {
		Token  string `json:"token"`
		TeamID string `json:"team_id"`
	}
	if json.Unmarshal(body, &p) != nil {
		return "", ""
	}
	return p.Token, p.TeamID
}

// ipExtractor picks how RealIP resolves the peer. Proxy headers are only
// honoured when the deployment sits behind a proxy that sets them.
func ipExtractor(trustProxyHeaders bool) echo.IPExtractor {
	if trustProxyHeaders {
		return echo.ExtractIPFromXFFHeader()
	}
	return echo.ExtractIPDirect()
}
