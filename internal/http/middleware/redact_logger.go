package middleware

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxQueryLogLength = 2048

// RedactOptions lists extra headers and query parameters whose values are
// replaced with "[REDACTED]". Names are matched case-insensitively and merged
// with the built-in sets (Authorization, Cookie, Set-Cookie; access_token,
// secret, token).
type RedactOptions struct {
	MaskHeaders []string
	MaskQuery   []string
}

var (
	profileRE = regexp.MustCompile(`(?i)\bvk\.com/(?:id)?[a-z0-9_.]+`)
	emailRE   = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Russian mobile numbers in the formats found in statements.
	phoneRE = regexp.MustCompile(`(?:\+7|\b[78])[ \-]?\(?\d{3}\)?[ \-]?\d{3}[ \-]?\d{2}[ \-]?\d{2}\b`)
)

// redact scrubs profile links, e-mails and phone numbers from s.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = profileRE.ReplaceAllString(s, "[REDACTED:profile]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func lowerSet(base []string, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for _, v := range append(base, extra...) {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

// RedactingLogger is the access logger. It attaches a request-scoped logger
// (request id, method, route) for handlers, then logs one "http_request"
// line per request with masked headers and query values. Bodies are never
// logged. Level is info, warn for 4xx and error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders)
	maskQuery := lowerSet([]string{"access_token", "secret", "token"}, opts.MaskQuery)

	scrubQuery := func(raw string) string {
		if raw == "" {
			return ""
		}
		vals, err := url.ParseQuery(raw)
		if err != nil {
			return redact(truncate(raw, maxQueryLogLength))
		}
		keys := make([]string, 0, len(vals))
		for k := range vals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			_, masked := maskQuery[strings.ToLower(k)]
			for _, v := range vals[k] {
				if masked {
					v = "[REDACTED]"
				}
				parts = append(parts, k+"="+redact(v))
			}
		}
		return truncate(strings.Join(parts, "&"), maxQueryLogLength)
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		rid := RequestIDFrom(c)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}

		scoped := log.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &scoped)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}
		query := scrubQuery(c.Request.URL.RawQuery)

		c.Next()

		status := c.Writer.Status()
		ev := scoped.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = scoped.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = scoped.Warn()
		}
		ev.
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
