package credential

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CooldownClass is the outcome of classifying a failed call when no hard
// cooldown hint could be parsed from the payload, per spec §4.1.
type CooldownClass string

const (
	ClassRateLimit  CooldownClass = "rate_limit"  // "rpm|qps|per minute" -> 30s
	ClassQuota      CooldownClass = "quota"       // "quota" -> 1h
	ClassDefault429 CooldownClass = "default_429" // unmatched 429 -> 60s
	ClassServer     CooldownClass = "server"      // 500/503/529 -> 20s
)

var cooldownClassDefaults = map[CooldownClass]time.Duration{
	ClassRateLimit:  30 * time.Second,
	ClassQuota:      time.Hour,
	ClassDefault429: 60 * time.Second,
	ClassServer:     20 * time.Second,
}

var (
	rateLimitTextRe = regexp.MustCompile(`(?i)rate limit|rpm|per minute|qps`)
	quotaTextRe     = regexp.MustCompile(`(?i)quota`)
	resetAfterRe    = regexp.MustCompile(`(?i)(?:reset|retry)\s+(?:after|in)\s+(\d+(?:\.\d+)?)\s*s`)
	resetMinHourRe  = regexp.MustCompile(`(?i)in\s+(\d+(?:\.\d+)?)\s*([mh])`)
)

// ParseCooldownHint implements the priority-ordered cooldown hint parsing of
// spec §4.1: Retry-After header, then RetryInfo.retryDelay, then
// ErrorInfo.metadata.quotaResetTimeStamp, then quotaResetDelay, then a regex
// fallback on the message text. Returns the absolute instant the credential
// becomes usable again, and whether any hint was found at all.
func ParseCooldownHint(header http.Header, body []byte, now time.Time) (time.Time, bool) {
	if header != nil {
		if v := header.Get("Retry-After"); v != "" {
			if d, ok := parseRetryAfterValue(v, now); ok {
				return now.Add(d), true
			}
		}
	}
	if len(body) == 0 {
		return time.Time{}, false
	}
	details := gjson.GetBytes(body, "error.details")
	if details.IsArray() {
		for _, d := range details.Array() {
			if strings.Contains(d.Get("@type").String(), "RetryInfo") {
				if raw := d.Get("retryDelay").String(); raw != "" {
					if dur, err := parseGoogleDuration(raw); err == nil {
						return now.Add(dur), true
					}
				}
			}
		}
		for _, d := range details.Array() {
			if strings.Contains(d.Get("@type").String(), "ErrorInfo") {
				if ts := d.Get("metadata.quotaResetTimeStamp").String(); ts != "" {
					if t, err := time.Parse(time.RFC3339, ts); err == nil {
						return t, true
					}
				}
				if raw := d.Get("metadata.quotaResetDelay").String(); raw != "" {
					if dur, err := parseGoogleDuration(raw); err == nil {
						return now.Add(dur), true
					}
				}
			}
		}
	}
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = string(body)
	}
	if m := resetAfterRe.FindStringSubmatch(msg); len(m) == 2 {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			return now.Add(time.Duration(secs * float64(time.Second))), true
		}
	}
	if m := resetMinHourRe.FindStringSubmatch(msg); len(m) == 3 {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			unit := time.Minute
			if strings.EqualFold(m[2], "h") {
				unit = time.Hour
			}
			return now.Add(time.Duration(n * float64(unit))), true
		}
	}
	return time.Time{}, false
}

// ClassifyFailure buckets a failure with no parseable cooldown hint into one
// of the text-classification tiers of spec §4.1, given the HTTP status and the
// error message/body text.
func ClassifyFailure(status int, text string) CooldownClass {
	switch {
	case status == 429 && rateLimitTextRe.MatchString(text):
		return ClassRateLimit
	case status == 429 && quotaTextRe.MatchString(text):
		return ClassQuota
	case status == 429:
		return ClassDefault429
	default:
		return ClassServer
	}
}

// DefaultCooldownFor returns the default duration for a classification.
func DefaultCooldownFor(class CooldownClass) time.Duration {
	if d, ok := cooldownClassDefaults[class]; ok {
		return d
	}
	return cooldownClassDefaults[ClassDefault429]
}

// TieredBackoff implements the consecutive-exhaustion ladder of spec §4.1:
// 1st -> 60s, 2nd -> 5m, 3rd -> 30m, 4th+ -> 2h.
func TieredBackoff(strike int) time.Duration {
	switch {
	case strike <= 1:
		return 60 * time.Second
	case strike == 2:
		return 5 * time.Minute
	case strike == 3:
		return 30 * time.Minute
	default:
		return 2 * time.Hour
	}
}

func parseRetryAfterValue(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	layouts := []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := t.Sub(now)
			if d < 0 {
				d = 0
			}
			return d, true
		}
	}
	return 0, false
}

// parseGoogleDuration parses Google RPC duration strings like "1h16m0.667s" or
// "200ms" (Go's time.ParseDuration already understands this shape) as well as
// the bare-seconds-with-suffix form "3.5s" used by RetryInfo.retryDelay.
func parseGoogleDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmptyDuration
	}
	return time.ParseDuration(s)
}

var errEmptyDuration = durationParseError("empty duration string")

type durationParseError string

func (e durationParseError) Error() string { return string(e) }
