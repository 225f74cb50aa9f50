package errors

import "net/http"

// Kind classifies a failure independently of which wire dialect renders it,
// per spec §7's error taxonomy. It layers on top of the existing
// APIError.Code short-tag field rather than replacing it.
type Kind string

const (
	KindClientMalformed        Kind = "client_malformed"
	KindAuthRejected           Kind = "auth_rejected"
	KindUpstreamNonRetryable   Kind = "upstream_non_retryable"
	KindUpstreamRateLimited    Kind = "upstream_rate_limited"
	KindUpstreamQuotaExhausted Kind = "upstream_quota_exhausted"
	KindUpstreamServerError    Kind = "upstream_server_error"
	KindUpstreamStalled        Kind = "upstream_stalled"
	KindUpstreamEmpty          Kind = "upstream_empty"
	KindCredentialPoolExhausted Kind = "credential_pool_exhausted"
	KindContextTooLong         Kind = "context_too_long"
)

// kindTag is the short APIError.Code tag each Kind renders as, matching the
// existing tags MapHTTPError already produces (QUOTA_EXHAUSTED, RATE_LIMITED,
// NO_CREDENTIAL, STALL) so both construction paths agree on wire vocabulary.
var kindTag = map[Kind]string{
	KindClientMalformed:        "invalid_request_error",
	KindAuthRejected:           "invalid_api_key",
	KindUpstreamNonRetryable:   "upstream_rejected",
	KindUpstreamRateLimited:    "RATE_LIMITED",
	KindUpstreamQuotaExhausted: "QUOTA_EXHAUSTED",
	KindUpstreamServerError:    "server_error",
	KindUpstreamStalled:        "STALL",
	KindUpstreamEmpty:          "upstream_empty",
	KindCredentialPoolExhausted: "NO_CREDENTIAL",
	KindContextTooLong:         "context_too_long",
}

var kindHTTPStatus = map[Kind]int{
	KindClientMalformed:         http.StatusBadRequest,
	KindAuthRejected:            http.StatusUnauthorized,
	KindUpstreamNonRetryable:    http.StatusBadGateway,
	KindUpstreamRateLimited:     http.StatusTooManyRequests,
	KindUpstreamQuotaExhausted:  http.StatusTooManyRequests,
	KindUpstreamServerError:     http.StatusBadGateway,
	KindUpstreamStalled:         http.StatusGatewayTimeout,
	KindUpstreamEmpty:           http.StatusBadGateway,
	KindCredentialPoolExhausted: http.StatusServiceUnavailable,
	KindContextTooLong:          http.StatusBadRequest,
}

// NewKind builds an APIError for Kind, looking up its conventional HTTP
// status and Code tag. code overrides the default tag when non-empty, for
// callers (like dispatch) that want a more specific short code than the
// Kind's default.
func NewKind(kind Kind, code, message string) *APIError {
	status := kindHTTPStatus[kind]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	tag := kindTag[kind]
	if code != "" {
		tag = code
	}
	err := New(status, tag, "server_error", message)
	err.Details = map[string]interface{}{"kind": string(kind)}
	return err
}
