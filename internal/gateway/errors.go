package gateway

import (
	"fmt"

	"github.com/hivetechs-collective/Hive-sub013/pkg/errors"
	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

// Operation names double as the error taxonomy §4.3 names; callers
// classify a returned error with the Is* helpers below rather than
// matching strings.
const (
	opAuthenticationFailed = "authentication-failed"
	opUsageLimitExceeded   = "usage-limit-exceeded"
	opNetworkError         = "network-error"
	opInvalidResponse      = "invalid-response"
)

// authenticationFailed wraps a denial or bad-credential response. message
// has the user identifier appended already, when one was available.
func authenticationFailed(message string) *errors.ContextualError {
	return errors.New("gateway", opAuthenticationFailed, nil).WithDetails(map[string]any{"message": message})
}

// usageLimitExceeded records the plan/usage snapshot from a denied
// pre-conversation response, per §4.3. limit is carried as types.Quota
// rather than a finite number so an "unlimited" plan survives into the
// message verbatim (§8 invariant 10) — scenario B's exact wording, "<user>
// | <plan> | Daily limit reached (<used>/<limit>)", is built here once so
// every caller (pipeline error frame, REST handler) sees the same text.
func usageLimitExceeded(used uint64, limit types.Quota, plan, user string) *errors.ContextualError {
	message := fmt.Sprintf("%s | %s | Daily limit reached (%d/%s)", user, plan, used, limit.String())
	return errors.New("gateway", opUsageLimitExceeded, nil).WithDetails(map[string]any{
		"used": used, "limit": limit, "plan": plan, "user": user, "message": message,
	})
}

// UsageLimitMessage extracts the formatted "<user> | <plan> | Daily limit
// reached (<used>/<limit>)" string from a usage-limit-exceeded error, or
// the error's own default rendering if it carries no such detail (a
// defensive fallback; usageLimitExceeded always sets it).
func UsageLimitMessage(err error) string {
	ce, ok := err.(*errors.ContextualError)
	if !ok || ce.Details == nil {
		return err.Error()
	}
	if msg, ok := ce.Details["message"].(string); ok {
		return msg
	}
	return err.Error()
}

func networkError(cause error) *errors.ContextualError {
	return errors.New("gateway", opNetworkError, cause)
}

func invalidResponse(detail string, cause error) *errors.ContextualError {
	return errors.New("gateway", opInvalidResponse, cause).WithDetails(map[string]any{"detail": detail})
}

func tokenExpired() *errors.ContextualError {
	return authenticationFailed("token expired")
}

// TokenExpired is the AuthenticationFailed("token expired") error §4.3
// requires when a pipeline needs a stage (or the post-conversation report)
// and its Authorization.Expired() is true, and re-authorization itself
// fails.
func TokenExpired() error {
	return tokenExpired()
}

// IsAuthenticationFailed reports whether err is (or wraps) an
// authentication-failure response from the gateway.
func IsAuthenticationFailed(err error) bool { return hasOperation(err, opAuthenticationFailed) }

// IsUsageLimitExceeded reports whether err is a denied pre-conversation
// response carrying a usage snapshot.
func IsUsageLimitExceeded(err error) bool { return hasOperation(err, opUsageLimitExceeded) }

// IsNetworkError reports whether err originated from the transport layer
// rather than a parsed gateway response.
func IsNetworkError(err error) bool { return hasOperation(err, opNetworkError) }

// IsInvalidResponse reports whether the gateway's response body could not
// be parsed into the expected shape.
func IsInvalidResponse(err error) bool { return hasOperation(err, opInvalidResponse) }

func hasOperation(err error, op string) bool {
	ce, ok := err.(*errors.ContextualError)
	return ok && ce.Operation == op
}
