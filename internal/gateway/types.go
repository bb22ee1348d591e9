// Package gateway implements the stateless protocol adapter that enforces
// the licensing contract with the remote authorization backend (§4.3):
// pre-conversation authorization, post-conversation usage reporting, and
// license validation. Grounded on
// original_source/src/subscription/conversation_gateway.rs for the wire
// protocol, and on runtime/credentials for license-key header handling.
package gateway

import (
	"time"

	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

// Authorization is the token returned by a successful pre-conversation
// request. Remaining and Limit use types.Quota so an "unlimited" plan is
// represented exactly, never coerced to zero or a specific number.
type Authorization struct {
	ConversationToken string
	QuestionHash      string
	UserID            string
	Remaining         types.Quota
	Limit             types.Quota
	ExpiresAt         time.Time
}

// Expired reports whether this token is past its expiry, per §4.3.
func (a Authorization) Expired() bool {
	return time.Now().After(a.ExpiresAt)
}

// Verification is the result of reporting conversation completion. A
// verified=false result is recorded but never escalated to a pipeline
// failure — the Run already produced a valid answer.
type Verification struct {
	Verified               bool
	RemainingConversations types.Quota
	UsageUpdated           bool
}

// UserProfile is the result of a license validation call.
type UserProfile struct {
	UserID     string
	Email      string
	Tier       string
	DailyLimit types.Quota
	Features   []string
	IsValid    bool
}

// UsageStatus is the lightweight (remaining, limit) pair used for status
// displays, without a full authorization round-trip.
type UsageStatus struct {
	Remaining types.Quota
	Limit     types.Quota
}

// preConversationResponse mirrors the backend's pre-conversation JSON body.
// Field names follow the wire protocol, not Go conventions, since several
// are optional and ambiguously overloaded (token vs conversation_token).
type preConversationResponse struct {
	Allowed                bool         `json:"allowed"`
	Token                  string       `json:"token"`
	ConversationToken      string       `json:"conversation_token"`
	Remaining              *types.Quota `json:"remaining"`
	RemainingConversations *types.Quota `json:"remaining_conversations"`
	Limits                 *limitsInfo  `json:"limits"`
	PlanLimit              *types.Quota `json:"plan_limit"`
	User                   *userInfo    `json:"user"`
	UserID                 string       `json:"user_id"`
	Email                  string       `json:"email"`
	ExpiresAt              string       `json:"expires_at"`
	Error                  string       `json:"error"`
	Used                   *uint64      `json:"used"`
	UsedConversations      uint64       `json:"used_conversations"`
	Plan                   string       `json:"plan"`
}

// usedCount returns the denial body's usage count. §4.3's wire protocol
// names this field "used"; "used_conversations" is an older alias some
// backends still send. "used" wins when both are present.
func (r preConversationResponse) usedCount() uint64 {
	if r.Used != nil {
		return *r.Used
	}
	return r.UsedConversations
}

type limitsInfo struct {
	Daily types.Quota `json:"daily"`
}

type userInfo struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscription_tier"`
}

type postConversationResponse struct {
	Success                bool         `json:"success"`
	Verified               bool         `json:"verified"`
	Remaining              *types.Quota `json:"remaining"`
	RemainingConversations *types.Quota `json:"remaining_conversations"`
	Error                  string       `json:"error"`
}

type validateResponse struct {
	Valid      bool         `json:"valid"`
	Status     string       `json:"status"`
	User       *userInfo    `json:"user"`
	UserID     string       `json:"user_id"`
	Email      string       `json:"email"`
	Tier       string       `json:"tier"`
	Limits     *limitsInfo  `json:"limits"`
	DailyLimit *types.Quota `json:"daily_limit"`
	Features   []string     `json:"features"`
	Usage      *usageInfo   `json:"usage"`
	Error      string       `json:"error"`
}

type usageInfo struct {
	Remaining types.Quota `json:"remaining"`
	Limit     types.Quota `json:"limit"`
}
