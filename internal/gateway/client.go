package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hivetechs-collective/Hive-sub013/pkg/httputil"
	"github.com/hivetechs-collective/Hive-sub013/runtime/credentials"
	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

// gatewayTimeout is §5's explicit 30s gateway call timeout.
const gatewayTimeout = 30 * time.Second

// replayGuardTTL bounds how long a usage proof is remembered. It only needs
// to outlast the window in which a client could plausibly retry the same
// post-conversation report (reconnect after a dropped response, a restarted
// session loop), not the conversation token's own lifetime.
const replayGuardTTL = time.Hour

// replayGuardPrefix namespaces replay-guard keys from anything else sharing
// the same Redis keyspace (e.g. the cache hot level).
const replayGuardPrefix = "gateway:replay:"

// tracer emits spans around every gateway call. It resolves against
// whatever TracerProvider is registered globally (otel.SetTracerProvider);
// with none registered, span creation is a no-op, same idiom as
// runtime/telemetry.Tracer's nil-provider fallback.
var tracer = otel.Tracer("github.com/hivetechs-collective/Hive-sub013/internal/gateway")

// Client is the stateless protocol adapter described by §4.3. It owns no
// persistent state — every call is a self-contained round trip.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	credential  credentials.Credential
	replayGuard *redis.Client // optional; nil disables replay suppression
}

// New builds a Client. licenseKey is wrapped in an APIKeyCredential
// carrying the Bearer prefix the backend expects on every request, the same
// idiom runtime/credentials uses for provider authentication.
func New(baseURL, licenseKey string) *Client {
	return &Client{
		httpClient: httputil.NewHTTPClient(gatewayTimeout),
		baseURL:    baseURL,
		credential: credentials.NewAPIKeyCredential(licenseKey, credentials.WithBearerPrefix()),
	}
}

// WithReplayGuard attaches a Redis client the Client uses to suppress
// duplicate post-conversation usage reports carrying the same usage proof
// (e.g. a session loop that retries ReportConversationCompletion after a
// dropped response). Returns c for chaining at construction time.
func (c *Client) WithReplayGuard(rdb *redis.Client) *Client {
	c.replayGuard = rdb
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, invalidResponse("failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, networkError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.credential.Apply(ctx, req); err != nil {
		return nil, networkError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	return resp, nil
}

// RequestConversationAuthorization performs the pre-conversation exchange,
// called before starting any consensus run.
func (c *Client) RequestConversationAuthorization(ctx context.Context, question string) (Authorization, error) {
	ctx, span := tracer.Start(ctx, "gateway.RequestConversationAuthorization")
	defer span.End()

	qHash := questionHash(question)
	span.SetAttributes(attribute.String("gateway.question_hash", qHash))

	auth, err := c.requestConversationAuthorization(ctx, qHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return auth, err
}

func (c *Client) requestConversationAuthorization(ctx context.Context, qHash string) (Authorization, error) {
	resp, err := c.do(ctx, http.MethodPost, "/auth/pre-conversation", map[string]any{
		"license_key":               c.licenseKeyForBody(),
		"installation_id":           installationID(),
		"conversation_request_hash": qHash,
	})
	if err != nil {
		return Authorization{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Authorization{}, invalidResponse(err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Authorization{}, c.preConversationFailure(resp.StatusCode, raw)
	}

	var result preConversationResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return Authorization{}, invalidResponse(fmt.Sprintf("failed to parse response: %v", err), err)
	}

	if !result.Allowed {
		limit := types.FiniteQuota(10)
		if result.PlanLimit != nil {
			limit = *result.PlanLimit
		}
		plan := result.Plan
		if plan == "" {
			plan = "FREE"
		}
		return Authorization{}, usageLimitExceeded(result.usedCount(), limit, plan, pickUser(result.User, result.UserID, result.Email))
	}

	token := result.Token
	if token == "" {
		token = result.ConversationToken
	}
	if token == "" {
		return Authorization{}, invalidResponse("no conversation token in response", nil)
	}

	expiresAt := time.Now().Add(time.Hour)
	if result.ExpiresAt != "" {
		if parsed, err := time.Parse(time.RFC3339, result.ExpiresAt); err == nil {
			expiresAt = parsed
		}
	}

	userID := pickUser(result.User, result.UserID, result.Email)
	if userID == "" {
		userID = "unknown"
	}

	remaining := orQuota(result.Remaining, result.RemainingConversations)
	limit := orQuota(nil, result.PlanLimit)
	if result.Limits != nil {
		limit = &result.Limits.Daily
	}

	auth := Authorization{
		ConversationToken: token,
		QuestionHash:      qHash,
		UserID:            userID,
		ExpiresAt:         expiresAt,
	}
	if remaining != nil {
		auth.Remaining = *remaining
	}
	if limit != nil {
		auth.Limit = *limit
	}

	logger.Info("gateway: conversation authorized", "remaining", auth.Remaining.Value(), "unlimited", auth.Remaining.IsUnlimited())
	return auth, nil
}

// preConversationFailure classifies a non-2xx pre-conversation response
// per §4.3's failure semantics. The gateway reports a denied conversation
// (allowed=false plus a usage/plan snapshot) on either a 2xx or non-2xx
// status, so this path — not just requestConversationAuthorization's
// in-band !result.Allowed check — must also recognize and format it per
// scenario B's exact wording.
func (c *Client) preConversationFailure(status int, raw []byte) error {
	var errResp preConversationResponse
	_ = json.Unmarshal(raw, &errResp)

	if errResp.Error != "" {
		user := pickUser(errResp.User, errResp.UserID, errResp.Email)
		msg := errResp.Error
		if user != "" {
			msg = user + " | " + errResp.Error
		}
		return authenticationFailed(msg)
	}

	if bytes.Contains(raw, []byte(`"allowed"`)) && !errResp.Allowed {
		limit := types.FiniteQuota(10)
		if errResp.PlanLimit != nil {
			limit = *errResp.PlanLimit
		}
		plan := errResp.Plan
		if plan == "" {
			plan = "FREE"
		}
		user := pickUser(errResp.User, errResp.UserID, errResp.Email)
		return usageLimitExceeded(errResp.usedCount(), limit, plan, user)
	}

	body := string(raw)
	switch {
	case strings.Contains(body, "Invalid or inactive license"):
		return authenticationFailed("Invalid or inactive license")
	case strings.Contains(body, "No active subscription"):
		return authenticationFailed("No active subscription found")
	default:
		return authenticationFailed(fmt.Sprintf("Authorization failed with status %d", status))
	}
}

// ReportConversationCompletion reports usage after a successful consensus
// run. A verified=false or unreachable backend never fails the call — the
// run already produced a valid answer — it is only recorded.
func (c *Client) ReportConversationCompletion(ctx context.Context, conversationToken, conversationID, qHash string) Verification {
	ctx, span := tracer.Start(ctx, "gateway.ReportConversationCompletion",
		trace.WithAttributes(attribute.String("gateway.conversation_id", conversationID)))
	defer span.End()

	proof := usageProof(conversationToken, conversationID, qHash)

	if c.replayGuard != nil {
		fresh, err := c.replayGuard.SetNX(ctx, replayGuardPrefix+proof, 1, replayGuardTTL).Result()
		if err != nil {
			logger.Warn("gateway: replay-guard check failed, reporting anyway", "error", err)
		} else if !fresh {
			logger.Warn("gateway: suppressed duplicate post-conversation report", "conversation_id", conversationID)
			span.SetAttributes(attribute.Bool("gateway.replay_suppressed", true))
			return Verification{Verified: true}
		}
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/post-conversation", map[string]any{
		"conversation_token": conversationToken,
		"conversation_id":    conversationID,
		"usage_proof":        proof,
		"timestamp":          time.Now().Format(time.RFC3339),
	})
	if err != nil {
		logger.Warn("gateway: conversation verification request failed", "error", err)
		span.RecordError(err)
		return Verification{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		logger.Warn("gateway: conversation verification failed", "body", string(raw))
		return Verification{}
	}

	var result postConversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Warn("gateway: conversation verification response unreadable", "error", err)
		return Verification{}
	}

	verified := result.Success || result.Verified
	remaining := orQuota(result.Remaining, result.RemainingConversations)
	v := Verification{Verified: verified, UsageUpdated: verified}
	if remaining != nil {
		v.RemainingConversations = *remaining
	}
	span.SetAttributes(attribute.Bool("gateway.verified", v.Verified))
	logger.Info("gateway: conversation verified", "verified", v.Verified, "remaining", v.RemainingConversations.Value())
	return v
}

// ValidateLicenseKey validates the configured license key and fetches the
// user profile it authorizes.
func (c *Client) ValidateLicenseKey(ctx context.Context) (UserProfile, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/session/validate", map[string]any{
		"client_id":     "hive-tools",
		"session_token": c.licenseKeyForBody(),
		"fingerprint":   deviceFingerprint(),
		"nonce":         fmt.Sprintf("%d", time.Now().UnixMilli()),
	})
	if err != nil {
		return UserProfile{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UserProfile{}, authenticationFailed(fmt.Sprintf("License validation failed: %d - %s", resp.StatusCode, string(raw)))
	}

	var result validateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return UserProfile{}, invalidResponse(err.Error(), err)
	}
	if !result.Valid {
		msg := result.Error
		if msg == "" {
			msg = "Invalid license key"
		}
		return UserProfile{}, authenticationFailed(msg)
	}

	tier := "free"
	if result.User != nil && result.User.SubscriptionTier != "" {
		tier = result.User.SubscriptionTier
	} else if result.Tier != "" {
		tier = result.Tier
	}

	profile := UserProfile{
		Email:    pickEmail(result.User, result.Email),
		Tier:     tier,
		Features: result.Features,
		IsValid:  result.Valid || result.Status == "active",
	}
	if result.User != nil && result.User.ID != "" {
		profile.UserID = result.User.ID
	} else {
		profile.UserID = result.UserID
	}
	if profile.UserID == "" {
		return UserProfile{}, invalidResponse("no user ID in response", nil)
	}
	if len(profile.Features) == 0 {
		profile.Features = []string{"consensus"}
	}

	if result.Limits != nil {
		profile.DailyLimit = result.Limits.Daily
	} else if result.DailyLimit != nil {
		profile.DailyLimit = *result.DailyLimit
	} else {
		profile.DailyLimit = types.FiniteQuota(10)
	}

	return profile, nil
}

// GetQuickUsageStatus fetches remaining/limit without a full authorization
// round trip, for status displays. Errors degrade to a conservative
// (0, 10) default rather than propagating, matching the original's
// display-only tolerance for this call.
func (c *Client) GetQuickUsageStatus(ctx context.Context) UsageStatus {
	resp, err := c.do(ctx, http.MethodPost, "/v1/session/validate", map[string]any{
		"client_id":     "hive-tools",
		"session_token": c.licenseKeyForBody(),
		"fingerprint":   deviceFingerprint(),
		"nonce":         fmt.Sprintf("%d", time.Now().UnixMilli()),
	})
	if err != nil {
		return UsageStatus{Limit: types.FiniteQuota(10)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UsageStatus{Limit: types.FiniteQuota(10)}
	}

	var result validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UsageStatus{Limit: types.FiniteQuota(10)}
	}

	status := UsageStatus{Limit: types.FiniteQuota(10)}
	if result.Usage != nil {
		status.Remaining = result.Usage.Remaining
		status.Limit = result.Usage.Limit
	} else if result.Limits != nil {
		status.Limit = result.Limits.Daily
	} else if result.DailyLimit != nil {
		status.Limit = *result.DailyLimit
	}
	return status
}

// licenseKeyForBody exposes the raw license key for request bodies that
// need it alongside the Authorization header (the backend expects both).
func (c *Client) licenseKeyForBody() string {
	if apiKey, ok := c.credential.(*credentials.APIKeyCredential); ok {
		return apiKey.APIKey()
	}
	return ""
}

func orQuota(first, second *types.Quota) *types.Quota {
	if first != nil {
		return first
	}
	return second
}

func pickUser(u *userInfo, userID, email string) string {
	if u != nil {
		if u.ID != "" {
			return u.ID
		}
		if u.Email != "" {
			return u.Email
		}
	}
	if userID != "" {
		return userID
	}
	return email
}

func pickEmail(u *userInfo, email string) string {
	if u != nil && u.Email != "" {
		return u.Email
	}
	return email
}

