package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_RequestConversationAuthorization_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/pre-conversation" {
			t.Errorf("path = %q, want /auth/pre-conversation", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"allowed":true,"token":"conv-tok-1","remaining":5,"plan_limit":10,"user_id":"u1"}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	auth, err := c.RequestConversationAuthorization(context.Background(), "What is Go?")
	if err != nil {
		t.Fatalf("RequestConversationAuthorization() error = %v", err)
	}
	if auth.ConversationToken != "conv-tok-1" {
		t.Errorf("ConversationToken = %q, want conv-tok-1", auth.ConversationToken)
	}
	if auth.Remaining.Value() != 5 {
		t.Errorf("Remaining = %d, want 5", auth.Remaining.Value())
	}
	if auth.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", auth.UserID)
	}
	if auth.QuestionHash == "" {
		t.Error("QuestionHash is empty")
	}
}

func TestClient_RequestConversationAuthorization_Unlimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"allowed":true,"token":"conv-tok-2","remaining":"unlimited","user_id":"u2"}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	auth, err := c.RequestConversationAuthorization(context.Background(), "question")
	if err != nil {
		t.Fatalf("RequestConversationAuthorization() error = %v", err)
	}
	if !auth.Remaining.IsUnlimited() {
		t.Error("Remaining should be unlimited")
	}
}

func TestClient_RequestConversationAuthorization_Denied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"allowed":false,"used":10,"plan_limit":"unlimited","plan":"FREE","user_id":"u3"}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	_, err := c.RequestConversationAuthorization(context.Background(), "question")
	if err == nil {
		t.Fatal("expected error for denied authorization")
	}
	if !IsUsageLimitExceeded(err) {
		t.Errorf("expected usage-limit-exceeded error, got %v", err)
	}
	if got, want := UsageLimitMessage(err), "u3 | FREE | Daily limit reached (10/unlimited)"; got != want {
		t.Errorf("UsageLimitMessage = %q, want %q", got, want)
	}
}

func TestClient_RequestConversationAuthorization_NetworkFailure(t *testing.T) {
	c := New("http://127.0.0.1:0", "test-key")
	_, err := c.RequestConversationAuthorization(context.Background(), "question")
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	if !IsNetworkError(err) {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestClient_RequestConversationAuthorization_InvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	_, err := c.RequestConversationAuthorization(context.Background(), "question")
	if err == nil {
		t.Fatal("expected error for malformed response body")
	}
	if !IsInvalidResponse(err) {
		t.Errorf("expected invalid-response error, got %v", err)
	}
}

func TestClient_ReportConversationCompletion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["usage_proof"] == "" || body["usage_proof"] == nil {
			t.Error("usage_proof missing from request body")
		}
		_, _ = w.Write([]byte(`{"success":true,"remaining":4}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	v := c.ReportConversationCompletion(context.Background(), "conv-tok", "conv-id", "qhash")
	if !v.Verified {
		t.Error("expected Verified = true")
	}
	if v.RemainingConversations.Value() != 4 {
		t.Errorf("RemainingConversations = %d, want 4", v.RemainingConversations.Value())
	}
}

func TestClient_ReportConversationCompletion_UnreachableDoesNotPanic(t *testing.T) {
	c := New("http://127.0.0.1:0", "test-key")
	v := c.ReportConversationCompletion(context.Background(), "conv-tok", "conv-id", "qhash")
	if v.Verified {
		t.Error("expected Verified = false when backend unreachable")
	}
}

func TestClient_ValidateLicenseKey_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid":true,"user":{"id":"u1","email":"a@b.com","subscription_tier":"pro"},"limits":{"daily":"unlimited"},"features":["consensus","streaming"]}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	profile, err := c.ValidateLicenseKey(context.Background())
	if err != nil {
		t.Fatalf("ValidateLicenseKey() error = %v", err)
	}
	if profile.UserID != "u1" || profile.Email != "a@b.com" || profile.Tier != "pro" {
		t.Errorf("profile = %+v, want u1/a@b.com/pro", profile)
	}
	if !profile.DailyLimit.IsUnlimited() {
		t.Error("expected unlimited daily limit")
	}
	if len(profile.Features) != 2 {
		t.Errorf("Features = %v, want 2 entries", profile.Features)
	}
}

func TestClient_ValidateLicenseKey_Invalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid":false,"error":"license expired"}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	_, err := c.ValidateLicenseKey(context.Background())
	if err == nil {
		t.Fatal("expected error for invalid license")
	}
	if !IsAuthenticationFailed(err) {
		t.Errorf("expected authentication-failed error, got %v", err)
	}
}

func TestClient_GetQuickUsageStatus_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid":true,"usage":{"remaining":3,"limit":10}}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	status := c.GetQuickUsageStatus(context.Background())
	if status.Remaining.Value() != 3 || status.Limit.Value() != 10 {
		t.Errorf("status = %+v, want remaining=3 limit=10", status)
	}
}

func TestClient_GetQuickUsageStatus_UnreachableDefaultsConservatively(t *testing.T) {
	c := New("http://127.0.0.1:0", "test-key")
	status := c.GetQuickUsageStatus(context.Background())
	if status.Limit.Value() != 10 {
		t.Errorf("Limit = %d, want default 10", status.Limit.Value())
	}
}

func TestAuthorization_Expired(t *testing.T) {
	auth := Authorization{}
	if !auth.Expired() {
		t.Error("zero-value Authorization should be expired")
	}
}
