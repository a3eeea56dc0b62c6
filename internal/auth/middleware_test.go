package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	is := newTestIssuers(t)

	var seen string
	protected := RequireAuth(is.Session)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	session, _ := is.Session.Issue("user-42")
	confirmation, _ := is.Confirmation.Issue("user-42")
	expired, _ := is.Session.IssueWithTTL("user-42", -time.Minute)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"valid session token", "Bearer " + session, http.StatusNoContent, "user-42"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"confirmation token is not a session", "Bearer " + confirmation, http.StatusUnauthorized, ""},
		{"expired session", "Bearer " + expired, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			protected.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if seen != tt.wantUser {
				t.Errorf("user in context = %q, want %q", seen, tt.wantUser)
			}
		})
	}
}

func TestUserIDFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id, ok := UserIDFromContext(req.Context()); ok || id != "" {
		t.Errorf("UserIDFromContext() = (%q, %v), want (\"\", false)", id, ok)
	}
}
