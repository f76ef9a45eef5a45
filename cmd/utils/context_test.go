package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	tests := []struct {
		name           string
		header         string
		query          string
		expectedStatus int
		expectedUser   uint
	}{
		{
			name:           "ValidBearerToken",
			header:         "Bearer " + signToken(t, "test-secret", "42"),
			expectedStatus: http.StatusOK,
			expectedUser:   42,
		},
		{
			name:           "ValidQueryToken",
			query:          signToken(t, "test-secret", "7"),
			expectedStatus: http.StatusOK,
			expectedUser:   7,
		},
		{
			name:           "MissingToken",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "GarbageToken",
			header:         "Bearer not-a-jwt",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "WrongSecret",
			header:         "Bearer " + signToken(t, "other-secret", "42"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "NonNumericSubject",
			header:         "Bearer " + signToken(t, "test-secret", "alice"),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser uint
			var nextCalled bool
			next := func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				gotUser, _ = GetUserIDFromContext(r)
			}

			target := "/transactions"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rr := httptest.NewRecorder()
			AuthMiddleware(next)(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus == http.StatusOK {
				if !nextCalled {
					t.Fatal("next handler was not called")
				}
				if gotUser != tt.expectedUser {
					t.Errorf("user = %d, want %d", gotUser, tt.expectedUser)
				}
			} else if nextCalled {
				t.Error("next handler called on rejected request")
			}
		})
	}
}

func TestGetUserIDFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := GetUserIDFromContext(req); err == nil {
		t.Fatal("expected error for request without user context")
	}
}
