package utils

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const UserIDKey contextKey = "userID"


func GetUserIDFromContext(r *http.Request) (uint, error) {
    userID, ok := r.Context().Value(UserIDKey).(uint)
    if !ok {
        return 0, errors.New("user ID not found in context")
    }
    return userID, nil
}


// AuthMiddleware resolves the acting user from a bearer JWT and stores the
// user ID in the request context. Requests without a valid token get a 401.
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        // Get token from Authorization header
        authHeader := r.Header.Get("Authorization")
        tokenString := strings.Replace(authHeader, "Bearer ", "", 1)

        // WebSocket clients can't set headers from the browser, so also
        // accept the token as a query parameter.
        if tokenString == "" {
            tokenString = r.URL.Query().Get("token")
        }
        if tokenString == "" {
            http.Error(w, "Authorization header required", http.StatusUnauthorized)
            return
        }

        // Parse and validate the token
        claims := &jwt.RegisteredClaims{}
        token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
            return []byte(os.Getenv("SECRET_KEY")), nil
        })

        if err != nil || !token.Valid {
            http.Error(w, "Invalid token", http.StatusUnauthorized)
            return
        }

        userID, err := strconv.ParseUint(claims.Subject, 10, 64)
        if err != nil {
            http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
            return
        }

        ctx := context.WithValue(r.Context(), UserIDKey, uint(userID))
        next(w, r.WithContext(ctx))
    }
}
