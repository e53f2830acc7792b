package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotdashboard/backend/services/dashboard-service/internal/auth"
)

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Minute)
	token, err := tokens.GenerateToken("operator", "viewer")
	require.NoError(t, err)

	var seen string
	h := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", "", http.StatusUnauthorized},
		{"valid header", "Bearer " + token, "", http.StatusOK},
		{"valid query", "", "?token=" + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/devices"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "operator", seen)
			}
		})
	}
}
