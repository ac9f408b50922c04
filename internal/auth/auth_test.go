package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithRole(role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/revenue/moderators/mod-1/shares", nil)
	ctx := context.WithValue(req.Context(), userIDKey, "mod-1")
	ctx = context.WithValue(ctx, roleKey, role)
	return req.WithContext(ctx)
}

func TestRequireRoleAllowsListedRoles(t *testing.T) {
	handler := RequireRole("MODERATOR", "ADMIN")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, role := range []string{"MODERATOR", "ADMIN"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithRole(role))
		assert.Equal(t, http.StatusOK, rec.Code, "role=%s", role)
	}
}

func TestRequireRoleRejectsOtherRoles(t *testing.T) {
	handler := RequireRole("MODERATOR", "ADMIN")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, role := range []string{"USER", "HOST", ""} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithRole(role))
		assert.Equal(t, http.StatusForbidden, rec.Code, "role=%s", role)
	}
}

func TestContextAccessors(t *testing.T) {
	req := requestWithRole("MODERATOR")
	assert.Equal(t, "mod-1", UserID(req.Context()))
	assert.Equal(t, "MODERATOR", Role(req.Context()))

	// An unauthenticated context answers empty strings.
	assert.Empty(t, UserID(context.Background()))
	assert.Empty(t, Role(context.Background()))
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromRequest(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Bearer some-token")
	token, err := ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "some-token", token)
}

func TestExtractUserIDFromJWT(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "mod-1",
		"role": "MODERATOR",
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	sub, err := ExtractUserIDFromJWT(signed)
	require.NoError(t, err)
	assert.Equal(t, "mod-1", sub)

	_, err = ExtractUserIDFromJWT("")
	assert.Error(t, err)

	_, err = ExtractUserIDFromJWT("not-a-jwt")
	assert.Error(t, err)
}
