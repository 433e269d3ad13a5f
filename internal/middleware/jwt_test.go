package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinema-reservation/internal/utils"
)

const testSecret = "middleware-test-secret"

func runProtected(t *testing.T, authHeader string, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	require.NoError(t, h(c))
	return rec, c
}

func TestJWTAuthValidToken(t *testing.T) {
	at, err := utils.NewAccessToken(testSecret, 42, "USER", 5)
	require.NoError(t, err)

	rec, c := runProtected(t, "Bearer "+at.Token, JWTAuth(testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(42), c.Get("user_id"))
	assert.Equal(t, "USER", c.Get("role"))
}

func TestJWTAuthMissingHeader(t *testing.T) {
	rec, _ := runProtected(t, "", JWTAuth(testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthWrongSecret(t *testing.T) {
	at, err := utils.NewAccessToken("other-secret", 42, "USER", 5)
	require.NoError(t, err)

	rec, _ := runProtected(t, "Bearer "+at.Token, JWTAuth(testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	admin, err := utils.NewAccessToken(testSecret, 1, "ADMIN", 5)
	require.NoError(t, err)
	user, err := utils.NewAccessToken(testSecret, 2, "USER", 5)
	require.NoError(t, err)

	rec, _ := runProtected(t, "Bearer "+admin.Token, JWTAuth(testSecret), RequireRole("ADMIN"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = runProtected(t, "Bearer "+user.Token, JWTAuth(testSecret), RequireRole("ADMIN"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubjectID(t *testing.T) {
	id, ok := subjectID(float64(7))
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)

	id, ok = subjectID("19")
	assert.True(t, ok)
	assert.Equal(t, uint64(19), id)

	_, ok = subjectID(float64(-1))
	assert.False(t, ok)

	_, ok = subjectID(nil)
	assert.False(t, ok)
}
