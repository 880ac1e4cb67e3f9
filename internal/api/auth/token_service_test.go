package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123"

func TestIssueAndValidate(t *testing.T) {
	ts := NewTokenService(secret)
	token, err := ts.IssueToken(7, time.Hour)
	require.NoError(t, err)

	claims, err := ts.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.CustomerID)
	assert.Equal(t, "7", claims.Subject)

	_, err = ts.IssueToken(0, time.Hour)
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	ts := NewTokenService(secret)

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewTokenService("another-secret-of-length").IssueToken(7, time.Hour)
		require.NoError(t, err)
		_, err = ts.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewTokenService(secret)
		old.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
		token, err := old.IssueToken(7, time.Hour)
		require.NoError(t, err)
		_, err = ts.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{
			CustomerID: 7,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ts.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("missing customer", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = ts.ValidateToken(signed)
		assert.ErrorContains(t, err, "no customer id")
	})
}

func TestRequireAuth(t *testing.T) {
	ts := NewTokenService(secret)
	token, err := ts.IssueToken(3, time.Hour)
	require.NoError(t, err)

	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		id, ok := CustomerID(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, map[string]int64{"customer": id})
	}, RequireAuth(ts))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"customer":3}`, rec.Body.String())
			}
		})
	}
}
