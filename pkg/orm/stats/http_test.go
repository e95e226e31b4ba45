package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Recent(context.Context, int) ([]Record, error) {
	return nil, errors.New("redis down")
}

func signedToken(t *testing.T, method jwt.SigningMethod, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler(t *testing.T) {
	c := NewCollector(10)
	ctx := context.Background()
	for _, sql := range []string{"a", "b", "c"} {
		c.Record(ctx, record(sql, time.Millisecond))
	}
	h := NewHandler(c)

	t.Run("healthz", func(t *testing.T) {
		rec := get(t, h, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("records with limit", func(t *testing.T) {
		rec := get(t, h, "/records?limit=2", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var recs []Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
		require.Len(t, recs, 2)
		assert.Equal(t, "c", recs[0].SQL)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := get(t, h, "/records?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("summary", func(t *testing.T) {
		rec := get(t, h, "/summary", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var sum []Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
		assert.Len(t, sum, 3)
	})
}

func TestHandler_ReaderWithoutSummary(t *testing.T) {
	h := NewHandler(failingReader{})

	assert.Equal(t, http.StatusNotFound, get(t, h, "/summary", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/records", "").Code)
}

func TestHandler_JWT(t *testing.T) {
	h := NewHandler(NewCollector(10), WithJWTSecret("s3cret"))

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "malformed header", header: "Token abc", want: http.StatusUnauthorized},
		{name: "wrong secret", token: signedToken(t, jwt.SigningMethodHS256, "other"), want: http.StatusUnauthorized},
		{name: "wrong algorithm", token: signedToken(t, jwt.SigningMethodHS512, "s3cret"), want: http.StatusUnauthorized},
		{name: "valid", token: signedToken(t, jwt.SigningMethodHS256, "s3cret"), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/records", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			} else if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("healthz stays open", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get(t, h, "/healthz", "").Code)
	})
}
