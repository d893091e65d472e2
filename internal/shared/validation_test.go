package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=5"`
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()
	fields, err := v.Struct(sample{Email: "nope", Name: "toolong"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"email": "must be a valid email",
		"name":  "must be at most 5 characters",
	}, fields)

	fields, err = v.Struct(sample{Email: "a@b.io", Name: "ok"})
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, BearerToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(r))

	r.Header.Set("Authorization", "bearer  xyz ")
	assert.Equal(t, "xyz", BearerToken(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, BearerToken(r))

	r = httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "cookie-token"})
	assert.Equal(t, "cookie-token", BearerToken(r))
}
