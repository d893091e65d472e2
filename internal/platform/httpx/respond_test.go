package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("user 7: %w", shared.ErrNotFound):        http.StatusNotFound,
		authz.ErrRecordNotFound:                             http.StatusNotFound,
		fmt.Errorf("name: %w", ErrValidation):               http.StatusBadRequest,
		shared.ErrEmailTaken:                                http.StatusConflict,
		shared.ErrInvalidCredentials:                        http.StatusUnauthorized,
		fmt.Errorf("resolve: %w", authz.ErrUnauthenticated): http.StatusUnauthorized,
		context.DeadlineExceeded:                            http.StatusGatewayTimeout,
		fmt.Errorf("boom"):                                  http.StatusInternalServerError,
	}
	for err, status := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		assert.Equal(t, status, rec.Code, err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, status, body.Status)
	}
}

func TestListEnvelopeCountsEmptySlice(t *testing.T) {
	rec := httptest.NewRecorder()
	List[string](rec, nil)
	assert.JSONEq(t, `{"success":true,"count":0,"data":[]}`, rec.Body.String())
}

func TestOKEnvelopeOmitsCount(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, http.StatusCreated, map[string]string{"id": "r1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":"r1"}}`, rec.Body.String())
}

func TestValidationProblemListsFields(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationProblem(rec, map[string]string{"name": "required"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Detail)
	assert.Equal(t, "required", body.Fields["name"])
}
