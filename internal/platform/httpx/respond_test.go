package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corezen/corezen/internal/shared"
)

func TestRespondErrorMapsCategories(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.Validation("bad amount"), http.StatusBadRequest},
		{shared.NotFound("contact not found"), http.StatusNotFound},
		{shared.Conflict("insufficient stock"), http.StatusConflict},
		{shared.Forbidden("tenant mismatch"), http.StatusForbidden},
		{shared.Consistency(errors.New("disk full")), http.StatusInternalServerError},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
	}
}

func TestStatusForPrefersNotFound(t *testing.T) {
	require.Equal(t, http.StatusNotFound, StatusFor(shared.NotFound("item not found")))
	require.Equal(t, http.StatusInternalServerError, StatusFor(nil))

	rr := httptest.NewRecorder()
	RespondError(rr, shared.NotFound("item not found"))
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "urn:corezen:problem:not-found", body.Type)
	require.Equal(t, "item not found", body.Detail)
}

func TestRespondErrorDoesNotLeakConsistencyCause(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, shared.Consistency(errors.New("relation stock_items does not exist")))
	require.NotContains(t, rr.Body.String(), "stock_items")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","bogus":true}`))
	var target struct {
		Amount string `json:"amount"`
	}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)
}
