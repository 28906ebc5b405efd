package httpx

import (
	"errors"
	"net/http"

	"github.com/corezen/corezen/internal/shared"
)

type problemKind struct {
	target error
	status int
	title  string
	slug   string
}

// Ordered: not-found errors also carry ErrValidation.
var problemKinds = []problemKind{
	{shared.ErrNotFound, http.StatusNotFound, "Not Found", "not-found"},
	{shared.ErrValidation, http.StatusBadRequest, "Validation Failed", "validation"},
	{shared.ErrConflict, http.StatusConflict, "Conflict", "conflict"},
	{shared.ErrAuthorization, http.StatusForbidden, "Forbidden", "forbidden"},
	{shared.ErrConsistency, http.StatusInternalServerError, "Rolled Back", "rolled-back"},
}

// StatusFor returns the HTTP status an error category maps to.
func StatusFor(err error) int {
	if k, ok := kindOf(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// RespondError writes err as an RFC7807 problem. Uncategorised errors become
// an opaque 500 and consistency errors never expose their cause.
func RespondError(w http.ResponseWriter, err error) {
	k, ok := kindOf(err)
	if !ok {
		writeProblem(w, ProblemDetail{Type: problemType("internal"), Title: "Internal Error", Status: http.StatusInternalServerError})
		return
	}
	detail := err.Error()
	if k.target == shared.ErrConsistency {
		detail = shared.UserSafeMessage(err)
	}
	writeProblem(w, ProblemDetail{Type: problemType(k.slug), Title: k.title, Status: k.status, Detail: detail})
}

func kindOf(err error) (problemKind, bool) {
	if err == nil {
		return problemKind{}, false
	}
	for _, k := range problemKinds {
		if errors.Is(err, k.target) {
			return k, true
		}
	}
	return problemKind{}, false
}

func problemType(slug string) string { return "urn:corezen:problem:" + slug }
