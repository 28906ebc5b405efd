package shared

import "strconv"

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit and offset into sane bounds.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// PageFromQuery reads "limit" and "offset" query values, ignoring malformed ones.
func PageFromQuery(get func(string) string) Page {
	limit, _ := strconv.Atoi(get("limit"))
	offset, _ := strconv.Atoi(get("offset"))
	return NewPage(limit, offset)
}
