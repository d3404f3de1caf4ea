package model

// DefaultPageLimit is used when a listing request does not specify a limit
const DefaultPageLimit = 20

// MaxPageLimit caps the page size of listings
const MaxPageLimit = 100

// Pagination selects a window of a listing
type Pagination struct {
	Offset int
	Limit  int
}

// Normalize returns a copy with defaults applied and out-of-range values clamped
func (p Pagination) Normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Page is a window of a listing together with the true total count of the filter
type Page[T any] struct {
	Items  []T
	Total  int
	Offset int
	Limit  int
}
