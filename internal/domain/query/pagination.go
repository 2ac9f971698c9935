// Package query holds cross-repository query helpers.
package query

// Pagination carries limit/offset list parameters into repositories.
type Pagination struct {
	Limit  int
	Offset int
	// Order is either "asc" or "desc"; repositories decide the sort column.
	Order string
}

// Normalize clamps pagination values to sane bounds.
func (p *Pagination) Normalize(defaultLimit, maxLimit int) {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "asc" && p.Order != "desc" {
		p.Order = "asc"
	}
}
