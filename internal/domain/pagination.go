package domain

// PaginationParams holds offset-based pagination parameters for list queries.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Bounds returns the [start, end) slice indices of the current page within total items.
// A non-positive PageSize selects everything. Pages past the end yield an empty range.
func (p PaginationParams) Bounds(total int) (start, end int) {
	if p.PageSize <= 0 {
		return 0, total
	}
	if p.Page > 1 {
		// Checked before multiplying so huge pages cannot overflow.
		if p.Page-1 > total/p.PageSize {
			return total, total
		}
		start = min((p.Page-1)*p.PageSize, total)
	}
	if p.PageSize >= total-start {
		return start, total
	}
	return start, start + p.PageSize
}
