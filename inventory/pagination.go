package inventory

// Page is one page of results with the effective paging echoed back.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}

const (
	DefaultTransactionLimit = 20
	MaxTransactionLimit     = 100
	DefaultCardLimit        = 10
	MaxCardLimit            = 200
)

// clampPaging normalizes page/limit. A non-positive limit means "not
// given" and falls back to def; pages below 1 become 1.
func clampPaging(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return page, limit
}

func offsetOf(page, limit int) int {
	return (page - 1) * limit
}
