package pagination

import (
	"net/url"
	"strconv"
)

// Result is one page of a listing.
type Result[T any] struct {
	Items      []T
	Total      int
	LinkHeader string
	NextCursor string
	PrevCursor string
}

// Paginate slices an ordered listing after the cursor position. An unknown
// cursor value restarts at the first page. Links are built against baseURL
// and carry query with cursor and limit set.
func Paginate[T any](
	items []T,
	cursor Cursor,
	limit int,
	getID func(T) string,
	baseURL string,
	query url.Values,
) Result[T] {
	total := len(items)

	start := 0
	if cursor.Value != "" {
		for i, item := range items {
			if getID(item) == cursor.Value {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, total)
	page := items[start:end]

	var next, prev string
	if end < total && len(page) > 0 {
		next = Cursor{Type: cursor.Type, Value: getID(page[len(page)-1])}.Encode()
	}
	if start > 0 {
		if start <= limit {
			prev = Cursor{Type: cursor.Type}.Encode()
		} else {
			prev = Cursor{Type: cursor.Type, Value: getID(items[start-limit-1])}.Encode()
		}
	}

	q := cloneValues(query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	return Result[T]{
		Items:      page,
		Total:      total,
		LinkHeader: BuildLinkHeader(baseURL, q, next, prev),
		NextCursor: next,
		PrevCursor: prev,
	}
}
