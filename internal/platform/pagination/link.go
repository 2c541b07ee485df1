package pagination

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
)

// BuildLinkHeader returns an RFC 8288 Link value with next and prev relations.
// Empty cursors are omitted; other query parameters such as name carry over.
func BuildLinkHeader(baseURL string, query url.Values, nextCursor, prevCursor string) string {
	var b strings.Builder
	for _, link := range [...]struct{ rel, cursor string }{{"next", nextCursor}, {"prev", prevCursor}} {
		if link.cursor == "" {
			continue
		}
		q := maps.Clone(query)
		if q == nil {
			q = url.Values{}
		}
		q.Set("cursor", link.cursor)
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "<%s?%s>; rel=%q", baseURL, q.Encode(), link.rel)
	}
	return b.String()
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return make(url.Values)
	}
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
