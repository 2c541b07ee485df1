package pagination

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Params embeds into Huma input structs for cursor pagination.
type Params struct {
	Cursor string `query:"cursor" doc:"Opaque cursor from the previous page's Link header"`
	Limit  int    `query:"limit"  doc:"Maximum profiles per page"                          default:"20" minimum:"1" maximum:"100"`
}

// PageSize returns Limit bounded to [1, 100], or 20 when unset. Huma enforces
// the bounds on requests; callers building Params by hand get the same rule.
func (p Params) PageSize() int {
	switch {
	case p.Limit <= 0:
		return defaultPageSize
	case p.Limit > maxPageSize:
		return maxPageSize
	default:
		return p.Limit
	}
}
