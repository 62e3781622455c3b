package claimview

import (
	"net/url"
	"strings"
)

const filterPrefix = "filter."

// ParseQuery reads a ViewState from query parameters:
//
//	filter.<column>=text   per-column substring filter (repeatable per column)
//	q=text                 global search
//	sort=<column>          active sort column
//	dir=asc|desc           sort direction, ascending unless "desc"
func ParseQuery(q url.Values) ViewState {
	var v ViewState
	for key, vals := range q {
		if !strings.HasPrefix(key, filterPrefix) || len(vals) == 0 {
			continue
		}
		col := strings.TrimPrefix(key, filterPrefix)
		if col == "" {
			continue
		}
		v = v.WithFilter(col, strings.TrimSpace(vals[len(vals)-1]))
	}
	v.Search = strings.TrimSpace(q.Get("q"))
	if col := strings.TrimSpace(q.Get("sort")); col != "" {
		v.Sort = Sort{Column: col, Dir: Asc}
		if strings.EqualFold(strings.TrimSpace(q.Get("dir")), string(Desc)) {
			v.Sort.Dir = Desc
		}
	}
	return v
}

// Active reports whether the state changes anything about the source rows.
func (v ViewState) Active() bool {
	return len(v.ColumnFilters) > 0 || v.Search != "" || v.Sort.Column != ""
}
