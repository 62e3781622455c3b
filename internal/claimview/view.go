// Package claimview projects a working set of claim rows through column
// filters, a global search and a single-column sort.
package claimview

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is one record of the working set keyed by column name.
type Row map[string]any

// Direction of the active sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is the single active (column, direction) pair. An empty Column means
// source order.
type Sort struct {
	Column string    `json:"column,omitempty"`
	Dir    Direction `json:"dir,omitempty"`
}

// ViewState is everything the projection depends on besides the rows.
type ViewState struct {
	ColumnFilters map[string]string `json:"filters,omitempty"`
	Search        string            `json:"q,omitempty"`
	Sort          Sort              `json:"sort"`
}

// ClickSort returns the state after a header click on column: the same
// column flips direction, a new column starts ascending.
func (v ViewState) ClickSort(column string) ViewState {
	if v.Sort.Column == column {
		if v.Sort.Dir == Desc {
			v.Sort.Dir = Asc
		} else {
			v.Sort.Dir = Desc
		}
		return v
	}
	v.Sort = Sort{Column: column, Dir: Asc}
	return v
}

// WithFilter returns a copy of v with the column filter set; an empty value
// clears it.
func (v ViewState) WithFilter(column, value string) ViewState {
	filters := make(map[string]string, len(v.ColumnFilters)+1)
	for k, f := range v.ColumnFilters {
		filters[k] = f
	}
	if value == "" {
		delete(filters, column)
	} else {
		filters[column] = value
	}
	v.ColumnFilters = filters
	return v
}

// Project applies column filters, then the global search, then a stable sort.
// rows is not modified.
func Project(rows []Row, state ViewState) []Row {
	order := project(len(rows), func(i int) Row { return rows[i] }, state)
	out := make([]Row, len(order))
	for i, idx := range order {
		out[i] = rows[idx]
	}
	return out
}

func project(n int, row func(int) Row, state ViewState) []int {
	filters := make(map[string]string, len(state.ColumnFilters))
	for col, f := range state.ColumnFilters {
		if f = strings.TrimSpace(f); f != "" {
			filters[col] = strings.ToLower(f)
		}
	}
	search := strings.ToLower(strings.TrimSpace(state.Search))

	keep := make([]int, 0, n)
	cached := make(map[int]Row, n)
	for i := 0; i < n; i++ {
		r := row(i)
		if !matchFilters(r, filters) || !matchSearch(r, search) {
			continue
		}
		keep = append(keep, i)
		cached[i] = r
	}

	col := state.Sort.Column
	if col == "" {
		return keep
	}
	desc := state.Sort.Dir == Desc
	sort.SliceStable(keep, func(i, j int) bool {
		c := Compare(cached[keep[i]][col], cached[keep[j]][col])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return keep
}

func matchFilters(r Row, filters map[string]string) bool {
	for col, want := range filters {
		if !strings.Contains(strings.ToLower(Stringify(r[col])), want) {
			return false
		}
	}
	return true
}

func matchSearch(r Row, search string) bool {
	if search == "" {
		return true
	}
	for _, v := range r {
		if strings.Contains(strings.ToLower(Stringify(v)), search) {
			return true
		}
	}
	return false
}

// Compare orders two cell values. When either text contains "T" and both
// parse as timestamps they compare as instants; otherwise two finite numeric
// strings compare numerically and anything else lexicographically.
func Compare(a, b any) int {
	as, bs := Stringify(a), Stringify(b)
	if strings.Contains(as, "T") || strings.Contains(bs, "T") {
		if at, ok := parseInstant(as); ok {
			if bt, ok := parseInstant(bs); ok {
				return at.Compare(bt)
			}
		}
	}
	if af, ok := parseFinite(as); ok {
		if bf, ok := parseFinite(bs); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(as, bs)
}

// parseFinite rejects NaN and the infinities so they sort as text.
func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Stringify renders a cell the way filters and search see it.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.UTC().Format(time.RFC3339Nano)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
