package claimview

import (
	"net/url"
	"reflect"
	"testing"
	"time"

	"claimdesk.org/internal/claims"
)

func sampleRows() []Row {
	return []Row{
		{"status": "Pending", "claim_amount": "100"},
		{"status": "Approved", "claim_amount": "20"},
	}
}

func amounts(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = Stringify(r["claim_amount"])
	}
	return out
}

func TestProjectSortNumericAscending(t *testing.T) {
	got := Project(sampleRows(), ViewState{Sort: Sort{Column: "claim_amount", Dir: Asc}})
	if want := []string{"20", "100"}; !reflect.DeepEqual(amounts(got), want) {
		t.Fatalf("sorted amounts %v, want %v", amounts(got), want)
	}
	got = Project(sampleRows(), ViewState{Sort: Sort{Column: "claim_amount", Dir: Desc}})
	if want := []string{"100", "20"}; !reflect.DeepEqual(amounts(got), want) {
		t.Fatalf("desc amounts %v, want %v", amounts(got), want)
	}
}

func TestProjectColumnFilterIsCaseInsensitive(t *testing.T) {
	got := Project(sampleRows(), ViewState{ColumnFilters: map[string]string{"status": "appr"}})
	if len(got) != 1 || got[0]["status"] != "Approved" {
		t.Fatalf("filter status=appr gave %v", got)
	}
}

func TestProjectGlobalSearchMatchesAnyField(t *testing.T) {
	got := Project(sampleRows(), ViewState{Search: "20"})
	if len(got) != 1 || got[0]["status"] != "Approved" {
		t.Fatalf("search 20 gave %v", got)
	}
	if got := Project(sampleRows(), ViewState{Search: "PEND"}); len(got) != 1 || got[0]["status"] != "Pending" {
		t.Fatalf("search PEND gave %v", got)
	}
	if got := Project(sampleRows(), ViewState{Search: "nothing"}); len(got) != 0 {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestProjectAppliesLayersInOrder(t *testing.T) {
	rows := []Row{
		{"claim_code": "A-1", "hospital_name": "North", "claim_amount": "300"},
		{"claim_code": "A-2", "hospital_name": "South", "claim_amount": "50"},
		{"claim_code": "B-1", "hospital_name": "North", "claim_amount": "75"},
		{"claim_code": "B-2", "hospital_name": "North", "claim_amount": "5"},
	}
	state := ViewState{
		ColumnFilters: map[string]string{"hospital_name": "north"},
		Search:        "b-",
		Sort:          Sort{Column: "claim_amount", Dir: Asc},
	}
	got := Project(rows, state)
	var codes []string
	for _, r := range got {
		codes = append(codes, r["claim_code"].(string))
	}
	if want := []string{"B-2", "B-1"}; !reflect.DeepEqual(codes, want) {
		t.Fatalf("codes %v, want %v", codes, want)
	}
}

func TestProjectDoesNotMutateAndIsIdempotent(t *testing.T) {
	rows := []Row{
		{"claim_amount": "3"},
		{"claim_amount": "1"},
		{"claim_amount": "2"},
	}
	before := amounts(rows)
	state := ViewState{Sort: Sort{Column: "claim_amount", Dir: Asc}}

	first := Project(rows, state)
	second := Project(rows, state)
	if !reflect.DeepEqual(amounts(rows), before) {
		t.Fatalf("source reordered: %v", amounts(rows))
	}
	if !reflect.DeepEqual(amounts(first), amounts(second)) {
		t.Fatalf("projection not idempotent: %v vs %v", amounts(first), amounts(second))
	}
}

func TestProjectSortIsStable(t *testing.T) {
	rows := []Row{
		{"id": "1", "claim_status": "Pending"},
		{"id": "2", "claim_status": "Approved"},
		{"id": "3", "claim_status": "Pending"},
		{"id": "4", "claim_status": "Approved"},
	}
	got := Project(rows, ViewState{Sort: Sort{Column: "claim_status", Dir: Asc}})
	var ids []string
	for _, r := range got {
		ids = append(ids, r["id"].(string))
	}
	if want := []string{"2", "4", "1", "3"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids %v, want %v", ids, want)
	}
}

func TestCompare(t *testing.T) {
	early := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	late := early.Add(36 * time.Hour)
	cases := []struct {
		name string
		a, b any
		want int
	}{
		{"numeric", "9", "10", -1},
		{"numeric equal", "10", "10.0", 0},
		{"lexicographic", "beta", "alpha", 1},
		{"mixed falls back to text", "10", "abc", -1},
		{"timestamps", late.Format(time.RFC3339), early.Format(time.RFC3339), 1},
		{"time values", early, late, -1},
		{"unparseable T text", "Tango", "Alpha", 1},
		{"nil sorts first", nil, "a", -1},
		{"date against instant", "2024-01-01", "2024-01-01T00:00:00Z", 0},
		{"instant against date", "2024-01-01T00:00:00Z", "2024-01-01", 0},
		{"date before later instant", "2024-01-01", "2024-01-01T12:00:00Z", -1},
		{"NaN is text", "NaN", "5", 1},
		{"Inf is text", "5", "Inf", -1},
	}
	for _, tc := range cases {
		if got := Compare(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: Compare(%v, %v)=%d want %d", tc.name, tc.a, tc.b, got, tc.want)
		}
		if got := Compare(tc.b, tc.a); got != -tc.want {
			t.Errorf("%s: Compare(%v, %v)=%d want %d", tc.name, tc.b, tc.a, got, -tc.want)
		}
	}
}

func TestClickSort(t *testing.T) {
	var v ViewState
	v = v.ClickSort("claim_amount")
	if v.Sort != (Sort{Column: "claim_amount", Dir: Asc}) {
		t.Fatalf("first click: %+v", v.Sort)
	}
	v = v.ClickSort("claim_amount")
	if v.Sort.Dir != Desc {
		t.Fatalf("second click should flip to desc: %+v", v.Sort)
	}
	v = v.ClickSort("claim_amount")
	if v.Sort.Dir != Asc {
		t.Fatalf("third click should flip back: %+v", v.Sort)
	}
	v = v.ClickSort("claim_amount").ClickSort("patient_name")
	if v.Sort != (Sort{Column: "patient_name", Dir: Asc}) {
		t.Fatalf("new column must reset to asc: %+v", v.Sort)
	}
}

func TestParseQuery(t *testing.T) {
	q := url.Values{
		"filter.claim_status": {"appr"},
		"filter.":             {"ignored"},
		"q":                   {" st. mary "},
		"sort":                {"claim_amount"},
		"dir":                 {"DESC"},
	}
	v := ParseQuery(q)
	if v.ColumnFilters["claim_status"] != "appr" || len(v.ColumnFilters) != 1 {
		t.Fatalf("filters: %+v", v.ColumnFilters)
	}
	if v.Search != "st. mary" {
		t.Fatalf("search: %q", v.Search)
	}
	if v.Sort != (Sort{Column: "claim_amount", Dir: Desc}) {
		t.Fatalf("sort: %+v", v.Sort)
	}
	if ParseQuery(url.Values{}).Active() {
		t.Fatalf("empty query must be inactive")
	}
	if got := ParseQuery(url.Values{"sort": {"x"}, "dir": {"sideways"}}); got.Sort.Dir != Asc {
		t.Fatalf("unknown dir should default to asc: %+v", got.Sort)
	}
}

func TestProjectClaims(t *testing.T) {
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	list := []claims.Claim{
		{ID: 3, Code: "C-3", Amount: "100", Status: claims.StatusPending, CreatedAt: now},
		{ID: 2, Code: "C-2", Amount: "20", Status: claims.StatusApproved, CreatedAt: now.Add(-time.Hour)},
		{ID: 1, Code: "C-1", Amount: "5", Status: claims.StatusDenied, CreatedAt: now.Add(-2 * time.Hour), SubmitterName: "alice"},
	}

	got := ProjectClaims(list, ViewState{Sort: Sort{Column: "claim_date_created", Dir: Asc}})
	if got[0].ID != 1 || got[2].ID != 3 {
		t.Fatalf("date sort order: %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
	got = ProjectClaims(list, ViewState{ColumnFilters: map[string]string{"claim_status": "appr"}})
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("status filter: %+v", got)
	}
	got = ProjectClaims(list, ViewState{Search: "ALICE"})
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("search by submitter name: %+v", got)
	}
	if got := ProjectClaims(list, ViewState{}); len(got) != len(list) || got[0].ID != 3 {
		t.Fatalf("inactive state must keep source order")
	}
	if list[0].ID != 3 {
		t.Fatalf("source mutated")
	}
}
