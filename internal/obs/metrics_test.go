package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/healthz/":                      "/healthz",
		"/api/admin/users/12":            "/api/admin/users/:id",
		"/api/admin2/claims/7/approve":   "/api/admin2/claims/:id/approve",
		"/api/admin2/claims?sort=amount": "/api/admin2/claims",
		"/api/client/my-claims":          "/api/client/my-claims",
		"/login.html":                    "/*",
		"/assets/app.js":                 "/*",
		"/apiary":                        "/*",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsCanonicalPath(t *testing.T) {
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	for _, id := range []string{"1", "2"} {
		req := httptest.NewRequest(http.MethodPut, "/api/admin2/claims/"+id+"/deny", nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	body := scrape(t)
	if !strings.Contains(body, `http_requests_total{method="PUT",path="/api/admin2/claims/:id/deny",status="418"} 2`) {
		t.Fatalf("canonical series missing:\n%s", body)
	}
	if strings.Contains(body, `path="/api/admin2/claims/1/deny"`) {
		t.Fatalf("raw id leaked into labels")
	}
}

func TestSetReady(t *testing.T) {
	Init()
	SetReady(true)
	if !strings.Contains(scrape(t), "\nready 1\n") {
		t.Fatalf("ready gauge not 1")
	}
	SetReady(false)
	if !strings.Contains(scrape(t), "\nready 0\n") {
		t.Fatalf("ready gauge not 0")
	}
}

func TestDomainCounters(t *testing.T) {
	Init()
	RecordLogin("wrong_secret")
	RecordClaimTransition("approve", "ok")
	body := scrape(t)
	for _, want := range []string{
		`login_attempts_total{result="wrong_secret"}`,
		`claim_transitions_total{action="approve",result="ok"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s", want)
		}
	}
}

func TestLogWritesJSONLine(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	Info("claim_transition", map[string]any{"claim_id": 4, "msg": "overridden"})

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("not json: %q", line)
	}
	if entry["level"] != "info" || entry["msg"] != "claim_transition" || entry["claim_id"] != float64(4) {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts")
	}
}

func TestInitBuildInfo(t *testing.T) {
	InitBuildInfo("1.4.0", "abc123")
	InitBuildInfo("1.4.0", "abc123")

	body := scrape(t)
	if !strings.Contains(body, `claimdesk_build_info{commit="abc123",go_version="`) {
		t.Fatalf("build info not exported:\n%s", body)
	}
}
