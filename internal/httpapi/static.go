package httpapi

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const landingPage = "login.html"

// static serves the browser bundle. Unknown non-API paths fall back to the
// login page; /api paths never do.
func (a *API) static(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
		notFound(w, r)
		return
	}
	if a.staticDir == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		notFound(w, r)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	if clean == "/" {
		clean = "/" + landingPage
	}
	full := filepath.Join(a.staticDir, filepath.FromSlash(clean))
	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		http.ServeFile(w, withPath(r, clean), full)
		return
	}

	landing := filepath.Join(a.staticDir, landingPage)
	if info, err := os.Stat(landing); err == nil && !info.IsDir() {
		http.ServeFile(w, withPath(r, "/"+landingPage), landing)
		return
	}
	notFound(w, r)
}

// withPath hands ServeFile a cleaned URL; it rejects paths containing "..".
func withPath(r *http.Request, p string) *http.Request {
	r2 := r.Clone(r.Context())
	r2.URL.Path = p
	r2.URL.RawPath = ""
	return r2
}
