package testutil

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
)

// FakeGitHub is an in-memory stand-in for the GitHub Contents API of a single
// repository branch.
type FakeGitHub struct {
	Owner  string
	Repo   string
	Token  string
	Branch string

	// RawOnly makes file reads answer with encoding "none", as GitHub does
	// for large files, forcing a raw media type fetch.
	RawOnly bool

	server *httptest.Server

	mu     sync.Mutex
	files  map[string][]byte
	calls  []string
	forced map[string]int
}

// NewFakeGitHub starts a fake server that is closed on test cleanup.
func NewFakeGitHub(t *testing.T) *FakeGitHub {
	t.Helper()
	f := &FakeGitHub{
		Owner:  "acme",
		Repo:   "blog",
		Token:  "test-token",
		Branch: "main",
		files:  make(map[string][]byte),
		forced: make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the API base URL.
func (f *FakeGitHub) URL() string {
	return f.server.URL
}

// Client returns the server's HTTP client.
func (f *FakeGitHub) Client() *http.Client {
	return f.server.Client()
}

// Seed stores content at p without recording a call.
func (f *FakeGitHub) Seed(p string, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = []byte(content)
}

// File returns the stored content at p.
func (f *FakeGitHub) File(p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[p]
	return string(data), ok
}

// ForceStatus makes requests with method on p answer status.
func (f *FakeGitHub) ForceStatus(method, p string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced[method+" "+p] = status
}

// Calls returns the number of requests made with method.
func (f *FakeGitHub) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, method+" ") {
			n++
		}
	}
	return n
}

// SHA returns the blob sha of content.
func SHA(content []byte) string {
	h := sha1.Sum(content)
	return hex.EncodeToString(h[:])
}

func (f *FakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.Token {
		writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	if r.Header.Get("User-Agent") == "" {
		writeFakeJSON(w, http.StatusForbidden, map[string]string{"message": "User-Agent required"})
		return
	}

	prefix := "/repos/" + f.Owner + "/" + f.Repo + "/contents"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	p := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+p)

	if status, ok := f.forced[r.Method+" "+p]; ok {
		writeFakeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}

	switch r.Method {
	case http.MethodGet:
		if ref := r.URL.Query().Get("ref"); ref != "" && ref != f.Branch {
			writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "No commit found for the ref"})
			return
		}
		f.get(w, r, p)
	case http.MethodPut:
		f.put(w, r, p)
	case http.MethodDelete:
		f.delete(w, r, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *FakeGitHub) get(w http.ResponseWriter, r *http.Request, p string) {
	if data, ok := f.files[p]; ok {
		if r.Header.Get("Accept") == "application/vnd.github.raw" {
			_, _ = w.Write(data)
			return
		}
		body := map[string]any{
			"type": "file",
			"name": path.Base(p),
			"path": p,
			"sha":  SHA(data),
			"size": len(data),
		}
		if f.RawOnly {
			body["encoding"] = "none"
			body["content"] = ""
		} else {
			body["encoding"] = "base64"
			body["content"] = wrap(base64.StdEncoding.EncodeToString(data), 60)
		}
		writeFakeJSON(w, http.StatusOK, body)
		return
	}

	entries := []map[string]any{}
	seenDirs := map[string]bool{}
	for fp, data := range f.files {
		if !strings.HasPrefix(fp, p+"/") {
			continue
		}
		rest := strings.TrimPrefix(fp, p+"/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			dir := rest[:i]
			if !seenDirs[dir] {
				seenDirs[dir] = true
				entries = append(entries, map[string]any{"name": dir, "path": p + "/" + dir, "sha": "", "size": 0, "type": "dir"})
			}
			continue
		}
		entries = append(entries, map[string]any{"name": rest, "path": fp, "sha": SHA(data), "size": len(data), "type": "file"})
	}
	if len(entries) == 0 {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i]["name"].(string) < entries[j]["name"].(string) })
	writeFakeJSON(w, http.StatusOK, entries)
}

func (f *FakeGitHub) put(w http.ResponseWriter, r *http.Request, p string) {
	var req struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha"`
		Branch  string `json:"branch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeFakeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request"})
		return
	}
	if req.Branch != f.Branch {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "Branch not found"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeFakeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}

	existing, exists := f.files[p]
	switch {
	case exists && req.SHA == "":
		writeFakeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `Invalid request. "sha" wasn't supplied.`})
		return
	case exists && req.SHA != SHA(existing):
		writeFakeJSON(w, http.StatusConflict, map[string]string{"message": p + " does not match " + req.SHA})
		return
	case !exists && req.SHA != "":
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	f.files[p] = data
	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeFakeJSON(w, status, map[string]any{"content": map[string]any{"path": p, "sha": SHA(data)}})
}

func (f *FakeGitHub) delete(w http.ResponseWriter, r *http.Request, p string) {
	var req struct {
		Message string `json:"message"`
		SHA     string `json:"sha"`
		Branch  string `json:"branch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SHA == "" {
		writeFakeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `Invalid request. "sha" wasn't supplied.`})
		return
	}
	existing, ok := f.files[p]
	if !ok {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if req.SHA != SHA(existing) {
		writeFakeJSON(w, http.StatusConflict, map[string]string{"message": p + " does not match " + req.SHA})
		return
	}
	delete(f.files, p)
	writeFakeJSON(w, http.StatusOK, map[string]any{"content": nil})
}

func wrap(s string, n int) string {
	var b strings.Builder
	for len(s) > n {
		b.WriteString(s[:n])
		b.WriteByte('\n')
		s = s[n:]
	}
	b.WriteString(s)
	b.WriteByte('\n')
	return b.String()
}

func writeFakeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
