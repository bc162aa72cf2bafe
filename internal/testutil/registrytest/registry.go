package registrytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
)

const manifestMediaType = "application/vnd.docker.distribution.manifest.v2+json"

// RecordedRequest is one request seen by a FakeRegistry.
type RecordedRequest struct {
	Method string
	Path   string
}

// FakeRegistry is an in-memory Docker Registry V2 server for tests.
// Manifests are unique per repository:tag unless aliased, and deleting a
// digest removes every tag pointing to it, as a real registry does.
type FakeRegistry struct {
	server *httptest.Server

	mu           sync.Mutex
	repos        map[string]map[string]digest.Digest // repo -> tag -> digest
	blobs        map[digest.Digest][]byte
	omitDigest   map[string]bool
	rejectDelete map[string]int
	failPath     map[string]int
	requests     []RecordedRequest
}

// NewFakeRegistry starts a fake registry that is closed when the test ends.
func NewFakeRegistry(t testing.TB) *FakeRegistry {
	t.Helper()

	f := &FakeRegistry{
		repos:        make(map[string]map[string]digest.Digest),
		blobs:        make(map[digest.Digest][]byte),
		omitDigest:   make(map[string]bool),
		rejectDelete: make(map[string]int),
		failPath:     make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the base URL of the fake registry.
func (f *FakeRegistry) URL() string {
	return f.server.URL
}

// AddRepository creates an empty repository.
func (f *FakeRegistry) AddRepository(repo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[repo]; !ok {
		f.repos[repo] = make(map[string]digest.Digest)
	}
}

// AddTag pushes a new manifest for repo:tag and returns its digest.
func (f *FakeRegistry) AddTag(repo, tag string) digest.Digest {
	body := fmt.Sprintf(`{"schemaVersion":2,"mediaType":%q,"config":{"mediaType":"application/vnd.docker.container.image.v1+json","size":7023,"digest":%q},"layers":[]}`,
		manifestMediaType, digest.FromString(repo+":"+tag))
	dgst := digest.FromString(body)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[repo]; !ok {
		f.repos[repo] = make(map[string]digest.Digest)
	}
	f.repos[repo][tag] = dgst
	f.blobs[dgst] = []byte(body)
	return dgst
}

// AliasTag points tag at the same manifest as existing.
func (f *FakeRegistry) AliasTag(repo, tag, existing string) digest.Digest {
	f.mu.Lock()
	defer f.mu.Unlock()
	dgst := f.repos[repo][existing]
	f.repos[repo][tag] = dgst
	return dgst
}

// OmitDigest makes manifest responses for repo:tag lack the digest header.
func (f *FakeRegistry) OmitDigest(repo, tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitDigest[repo+":"+tag] = true
}

// RejectDelete makes deletes of the manifest repo:tag resolves to fail with status.
func (f *FakeRegistry) RejectDelete(repo, tag string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectDelete[repo+"@"+f.repos[repo][tag].String()] = status
}

// FailPath makes every request with method on path answer status.
func (f *FakeRegistry) FailPath(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPath[method+" "+path] = status
}

// Tags returns the repository's current tags, sorted.
func (f *FakeRegistry) Tags(repo string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedTags(f.repos[repo])
}

// Requests returns the paths of recorded requests with the given method.
func (f *FakeRegistry) Requests(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var paths []string
	for _, r := range f.requests {
		if r.Method == method {
			paths = append(paths, r.Path)
		}
	}
	return paths
}

func (f *FakeRegistry) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path})

	if status, ok := f.failPath[r.Method+" "+r.URL.Path]; ok {
		writeRegistryError(w, status, "UNAVAILABLE", "injected failure")
		return
	}

	path := r.URL.Path
	switch {
	case path == "/v2/_catalog" && r.Method == http.MethodGet:
		f.serveCatalog(w)
	case strings.HasPrefix(path, "/v2/") && strings.HasSuffix(path, "/tags/list") && r.Method == http.MethodGet:
		f.serveTags(w, strings.TrimSuffix(strings.TrimPrefix(path, "/v2/"), "/tags/list"))
	case strings.HasPrefix(path, "/v2/") && strings.Contains(path, "/manifests/"):
		rest := strings.TrimPrefix(path, "/v2/")
		idx := strings.LastIndex(rest, "/manifests/")
		repo, ref := rest[:idx], rest[idx+len("/manifests/"):]
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			f.serveManifest(w, r.Method, repo, ref)
		case http.MethodDelete:
			f.deleteManifest(w, repo, ref)
		default:
			writeRegistryError(w, http.StatusMethodNotAllowed, "UNSUPPORTED", "method not allowed")
		}
	default:
		writeRegistryError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	}
}

func (f *FakeRegistry) serveCatalog(w http.ResponseWriter) {
	repos := make([]string, 0, len(f.repos))
	for name := range f.repos {
		repos = append(repos, name)
	}
	sort.Strings(repos)
	writeJSON(w, map[string]interface{}{"repositories": repos})
}

func (f *FakeRegistry) serveTags(w http.ResponseWriter, repo string) {
	tags, ok := f.repos[repo]
	if !ok {
		writeRegistryError(w, http.StatusNotFound, "NAME_UNKNOWN", "repository name not known to registry")
		return
	}
	// registry:2 reports an emptied repository with "tags": null
	var list []string
	if len(tags) > 0 {
		list = sortedTags(tags)
	}
	writeJSON(w, map[string]interface{}{"name": repo, "tags": list})
}

func (f *FakeRegistry) serveManifest(w http.ResponseWriter, method, repo, ref string) {
	dgst, ok := f.lookup(repo, ref)
	if !ok {
		writeRegistryError(w, http.StatusNotFound, "MANIFEST_UNKNOWN", "manifest unknown")
		return
	}

	body := f.blobs[dgst]
	w.Header().Set("Content-Type", manifestMediaType)
	if !f.omitDigest[repo+":"+ref] {
		w.Header().Set("Docker-Content-Digest", dgst.String())
	}
	w.WriteHeader(http.StatusOK)
	if method == http.MethodGet {
		_, _ = w.Write(body)
	}
}

func (f *FakeRegistry) deleteManifest(w http.ResponseWriter, repo, ref string) {
	dgst, err := digest.Parse(ref)
	if err != nil {
		writeRegistryError(w, http.StatusBadRequest, "DIGEST_INVALID", "provided digest did not match uploaded content")
		return
	}
	if status, ok := f.rejectDelete[repo+"@"+dgst.String()]; ok {
		writeRegistryError(w, status, "DENIED", "requested access to the resource is denied")
		return
	}

	removed := false
	for tag, d := range f.repos[repo] {
		if d == dgst {
			delete(f.repos[repo], tag)
			removed = true
		}
	}
	if !removed {
		writeRegistryError(w, http.StatusNotFound, "MANIFEST_UNKNOWN", "manifest unknown")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// lookup resolves a tag or digest reference. Must be called with mu held.
func (f *FakeRegistry) lookup(repo, ref string) (digest.Digest, bool) {
	tags, ok := f.repos[repo]
	if !ok {
		return "", false
	}
	if dgst, ok := tags[ref]; ok {
		return dgst, true
	}
	for _, d := range tags {
		if d.String() == ref {
			return d, true
		}
	}
	return "", false
}

func sortedTags(tags map[string]digest.Digest) []string {
	list := make([]string, 0, len(tags))
	for tag := range tags {
		list = append(list, tag)
	}
	sort.Strings(list)
	return list
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeRegistryError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]string{{"code": code, "message": message}},
	})
}
