// Package mgmttest provides an in-process fake of a node's HTTP
// management endpoint for tests.
package mgmttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dm/gridmon/internal/model"
)

type cache struct {
	kind    string
	entries int64
	fail    bool
}

// Server answers the subset of management operations the monitor uses.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	username  string
	password  string
	container string
	caches    map[string]*cache
	delay     time.Duration
	down      bool

	requests atomic.Int64
}

// NewServer starts a fake node that accepts admin/jboss and serves the
// "clustered" container. Close it when done.
func NewServer() *Server {
	s := &Server{
		username:  "admin",
		password:  "jboss",
		container: "clustered",
		caches:    make(map[string]*cache),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint returns the cache-protocol endpoint whose management port,
// after subtracting offset, is this server's port.
func (s *Server) Endpoint(offset int) model.NodeEndpoint {
	u, _ := url.Parse(s.URL)
	port, _ := strconv.Atoi(u.Port())
	return model.NodeEndpoint{Host: u.Hostname(), Port: port + offset}
}

// SetCredentials changes the accepted credentials.
func (s *Server) SetCredentials(user, pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username, s.password = user, pass
}

// AddCache defines a cache with the given local entry count.
func (s *Server) AddCache(name, kind string, entries int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches[name] = &cache{kind: kind, entries: entries}
}

// SetEntries updates a cache's entry count.
func (s *Server) SetEntries(name string, entries int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.caches[name]; ok {
		c.entries = entries
	}
}

// FailEntries makes reads of the cache's entry count fail.
func (s *Server) FailEntries(name string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.caches[name]; ok {
		c.fail = fail
	}
}

// SetDelay delays every response by d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetDown makes the server answer 503 with no management payload.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Requests returns the number of requests received.
func (s *Server) Requests() int64 { return s.requests.Load() }

type operation struct {
	Operation      string              `json:"operation"`
	Address        []map[string]string `json:"address"`
	Name           string              `json:"name"`
	ChildType      string              `json:"child-type"`
	IncludeRuntime bool                `json:"include-runtime"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	s.mu.Lock()
	delay, down := s.delay, s.down
	user, pass := s.username, s.password
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if down {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost || r.URL.Path != "/management" {
		http.NotFound(w, r)
		return
	}
	if u, p, ok := r.BasicAuth(); !ok || u != user || p != pass {
		w.Header().Set("WWW-Authenticate", `Basic realm="ManagementRealm"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var op operation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		fail(w, "WFLYCTL0136: malformed request")
		return
	}

	switch {
	case op.Operation == "read-attribute" && len(op.Address) == 0 && op.Name == "server-state":
		succeed(w, "running")
	case op.Operation == "read-children-names" && s.isContainer(op.Address):
		succeed(w, s.namesOfKind(op.ChildType))
	case op.Operation == "read-attribute" && op.Name == "number-of-entries" && len(op.Address) == 3 && s.isContainer(op.Address[:2]):
		s.entries(w, op.Address[2])
	default:
		fail(w, "WFLYCTL0216: Management resource not found")
	}
}

func (s *Server) isContainer(addr []map[string]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(addr) == 2 &&
		addr[0]["subsystem"] == "datagrid-infinispan" &&
		addr[1]["cache-container"] == s.container
}

func (s *Server) namesOfKind(kind string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := []string{}
	for name, c := range s.caches {
		if c.kind == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) entries(w http.ResponseWriter, elem map[string]string) {
	s.mu.Lock()
	var (
		c     *cache
		found bool
	)
	for kind, name := range elem {
		if cc, ok := s.caches[name]; ok && cc.kind == kind {
			c, found = cc, true
		}
	}
	var (
		n      int64
		failed bool
	)
	if found {
		n, failed = c.entries, c.fail
	}
	s.mu.Unlock()

	if !found || failed {
		fail(w, "WFLYCTL0216: Management resource not found")
		return
	}
	succeed(w, n)
}

func succeed(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"outcome": "success", "result": result})
}

func fail(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{"outcome": "failed", "failure-description": desc})
}
