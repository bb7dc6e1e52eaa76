// Package davtest provides an in-memory WebDAV collection server for tests.
package davtest

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	CollectionPath = "/dav/collection/"

	methodPropfind = "PROPFIND"
)

type member struct {
	body        []byte
	eTag        string
	contentType string
}

// Server serves a single collection at CollectionPath.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	members   map[string]*member
	version   int
	noCTag    bool
	classes   string
	failures  []failure
	requests  map[string]int
	authority string
}

type failure struct {
	method     string
	status     int
	retryAfter string
}

// NewServer starts a server announcing the given DAV class (e.g. "addressbook").
func NewServer(class string) *Server {
	s := &Server{
		members:  make(map[string]*member),
		classes:  "1, 3, " + class,
		requests: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// CollectionURL is the absolute collection address.
func (s *Server) CollectionURL() string {
	return s.URL + CollectionPath
}

// Put stores a member as if another client created or changed it and returns its ETag.
func (s *Server) Put(fileName, contentType, body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(fileName, contentType, []byte(body))
}

// Remove deletes a member as if another client did.
func (s *Server) Remove(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, fileName)
	s.version++
}

// Body returns the stored content of a member.
func (s *Server) Body(fileName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[fileName]
	if !ok {
		return "", false
	}
	return string(m.body), true
}

// ETag returns the current tag of a member.
func (s *Server) ETag(fileName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[fileName]; ok {
		return m.eTag
	}
	return ""
}

// FileNames lists the members in lexical order.
func (s *Server) FileNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.members))
	for name := range s.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisableCTag makes the server omit getctag.
func (s *Server) DisableCTag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noCTag = true
}

// RequireAuth rejects requests without the given Authorization header value.
func (s *Server) RequireAuth(authorization string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authority = authorization
}

// FailNext answers the next request with method ("" for any) with status.
// retryAfter is sent as Retry-After if not empty.
func (s *Server) FailNext(method string, status int, retryAfter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, status: status, retryAfter: retryAfter})
}

// Requests returns how many requests with method were served.
func (s *Server) Requests(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method]
}

// ListRequests counts PROPFIND requests with Depth: 1.
func (s *Server) ListRequests() int {
	return s.Requests(methodPropfind + " 1")
}

func (s *Server) store(fileName, contentType string, body []byte) string {
	s.version++
	eTag := strconv.Itoa(s.version)
	s.members[fileName] = &member{body: body, eTag: eTag, contentType: contentType}
	return eTag
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[r.Method]++
	if r.Method == methodPropfind {
		s.requests[methodPropfind+" "+r.Header.Get("Depth")]++
	}

	if s.authority != "" && r.Header.Get("Authorization") != s.authority {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	for i, f := range s.failures {
		if f.method == "" || f.method == r.Method {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			if f.retryAfter != "" {
				w.Header().Set("Retry-After", f.retryAfter)
			}
			w.WriteHeader(f.status)
			return
		}
	}

	if !strings.HasPrefix(r.URL.Path, CollectionPath) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fileName, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), CollectionPath))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case r.Method == http.MethodOptions:
		w.Header().Set("DAV", s.classes)
		w.Header().Set("Allow", "OPTIONS, GET, PUT, DELETE, PROPFIND")
		w.WriteHeader(http.StatusOK)
	case r.Method == methodPropfind && fileName == "":
		s.propfind(w, r)
	case r.Method == http.MethodGet:
		s.get(w, fileName)
	case r.Method == http.MethodPut:
		s.put(w, r, fileName)
	case r.Method == http.MethodDelete:
		s.delete(w, r, fileName)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) get(w http.ResponseWriter, fileName string) {
	m, ok := s.members[fileName]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", m.contentType)
	w.Header().Set("ETag", quote(m.eTag))
	w.WriteHeader(http.StatusOK)
	w.Write(m.body)
}

func (s *Server) put(w http.ResponseWriter, r *http.Request, fileName string) {
	m, exists := s.members[fileName]
	if r.Header.Get("If-None-Match") == "*" && exists {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" && (!exists || quote(m.eTag) != ifMatch) {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	eTag := s.store(fileName, r.Header.Get("Content-Type"), body)
	w.Header().Set("ETag", quote(eTag))
	if exists {
		w.WriteHeader(http.StatusNoContent)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request, fileName string) {
	m, exists := s.members[fileName]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" && quote(m.eTag) != ifMatch {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	delete(s.members, fileName)
	s.version++
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) propfind(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<d:multistatus xmlns:d="DAV:" xmlns:cs="http://calendarserver.org/ns/">`)

	b.WriteString(`<d:response><d:href>` + CollectionPath + `</d:href><d:propstat><d:prop>`)
	b.WriteString(`<d:resourcetype><d:collection/></d:resourcetype>`)
	if !s.noCTag {
		fmt.Fprintf(&b, `<cs:getctag>ctag-%d</cs:getctag>`, s.version)
	}
	b.WriteString(`</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`)

	if r.Header.Get("Depth") == "1" {
		names := make([]string, 0, len(s.members))
		for name := range s.members {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			m := s.members[name]
			b.WriteString(`<d:response><d:href>` + path.Join(CollectionPath, url.PathEscape(name)) + `</d:href><d:propstat><d:prop>`)
			b.WriteString(`<d:resourcetype/>`)
			b.WriteString(`<d:getetag>` + xmlEscape(quote(m.eTag)) + `</d:getetag>`)
			if m.contentType != "" {
				b.WriteString(`<d:getcontenttype>` + xmlEscape(m.contentType) + `</d:getcontenttype>`)
			}
			b.WriteString(`</d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`)
		}
	}

	b.WriteString(`</d:multistatus>`)
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	io.WriteString(w, b.String())
}

func quote(eTag string) string {
	return `"` + eTag + `"`
}

func xmlEscape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
