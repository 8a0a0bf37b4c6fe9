// Package backendtest provides an in-memory implementation of the remote
// collection store for tests. It serves the same routes as the real backend,
// keeps deletion tombstones for delta sets and can be told to fail requests
// with the backend's error bodies.
package backendtest

import (
	"fmt"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-store/models"
	"github.com/google/uuid"
)

// Op names a backend operation for call counting and fault injection.
type Op string

const (
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
	OpFetch    Op = "fetch"
	OpDelta    Op = "delta"
	OpCount    Op = "count"
	OpBlob     Op = "blob"
	OpUpload   Op = "upload"
	OpDownload Op = "download"
)

// clockBase anchors the logical server clock.
var clockBase = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type record struct {
	entity  models.Entity
	version int64
	created int64
}

type tombstone struct {
	id      string
	version int64
}

type fault struct {
	status int
	name   string
	times  int
}

type blob struct {
	meta models.FileMetadata
	data []byte
}

// Server is an in-memory backend listening on a local httptest server.
type Server struct {
	URL string

	srv *httptest.Server

	mu          sync.Mutex
	clock       int64
	collections map[string]map[string]*record
	tombstones  map[string][]tombstone
	noDelta     map[string]bool
	sinceFloor  int64
	maxResult   int
	token       string
	faults      map[Op]*fault
	calls       map[Op]int
	blobs       map[string]*blob
	uploadChunk int
}

// New starts a server. Callers must Close it.
func New() *Server {
	s := &Server{
		collections: make(map[string]map[string]*record),
		tombstones:  make(map[string][]tombstone),
		noDelta:     make(map[string]bool),
		faults:      make(map[Op]*fault),
		calls:       make(map[Op]int),
		blobs:       make(map[string]*blob),
	}
	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	return s
}

func (s *Server) Close() {
	s.srv.Close()
}

// RequireToken makes every request without "Bearer token" fail with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// DisableDeltaSet makes delta fetches of collection fail with
// MissingConfiguration.
func (s *Server) DisableDeltaSet(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noDelta[collection] = true
}

// ExpireMarkers makes every since marker issued so far fail with
// ParameterValueOutOfRange.
func (s *Server) ExpireMarkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock++
	s.sinceFloor = s.clock
}

// LimitResultSet makes fetches matching more than n entities, without a
// smaller limit, fail with ResultSetSizeExceeded.
func (s *Server) LimitResultSet(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxResult = n
}

// LimitUploadChunk makes each upload request store at most n bytes before
// the session answers 308.
func (s *Server) LimitUploadChunk(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadChunk = n
}

// Fail makes the next times calls of op answer with status and an error
// body named name. An empty name sends a plain error body.
func (s *Server) Fail(op Op, times, status int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{status: status, name: name, times: times}
}

// Calls returns how many requests of op were served.
func (s *Server) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Put stores e as a server-side write, assigning an id when empty.
func (s *Server) Put(collection string, e models.Entity) models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(collection, e)
}

// Delete removes an entity server-side and records a tombstone.
func (s *Server) Delete(collection, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delete(collection, id)
}

// Entity returns the server copy of an entity.
func (s *Server) Entity(collection, id string) (models.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return models.Entity{}, false
	}
	return rec.entity.Clone(), true
}

// Len returns the number of entities stored in collection.
func (s *Server) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

// Blob returns the stored bytes of a file.
func (s *Server) Blob(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b.data...), true
}

func (s *Server) tick() int64 {
	s.clock++
	return s.clock
}

func (s *Server) put(collection string, e models.Entity) models.Entity {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	version := s.tick()
	now := versionTime(version)

	items := s.collections[collection]
	if items == nil {
		items = make(map[string]*record)
		s.collections[collection] = items
	}

	meta := &models.Metadata{LastModified: &now, CreatedAt: &now}
	if prev, ok := items[e.ID]; ok && prev.entity.Metadata != nil && prev.entity.Metadata.CreatedAt != nil {
		meta.CreatedAt = prev.entity.Metadata.CreatedAt
	}

	created := version
	if prev, ok := items[e.ID]; ok {
		created = prev.created
	}

	stored := e.Clone()
	stored.Metadata = meta
	items[e.ID] = &record{entity: stored, version: version, created: created}
	return stored.Clone()
}

func (s *Server) delete(collection, id string) bool {
	if _, ok := s.collections[collection][id]; !ok {
		return false
	}
	delete(s.collections[collection], id)
	s.tombstones[collection] = append(s.tombstones[collection], tombstone{id: id, version: s.tick()})
	return true
}

func (s *Server) marker() string {
	return versionTime(s.clock).Format(models.TimeLayout)
}

func parseMarker(raw string) (int64, error) {
	t, err := time.Parse(models.TimeLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid since marker %q", raw)
	}
	return t.Sub(clockBase).Milliseconds(), nil
}

func versionTime(version int64) time.Time {
	return clockBase.Add(time.Duration(version) * time.Millisecond)
}
