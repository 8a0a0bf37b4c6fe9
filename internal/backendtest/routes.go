package backendtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/query"
	"github.com/MKhiriev/go-sync-store/internal/utils"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const headerRequestStart = "X-Request-Start"

func (s *Server) routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.withAuth)

	router.Route("/appdata/{collection}", func(r chi.Router) {
		r.Get("/", s.fetch)
		r.Post("/", s.create)
		r.Get("/_deltaset", s.delta)
		r.Get("/_count", s.count)
		r.Put("/{id}", s.update)
		r.Delete("/{id}", s.remove)
	})

	router.Post("/blob/{appKey}", s.createBlob)
	router.Get("/blob/{appKey}/{id}", s.blobMetadata)
	router.Put("/upload/{id}", s.upload)
	router.Get("/download/{id}", s.download)

	return router
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			utils.WriteError(w, http.StatusUnauthorized, "InvalidCredentials", "missing or wrong bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// begin counts the call and reports whether an injected fault answered it.
// It must be called with s.mu held.
func (s *Server) begin(w http.ResponseWriter, op Op) bool {
	s.calls[op]++

	f, ok := s.faults[op]
	if !ok || f.times <= 0 {
		return false
	}
	f.times--
	if f.name == "" {
		http.Error(w, http.StatusText(f.status), f.status)
	} else {
		utils.WriteError(w, f.status, f.name, "injected failure")
	}
	return true
}

func parseQuery(r *http.Request) (models.Query, error) {
	var q models.Query

	filter, err := query.DecodeFilter(r.URL.Query().Get("query"))
	if err != nil {
		return q, err
	}
	q.Filter = filter

	if q.Sort, err = query.DecodeSort(r.URL.Query().Get("sort")); err != nil {
		return q, err
	}
	if q.Skip, err = intParam(r, "skip"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(r, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

// ordered returns the entities of collection in creation order.
func (s *Server) ordered(collection string) []models.Entity {
	recs := make([]*record, 0, len(s.collections[collection]))
	for _, rec := range s.collections[collection] {
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, func(a, b *record) int {
		return int(a.created - b.created)
	})

	out := make([]models.Entity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.entity.Clone())
	}
	return out
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpFetch) {
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "InvalidQuerySyntax", err.Error())
		return
	}

	collection := chi.URLParam(r, "collection")
	matched := query.Apply(s.ordered(collection), q.Unpaged(), time.Time{})
	if s.maxResult > 0 && len(matched) > s.maxResult && (q.Limit == 0 || q.Limit > s.maxResult) {
		utils.WriteError(w, http.StatusBadRequest, "ResultSetSizeExceeded", "too many entities match the query")
		return
	}

	w.Header().Set(headerRequestStart, s.marker())
	_, _ = utils.WriteJSON(w, query.Paginate(matched, q.Skip, q.Limit), http.StatusOK)
}

type deletedID struct {
	ID string `json:"_id"`
}

func (s *Server) delta(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpDelta) {
		return
	}

	collection := chi.URLParam(r, "collection")
	if s.noDelta[collection] {
		utils.WriteError(w, http.StatusForbidden, "MissingConfiguration", "delta set is not enabled for "+collection)
		return
	}

	since, err := parseMarker(r.URL.Query().Get("since"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "ParameterValueOutOfRange", err.Error())
		return
	}
	if since < s.sinceFloor {
		utils.WriteError(w, http.StatusBadRequest, "ParameterValueOutOfRange", "since is too old")
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "InvalidQuerySyntax", err.Error())
		return
	}

	changed := make([]models.Entity, 0)
	for _, e := range query.Apply(s.ordered(collection), models.Query{Filter: q.Filter}, time.Time{}) {
		if s.collections[collection][e.ID].version > since {
			changed = append(changed, e)
		}
	}

	deleted := make([]deletedID, 0)
	for _, ts := range s.tombstones[collection] {
		if ts.version > since {
			deleted = append(deleted, deletedID{ID: ts.id})
		}
	}

	w.Header().Set(headerRequestStart, s.marker())
	_, _ = utils.WriteJSON(w, map[string]any{"changed": changed, "deleted": deleted}, http.StatusOK)
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpCount) {
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "InvalidQuerySyntax", err.Error())
		return
	}

	matched := query.Apply(s.ordered(chi.URLParam(r, "collection")), models.Query{Filter: q.Filter}, time.Time{})
	_, _ = utils.WriteJSON(w, map[string]int{"count": len(matched)}, http.StatusOK)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var e models.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "JSONParseError", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpCreate) {
		return
	}

	if strings.HasPrefix(e.ID, models.TempIDPrefix) {
		utils.WriteError(w, http.StatusBadRequest, "BadRequest", "temporary ids are not accepted")
		return
	}

	_, _ = utils.WriteJSON(w, s.put(chi.URLParam(r, "collection"), e), http.StatusCreated)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var e models.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "JSONParseError", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpUpdate) {
		return
	}

	e.ID = chi.URLParam(r, "id")
	_, _ = utils.WriteJSON(w, s.put(chi.URLParam(r, "collection"), e), http.StatusOK)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpDelete) {
		return
	}

	if !s.delete(chi.URLParam(r, "collection"), chi.URLParam(r, "id")) {
		utils.WriteError(w, http.StatusNotFound, "EntityNotFound", "no entity with this id")
		return
	}
	_, _ = utils.WriteJSON(w, map[string]int{"count": 1}, http.StatusOK)
}
