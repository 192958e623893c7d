// Package baasmock is an in-memory stand-in for the hosted BaaS REST API,
// used for local development and adapter tests.
package baasmock

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/logging"
	"github.com/Clark-Hu/lopperater/internal/session"
)

const (
	Version     = "mock-1.5"
	timeLayout  = "2006-01-02T15:04:05.000Z07:00"
	maxPageSize = 5000
)

// Options configures a Server.
type Options struct {
	ProjectID  string
	DatabaseID string
	APIKey     string
	JWTSecret  []byte
	// ProcessingDelay is how long the simulated photo function takes. Zero
	// completes processing before the execution request returns.
	ProcessingDelay time.Duration
	Logger          zerolog.Logger
}

// Server holds the mock's documents and files.
type Server struct {
	opts   Options
	router chi.Router

	mu        sync.RWMutex
	documents map[string][]document
	files     map[string]storedFile
	now       func() time.Time
}

type document map[string]any

type storedFile struct {
	id       string
	bucket   string
	name     string
	mimeType string
	content  []byte
	created  time.Time
}

// New builds a mock with empty collections.
func New(opts Options) *Server {
	if opts.DatabaseID == "" {
		opts.DatabaseID = "lopperater"
	}
	if len(opts.JWTSecret) == 0 {
		opts.JWTSecret = []byte("baasmock-dev-secret")
	}
	s := &Server{
		opts:      opts,
		documents: make(map[string][]document),
		files:     make(map[string]storedFile),
		now:       time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(opts.Logger))
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health/version", s.handleVersion)
		r.Group(func(r chi.Router) {
			r.Use(s.requireProject)
			r.Get("/account", s.handleAccount)
			r.Route("/databases/{database}/collections/{collection}/documents", func(r chi.Router) {
				r.Get("/", s.handleListDocuments)
				r.Post("/", s.handleCreateDocument)
				r.Get("/{id}", s.handleGetDocument)
			})
			r.Post("/storage/buckets/{bucket}/files", s.handleUploadFile)
			r.Post("/functions/{function}/executions", s.handleExecution)
		})
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler, rooted so that the client endpoint is
// <base>/v1.
func (s *Server) Handler() http.Handler {
	return s.router
}

// IssueToken signs a session token the mock accepts.
func (s *Server) IssueToken(user domain.User, ttl time.Duration) (string, error) {
	return session.Issue(user, uuid.NewString(), ttl, s.opts.JWTSecret)
}

// Fixture is the JSON layout accepted by LoadFixture: collection name to
// documents carrying "$id" plus their attributes.
type Fixture map[string][]map[string]any

// LoadFixture validates and inserts documents.
func (s *Server) LoadFixture(r io.Reader) (int, error) {
	var fixture Fixture
	if err := json.NewDecoder(r).Decode(&fixture); err != nil {
		return 0, fmt.Errorf("decode fixture: %w", err)
	}
	collections := make([]string, 0, len(fixture))
	for name := range fixture {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, collection := range collections {
		for _, raw := range fixture[collection] {
			id, _ := raw["$id"].(string)
			data := make(map[string]any, len(raw))
			for k, v := range raw {
				if !strings.HasPrefix(k, "$") {
					data[k] = v
				}
			}
			if err := validateDocument(collection, data); err != nil {
				return count, fmt.Errorf("%s/%s: %w", collection, id, err)
			}
			s.insertLocked(collection, id, data)
			count++
		}
	}
	return count, nil
}

// Documents returns a copy of a collection, for assertions in tests.
func (s *Server) Documents(collection string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, len(s.documents[collection]))
	for i, d := range s.documents[collection] {
		out[i] = d.clone()
	}
	return out
}

// UpdateDocument merges attributes into an existing document.
func (s *Server) UpdateDocument(collection, id string, attrs map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.findLocked(collection, id)
	if doc == nil {
		return false
	}
	for k, v := range attrs {
		doc[k] = v
	}
	doc["$updatedAt"] = s.now().UTC().Format(timeLayout)
	return true
}

func (s *Server) insertLocked(collection, id string, data map[string]any) document {
	if id == "" || id == "unique()" {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	}
	now := s.now().UTC().Format(timeLayout)
	doc := document{
		"$id":           id,
		"$collectionId": collection,
		"$databaseId":   s.opts.DatabaseID,
		"$createdAt":    now,
		"$updatedAt":    now,
		"$permissions":  []any{},
	}
	for k, v := range data {
		doc[k] = v
	}
	s.documents[collection] = append(s.documents[collection], doc)
	return doc
}

func (s *Server) findLocked(collection, id string) document {
	for _, d := range s.documents[collection] {
		if d["$id"] == id {
			return d
		}
	}
	return nil
}

func (d document) clone() map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (s *Server) requireProject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.ProjectID != "" && r.Header.Get("X-Appwrite-Project") != s.opts.ProjectID {
			respondError(w, http.StatusUnauthorized, "general_access_forbidden", "project is not accessible")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller identifies the requester: an API key caller or a JWT user.
type caller struct {
	admin bool
	user  *session.Session
}

func (s *Server) authenticate(r *http.Request) (caller, error) {
	if key := r.Header.Get("X-Appwrite-Key"); key != "" {
		if s.opts.APIKey == "" || key != s.opts.APIKey {
			return caller{}, fmt.Errorf("invalid api key")
		}
		return caller{admin: true}, nil
	}
	token := r.Header.Get("X-Appwrite-JWT")
	if token == "" {
		return caller{}, nil
	}
	sess, err := session.Verify(token, s.opts.JWTSecret)
	if err != nil {
		return caller{}, err
	}
	return caller{user: &sess}, nil
}

func (c caller) anonymous() bool { return !c.admin && c.user == nil }

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"version": Version})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	who, err := s.authenticate(r)
	if err != nil || who.user == nil {
		respondError(w, http.StatusUnauthorized, "user_unauthorized", "The current user is not authorized to perform the requested action.")
		return
	}
	labels := make([]string, len(who.user.Roles))
	for i, role := range who.user.Roles {
		labels[i] = string(role)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"$id":    who.user.UserID,
		"name":   who.user.Name,
		"email":  who.user.Email,
		"labels": labels,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, errType, message string) {
	respondJSON(w, status, map[string]any{"message": message, "code": status, "type": errType})
}
