package baasmock

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type listQuery struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute"`
	Values    []any  `json:"values"`
}

func (s *Server) collectionFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if chi.URLParam(r, "database") != s.opts.DatabaseID {
		respondError(w, http.StatusNotFound, "database_not_found", "Database with the requested ID could not be found.")
		return "", false
	}
	collection := chi.URLParam(r, "collection")
	if _, ok := schemas[collection]; !ok {
		respondError(w, http.StatusNotFound, "collection_not_found", "Collection with the requested ID could not be found.")
		return "", false
	}
	return collection, true
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.collectionFromRequest(w, r)
	if !ok {
		return
	}

	var filters []listQuery
	limit := 25
	cursor := ""
	for _, raw := range r.URL.Query()["queries[]"] {
		var q listQuery
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			respondError(w, http.StatusBadRequest, "general_query_invalid", "Invalid query: "+err.Error())
			return
		}
		switch q.Method {
		case "equal":
			filters = append(filters, q)
		case "limit":
			if len(q.Values) == 1 {
				if n, ok := q.Values[0].(float64); ok && n > 0 && n <= maxPageSize {
					limit = int(n)
					continue
				}
			}
			respondError(w, http.StatusBadRequest, "general_query_invalid", "Invalid limit query")
			return
		case "cursorAfter":
			if len(q.Values) == 1 {
				if id, ok := q.Values[0].(string); ok {
					cursor = id
					continue
				}
			}
			respondError(w, http.StatusBadRequest, "general_query_invalid", "Invalid cursor query")
			return
		default:
			respondError(w, http.StatusBadRequest, "general_query_invalid", "Unsupported query method "+strconv.Quote(q.Method))
			return
		}
	}

	s.mu.RLock()
	var matched []map[string]any
	for _, d := range s.documents[collection] {
		if matches(d, filters) {
			matched = append(matched, d.clone())
		}
	}
	s.mu.RUnlock()

	total := len(matched)
	if cursor != "" {
		idx := -1
		for i, d := range matched {
			if d["$id"] == cursor {
				idx = i
				break
			}
		}
		if idx < 0 {
			respondError(w, http.StatusBadRequest, "document_not_found", "Cursor document not found")
			return
		}
		matched = matched[idx+1:]
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	if matched == nil {
		matched = []map[string]any{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"total": total, "documents": matched})
}

func matches(d document, filters []listQuery) bool {
	for _, f := range filters {
		v, ok := d[f.Attribute]
		if !ok {
			return false
		}
		hit := false
		for _, want := range f.Values {
			if v == want {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.collectionFromRequest(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	doc := s.findLocked(collection, chi.URLParam(r, "id"))
	var out map[string]any
	if doc != nil {
		out = doc.clone()
	}
	s.mu.RUnlock()
	if out == nil {
		respondError(w, http.StatusNotFound, "document_not_found", "Document with the requested ID could not be found.")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

type createDocumentRequest struct {
	DocumentID string         `json:"documentId"`
	Data       map[string]any `json:"data"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.collectionFromRequest(w, r)
	if !ok {
		return
	}
	who, err := s.authenticate(r)
	if err != nil || who.anonymous() {
		respondError(w, http.StatusUnauthorized, "user_unauthorized", "The current user is not authorized to perform the requested action.")
		return
	}

	var req createDocumentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "general_argument_invalid", "Invalid request body: "+err.Error())
		return
	}
	if req.Data == nil {
		respondError(w, http.StatusBadRequest, "document_missing_data", "The document data is missing.")
		return
	}
	if err := validateDocument(collection, req.Data); err != nil {
		respondError(w, http.StatusBadRequest, "document_invalid_structure", "Invalid document structure: "+err.Error())
		return
	}
	if who.user != nil {
		if owner, ok := req.Data["userId"].(string); ok && owner != who.user.UserID {
			respondError(w, http.StatusUnauthorized, "user_unauthorized", "Documents can only be created for the current user.")
			return
		}
	}

	s.mu.Lock()
	if collection == "stalls" && s.findLocked("markets", req.Data["marketId"].(string)) == nil {
		s.mu.Unlock()
		respondError(w, http.StatusBadRequest, "document_invalid_structure", "Invalid document structure: unknown market")
		return
	}
	if req.DocumentID != "" && req.DocumentID != "unique()" && s.findLocked(collection, req.DocumentID) != nil {
		s.mu.Unlock()
		respondError(w, http.StatusConflict, "document_already_exists", "Document with the requested ID already exists.")
		return
	}
	doc := s.insertLocked(collection, req.DocumentID, req.Data).clone()
	s.mu.Unlock()

	respondJSON(w, http.StatusCreated, doc)
}
