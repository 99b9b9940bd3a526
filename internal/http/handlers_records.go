package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/milestono/api/internal/domain/model"
	"github.com/milestono/api/internal/service"
)

const (
	defaultRecordListLimit = 50
	maxRecordListLimit     = 200
)

// RecordsService is the records API surface of service.RecordService.
type RecordsService interface {
	Create(ctx context.Context, doc map[string]any) (*model.Record, error)
	GetByID(ctx context.Context, id string) (*model.Record, error)
	List(ctx context.Context, q service.RecordListQuery) ([]*model.Record, error)
}

// RecordHandlers provides HTTP handlers for one model's records.
type RecordHandlers struct {
	Svc RecordsService
}

// Create handles HTTP requests to create a new record.
func (h *RecordHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if !DecodeJSON(w, r, &doc) {
		return
	}

	rec, err := h.Svc.Create(r.Context(), doc)
	if err != nil {
		WriteServiceError(w, err, "create_failed")
		return
	}

	WriteJSON(w, http.StatusCreated, rec)
}

// List handles HTTP requests to list records with pagination and an optional JMESPath filter.
func (h *RecordHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := parsePage(q, defaultRecordListLimit, maxRecordListLimit)

	recs, err := h.Svc.List(r.Context(), service.RecordListQuery{
		Limit:  p.Limit,
		Offset: p.Offset,
		Filter: q.Get("filter"),
	})
	if err != nil {
		WriteServiceError(w, err, "list_failed")
		return
	}
	if recs == nil {
		recs = []*model.Record{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"items":  recs,
		"limit":  p.Limit,
		"offset": p.Offset,
	})
}

// GetByID handles HTTP requests to get a record by ID.
func (h *RecordHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("record id is required")})
		return
	}

	rec, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, "get_failed")
		return
	}

	WriteJSON(w, http.StatusOK, rec)
}

// RecordRoutes builds the handler for /api/<group>, guarded by RequireAuth.
func RecordRoutes(group string, svc RecordsService, gate SessionGate) http.Handler {
	h := &RecordHandlers{Svc: svc}
	base := "/api/" + group

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("GET "+base+"/{id}", h.GetByID)

	return RequireAuth(gate)(mux)
}
