package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/assignment"
	"github.com/jmarlowe/leadpipe/internal/auth"
	"github.com/jmarlowe/leadpipe/internal/authz"
	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/importer"
	"github.com/jmarlowe/leadpipe/internal/lifecycle"
	"github.com/jmarlowe/leadpipe/internal/middleware"
	"github.com/jmarlowe/leadpipe/internal/repository"
)

// Handler exposes the import pipeline and lifecycle operations over HTTP.
type Handler struct {
	imports     *importer.Service
	lifecycles  *lifecycle.Service
	assignments *assignment.Service
	segments    repository.SegmentRepository
	audits      repository.AuditRepository
	users       repository.UserRepository
	guard       authz.Guard
	maxFileSize int64
	logger      *logrus.Logger
}

// NewHandler wires the HTTP handler.
func NewHandler(
	imports *importer.Service,
	lifecycles *lifecycle.Service,
	assignments *assignment.Service,
	segments repository.SegmentRepository,
	audits repository.AuditRepository,
	users repository.UserRepository,
	guard authz.Guard,
	maxFileSize int64,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		imports:     imports,
		lifecycles:  lifecycles,
		assignments: assignments,
		segments:    segments,
		audits:      audits,
		users:       users,
		guard:       guard,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Routes builds the API router. Every route below /api requires a resolved
// actor.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Actor(h.users))

	api.HandleFunc("/imports", h.handleSubmitImport).Methods(http.MethodPost)
	api.HandleFunc("/imports", h.handleListImports).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}", h.handleGetImport).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}/errors", h.handleListImportErrors).Methods(http.MethodGet)

	api.HandleFunc("/companies/{id}", h.handleGetCompany).Methods(http.MethodGet)
	api.HandleFunc("/companies/{id}/approve", h.handleApproveCompany).Methods(http.MethodPost)
	api.HandleFunc("/companies/{id}/reject", h.handleRejectCompany).Methods(http.MethodPost)

	api.HandleFunc("/contacts/bulk-approve", h.handleBulkApproveContacts).Methods(http.MethodPost)
	api.HandleFunc("/contacts/{id}", h.handleGetContact).Methods(http.MethodGet)
	api.HandleFunc("/contacts/{id}/approve", h.handleApproveContact).Methods(http.MethodPost)
	api.HandleFunc("/contacts/{id}/assign-sdr", h.handleAssignSDR).Methods(http.MethodPost)
	api.HandleFunc("/contacts/{id}/schedule-meeting", h.handleScheduleMeeting).Methods(http.MethodPost)

	api.HandleFunc("/assignments", h.handleCreateAssignment).Methods(http.MethodPost)
	api.HandleFunc("/assignments", h.handleListAssignments).Methods(http.MethodGet)
	api.HandleFunc("/assignments/{id}", h.handleDeactivateAssignment).Methods(http.MethodDelete)

	api.HandleFunc("/segments", h.handleListSegments).Methods(http.MethodGet)
	api.HandleFunc("/segments", h.handleCreateSegment).Methods(http.MethodPost)
	api.HandleFunc("/segments/{id}/archive", h.handleArchiveSegment).Methods(http.MethodPost)
	api.HandleFunc("/audit/{entityType}/{id}", h.handleListAudit).Methods(http.MethodGet)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSubmitImport(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "actor required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+(1<<20))
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	entityType := domain.EntityType(strings.TrimSpace(r.FormValue("entityType")))
	if entityType == "" {
		http.Error(w, "entityType is required", http.StatusBadRequest)
		return
	}

	var overrides map[string]string
	if raw := strings.TrimSpace(r.FormValue("mappings")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			http.Error(w, fmt.Sprintf("invalid mappings: %v", err), http.StatusBadRequest)
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	batch, err := h.imports.Submit(r.Context(), actor, importer.SubmitRequest{
		EntityType: entityType,
		FileName:   header.Filename,
		Data:       bytes.NewReader(data),
		Overrides:  overrides,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batch)
}

func (h *Handler) handleListImports(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "actor required", http.StatusUnauthorized)
		return
	}
	limit := queryInt(r, "limit", 50)
	batches, err := h.imports.ListBatches(r.Context(), actor, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (h *Handler) handleGetImport(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	batch, err := h.imports.GetBatch(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) handleListImportErrors(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	filter := domain.UploadErrorFilter{
		ColumnName: strings.TrimSpace(r.URL.Query().Get("column")),
		Limit:      queryInt(r, "limit", 0),
		Offset:     queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("row"); raw != "" {
		row, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid row filter", http.StatusBadRequest)
			return
		}
		filter.RowNumber = &row
	}
	uploadErrors, err := h.imports.ListErrors(r.Context(), actor, id, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadErrors)
}

func (h *Handler) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	company, err := h.lifecycles.GetCompany(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *Handler) handleApproveCompany(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	company, err := h.lifecycles.ApproveCompany(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *Handler) handleRejectCompany(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	company, err := h.lifecycles.RejectCompany(r.Context(), actor, id, body.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *Handler) handleGetContact(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	contact, err := h.lifecycles.GetContact(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *Handler) handleApproveContact(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	contact, err := h.lifecycles.ApproveContact(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *Handler) handleBulkApproveContacts(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "actor required", http.StatusUnauthorized)
		return
	}
	var body struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(body.IDs) == 0 {
		http.Error(w, "ids is required", http.StatusBadRequest)
		return
	}
	results, err := h.lifecycles.BulkApproveContacts(r.Context(), actor, body.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleAssignSDR(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var body struct {
		SDRID uuid.UUID `json:"sdrId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	contact, created, err := h.assignments.AssignSDR(r.Context(), actor, id, body.SDRID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contact":    contact,
		"assignment": created,
	})
}

func (h *Handler) handleScheduleMeeting(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	contact, err := h.lifecycles.ScheduleMeeting(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "actor required", http.StatusUnauthorized)
		return
	}
	var body struct {
		EntityType domain.EntityType `json:"entityType"`
		EntityID   uuid.UUID         `json:"entityId"`
		AssigneeID uuid.UUID         `json:"assigneeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	created, err := h.assignments.Assign(r.Context(), actor, body.EntityType, body.EntityID, body.AssigneeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "actor required", http.StatusUnauthorized)
		return
	}
	filter := domain.AssignmentFilter{
		EntityType:     domain.EntityType(r.URL.Query().Get("entityType")),
		IncludeHistory: r.URL.Query().Get("history") == "true",
	}
	if raw := r.URL.Query().Get("entityId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid entityId filter", http.StatusBadRequest)
			return
		}
		filter.EntityID = &id
	}
	if raw := r.URL.Query().Get("assignedTo"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid assignedTo filter", http.StatusBadRequest)
			return
		}
		filter.AssignedTo = &id
	}
	assignments, err := h.assignments.List(r.Context(), actor, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *Handler) handleDeactivateAssignment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.assignments.Unassign(r.Context(), actor, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.segments.ListActive(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

func (h *Handler) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "actor required", http.StatusUnauthorized)
		return
	}
	if err := h.guard.Require(actor, authz.ObjectSegment, authz.ActionManage); err != nil {
		h.writeError(w, err)
		return
	}
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	created, err := h.segments.Create(r.Context(), domain.NewSegment(body.Name, body.Description, actor.ID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleArchiveSegment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.guard.Require(actor, authz.ObjectSegment, authz.ActionManage); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.segments.Archive(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "actor required", http.StatusUnauthorized)
		return
	}
	if err := h.guard.Require(actor, authz.ObjectAudit, authz.ActionRead); err != nil {
		h.writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	entityType := domain.EntityType(vars["entityType"])
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return
	}
	entries, err := h.audits.ListByEntity(r.Context(), entityType, id, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// actorAndID pulls the actor from the context and the {id} path variable.
func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (domain.Actor, uuid.UUID, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "actor required", http.StatusUnauthorized)
		return domain.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return domain.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var te *domain.TransitionError
	if errors.As(err, &te) {
		switch te.Code {
		case domain.TransitionForbidden:
			writeJSON(w, http.StatusForbidden, errorBody(err))
		case domain.TransitionNotFound:
			writeJSON(w, http.StatusNotFound, errorBody(err))
		default:
			writeJSON(w, http.StatusConflict, errorBody(err))
		}
		return
	}
	var be *domain.BatchError
	if errors.As(err, &be) {
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody(err))
		return
	}
	if errors.Is(err, domain.ErrDuplicateKey) {
		writeJSON(w, http.StatusConflict, errorBody(err))
		return
	}
	h.logger.WithError(err).Error("internal error")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
