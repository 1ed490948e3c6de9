package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatmate.app/chatmate/internal/core"
	"chatmate.app/chatmate/internal/logger"
	"chatmate.app/chatmate/internal/store"
)

type APIHandler struct {
	documents *core.DocumentService
	chunks    *core.ChunkService
	chat      *core.ChatService
}

func NewAPIHandler(docs *core.DocumentService, chunks *core.ChunkService, chat *core.ChatService) *APIHandler {
	return &APIHandler{documents: docs, chunks: chunks, chat: chat}
}

// writeError maps service errors onto status codes. Unexpected errors are logged
// and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to encode response: %v", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

func (h *APIHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := h.documents.CreateRoom(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *APIHandler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.documents.ListRooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *APIHandler) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.documents.DeleteRoom(r.Context(), chi.URLParam(r, "room")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type DocumentResponse struct {
	Document *store.Document     `json:"document"`
	Refresh  *core.RefreshResult `json:"refresh,omitempty"`
}

func (h *APIHandler) AddDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var req core.NewDocument
	if !decode(w, r, &req) {
		return
	}
	doc, result, err := h.documents.AddDocument(r.Context(), chi.URLParam(r, "room"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, DocumentResponse{Document: doc, Refresh: result})
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.ListDocuments(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *APIHandler) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.GetDocument(r.Context(), chi.URLParam(r, "room"), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *APIHandler) UpdateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var req core.DocumentUpdate
	if !decode(w, r, &req) {
		return
	}
	doc, result, err := h.documents.UpdateDocument(r.Context(), chi.URLParam(r, "room"), chi.URLParam(r, "documentID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Document: doc, Refresh: result})
}

func (h *APIHandler) RemoveDocumentHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.documents.RemoveDocument(r.Context(), chi.URLParam(r, "room"), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type RefreshRequest struct {
	DocumentIDs []string `json:"document_ids"`
	Delete      bool     `json:"delete"`
}

func (h *APIHandler) RefreshChunksHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.chunks.Refresh(r.Context(), chi.URLParam(r, "room"), req.DocumentIDs, req.Delete)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type QueryRequest struct {
	Query string `json:"query"`
}

func (h *APIHandler) AnswerQueryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decode(w, r, &req) {
		return
	}
	answer, err := h.chat.AnswerQuery(r.Context(), chi.URLParam(r, "room"), req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *APIHandler) ListTurnsHandler(w http.ResponseWriter, r *http.Request) {
	turns, err := h.chat.ListTurns(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (h *APIHandler) EditQueryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decode(w, r, &req) {
		return
	}
	edited, err := h.chat.EditQuery(r.Context(), chi.URLParam(r, "room"), chi.URLParam(r, "turnID"), req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edited)
}
