package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/models"
	"github.com/bacembenakkari/TalentCloud/internal/notification"
)

// Inbox is the notification read model served over HTTP.
type Inbox interface {
	List(ctx context.Context, c notification.Caller) ([]models.Notification, error)
	MarkRead(ctx context.Context, id int64, c notification.Caller) (*models.Notification, error)
	UnreadCount(ctx context.Context, c notification.Caller) (int, error)
}

// Handler contains the HTTP handlers for the notification inbox
type Handler struct {
	inbox   Inbox
	log     logrus.FieldLogger
	timeout time.Duration
}

func NewHandler(inbox Inbox, log logrus.FieldLogger) *Handler {
	return &Handler{
		inbox:   inbox,
		log:     log,
		timeout: 10 * time.Second,
	}
}

// Register mounts the inbox routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1/notifications").Subrouter()
	api.HandleFunc("", h.List).Methods(http.MethodGet)
	api.HandleFunc("/unread-count", h.UnreadCount).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}/mark-as-read", h.MarkRead).Methods(http.MethodPut)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type CountResponse struct {
	Count int `json:"count"`
}

func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, err string, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeInboxError maps inbox errors to status codes.
func (h *Handler) writeInboxError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notification.ErrUnauthenticated):
		h.writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "X-User-Id or X-User-Email header is required")
	case errors.Is(err, notification.ErrNotFound):
		h.writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, notification.ErrForbidden):
		h.writeErrorResponse(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		h.log.WithError(err).Error("Inbox request failed")
		h.writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to process request")
	}
}

func caller(r *http.Request) notification.Caller {
	return notification.Caller{
		UserID: r.Header.Get("X-User-Id"),
		Email:  r.Header.Get("X-User-Email"),
	}
}

// List handles GET /api/v1/notifications
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.inbox.List(ctx, caller(r))
	if err != nil {
		h.writeInboxError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, list)
}

// MarkRead handles PUT /api/v1/notifications/{id}/mark-as-read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_id", "Notification id must be a number")
		return
	}

	n, err := h.inbox.MarkRead(ctx, id, caller(r))
	if err != nil {
		h.writeInboxError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, n)
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	count, err := h.inbox.UnreadCount(ctx, caller(r))
	if err != nil {
		h.writeInboxError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, CountResponse{Count: count})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "talentcloud-notifier",
	})
}
