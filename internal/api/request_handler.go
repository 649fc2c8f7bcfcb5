package api

import (
	"net/http"

	"github.com/skillswap/backend/internal/domain"
	"github.com/skillswap/backend/pkg/response"
	"go.uber.org/zap"
)

// RequestHandler exposes the skill-swap request lifecycle
type RequestHandler struct {
	requestService *domain.RequestService
	logger         *zap.Logger
}

func NewRequestHandler(requestService *domain.RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		logger:         logger,
	}
}

// RespondRequest is the optional body of accept and reject
type RespondRequest struct {
	ResponseMessage string `json:"responseMessage"`
}

// RateRequest is the body of POST /requests/{id}/rate
type RateRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// Create sends a new request
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateRequestInput
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.requestService.CreateRequest(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to create request")
		return
	}

	response.Message(w, http.StatusCreated, "Request sent successfully", view)
}

// List returns the caller's requests: GET /requests?status=&direction=&page=&limit=
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	views, err := h.requestService.ListRequestsForUser(r.Context(), userID, domain.ListRequestsFilter{
		Status:    domain.RequestStatus(q.Get("status")),
		Direction: domain.Direction(q.Get("direction")),
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
	})
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list requests")
		return
	}

	response.OK(w, views)
}

// Pending returns pending requests waiting on the caller's answer
func (h *RequestHandler) Pending(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	views, err := h.requestService.ListPendingForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list pending requests")
		return
	}

	response.OK(w, views)
}

// Get returns one request the caller is a party to
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request")
	if !ok {
		return
	}

	view, err := h.requestService.GetRequest(r.Context(), requestID, userID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get request")
		return
	}

	response.OK(w, view)
}

// Accept handles PUT /requests/{id}/accept
func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, domain.DecisionAccept, "Request accepted")
}

// Reject handles PUT /requests/{id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, domain.DecisionReject, "Request rejected")
}

func (h *RequestHandler) respond(w http.ResponseWriter, r *http.Request, decision domain.Decision, message string) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request")
	if !ok {
		return
	}

	var req RespondRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	view, err := h.requestService.RespondToRequest(r.Context(), requestID, userID, decision, req.ResponseMessage)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to respond to request")
		return
	}

	response.Message(w, http.StatusOK, message, view)
}

// Complete handles PUT /requests/{id}/complete
func (h *RequestHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request")
	if !ok {
		return
	}

	view, err := h.requestService.CompleteRequest(r.Context(), requestID, userID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to complete request")
		return
	}

	response.Message(w, http.StatusOK, "Request marked as completed", view)
}

// Rate handles POST /requests/{id}/rate
func (h *RequestHandler) Rate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request")
	if !ok {
		return
	}

	var req RateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.requestService.RateRequest(r.Context(), requestID, userID, req.Rating, req.Feedback)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to rate request")
		return
	}

	response.Message(w, http.StatusOK, "Rating submitted", view)
}

// Cancel handles DELETE /requests/{id}
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request")
	if !ok {
		return
	}

	if err := h.requestService.CancelRequest(r.Context(), requestID, userID); err != nil {
		writeError(w, r, h.logger, err, "failed to cancel request")
		return
	}

	response.Message(w, http.StatusOK, "Request cancelled successfully", nil)
}
