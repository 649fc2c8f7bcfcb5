package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skillswap/backend/pkg/validator"
)

const (
	maxSkillLength     = 100
	minMessageLength   = 10
	maxMessageLength   = 1000
	maxResponseLength  = 500
	maxNotesLength     = 500
	maxSessionFieldLen = 100
	maxFeedbackLength  = 500

	defaultPageSize = 20
	maxPageSize     = 100
)

// UserDirectory is the part of the user store the request lifecycle reads.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*UserSummary, error)
}

// CreateRequestInput is the sender-supplied part of a new request.
type CreateRequestInput struct {
	ToUserID      string      `json:"toUserId"`
	OfferedSkill  string      `json:"offeredSkill"`
	WantedSkill   string      `json:"wantedSkill"`
	Message       string      `json:"message"`
	PreferredTime string      `json:"preferredTime"`
	Duration      string      `json:"duration"`
	SessionType   SessionType `json:"sessionType"`
	Notes         string      `json:"notes"`
}

// ListRequestsFilter narrows a user's request list.
type ListRequestsFilter struct {
	Status    RequestStatus
	Direction Direction
	Page      int
	Limit     int
}

// RequestService owns the skill-swap request lifecycle:
// pending -> accepted|rejected, accepted -> completed, and sender cancellation.
type RequestService struct {
	requests RequestRepository
	users    UserDirectory
	notifier Notifier
	now      func() time.Time
}

// NewRequestService creates a new request service
func NewRequestService(requests RequestRepository, users UserDirectory, notifier Notifier) *RequestService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &RequestService{
		requests: requests,
		users:    users,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *RequestService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateRequest sends a new pending request from fromUserID.
func (s *RequestService) CreateRequest(ctx context.Context, fromUserID uuid.UUID, in CreateRequestInput) (*RequestView, error) {
	params, err := s.validateCreate(fromUserID, in)
	if err != nil {
		return nil, err
	}

	if params.FromUserID == params.ToUserID {
		return nil, ErrSelfRequest
	}

	recipient, err := s.users.GetUserByID(ctx, params.ToUserID)
	if err != nil {
		return nil, err
	}
	if !recipient.IsActive {
		return nil, ErrUserNotFound
	}

	exists, err := s.requests.HasPendingSwap(ctx, params.SwapKey)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicatePending
	}

	// The store's pending-swap constraint still rejects a concurrent duplicate here.
	req, err := s.requests.CreateRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, req.ToUserID, Event{Type: EventRequestCreated, ActorID: fromUserID, Request: req})
	return s.view(ctx, fromUserID, req)
}

func (s *RequestService) validateCreate(fromUserID uuid.UUID, in CreateRequestInput) (CreateRequestParams, error) {
	var errs validator.ValidationErrors

	toUserID, err := uuid.Parse(strings.TrimSpace(in.ToUserID))
	if strings.TrimSpace(in.ToUserID) == "" {
		errs.Add("toUserId", "Recipient user ID is required")
	} else if err != nil {
		errs.Add("toUserId", "Invalid user ID")
	}

	offered := strings.TrimSpace(in.OfferedSkill)
	if errs.Required("offeredSkill", offered, "Offered skill is required") {
		errs.Length("offeredSkill", offered, 1, maxSkillLength, "Offered skill cannot exceed 100 characters")
	}
	wanted := strings.TrimSpace(in.WantedSkill)
	if errs.Required("wantedSkill", wanted, "Wanted skill is required") {
		errs.Length("wantedSkill", wanted, 1, maxSkillLength, "Wanted skill cannot exceed 100 characters")
	}
	message := strings.TrimSpace(in.Message)
	if errs.Required("message", message, "Message is required") {
		errs.Length("message", message, minMessageLength, maxMessageLength, "Message must be between 10 and 1000 characters")
	}

	preferredTime := strings.TrimSpace(in.PreferredTime)
	errs.Length("preferredTime", preferredTime, 0, maxSessionFieldLen, "Preferred time cannot exceed 100 characters")
	duration := strings.TrimSpace(in.Duration)
	errs.Length("duration", duration, 0, maxSessionFieldLen, "Duration cannot exceed 100 characters")
	notes := strings.TrimSpace(in.Notes)
	errs.Length("notes", notes, 0, maxNotesLength, "Notes cannot exceed 500 characters")

	sessionType := in.SessionType
	if sessionType == "" {
		sessionType = SessionTypeFlexible
	}
	errs.OneOf("sessionType", string(sessionType), sessionTypes, "Invalid session type")

	if errs.HasErrors() {
		return CreateRequestParams{}, errs
	}

	return CreateRequestParams{
		FromUserID:    fromUserID,
		ToUserID:      toUserID,
		OfferedSkill:  offered,
		WantedSkill:   wanted,
		Message:       message,
		PreferredTime: preferredTime,
		Duration:      duration,
		SessionType:   sessionType,
		Notes:         notes,
		SwapKey:       SwapKey(fromUserID, toUserID, offered, wanted),
		CreatedAt:     s.now(),
	}, nil
}

// RespondToRequest lets the recipient accept or reject a pending request. It succeeds once per request.
func (s *RequestService) RespondToRequest(ctx context.Context, requestID, actorID uuid.UUID, decision Decision, responseMessage string) (*RequestView, error) {
	var errs validator.ValidationErrors
	errs.OneOf("decision", string(decision), []string{string(DecisionAccept), string(DecisionReject)}, "Decision must be accept or reject")
	responseMessage = strings.TrimSpace(responseMessage)
	errs.Length("responseMessage", responseMessage, 0, maxResponseLength, "Response message cannot exceed 500 characters")
	if errs.HasErrors() {
		return nil, errs
	}

	req, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToUserID != actorID {
		return nil, ErrForbidden
	}
	if req.Status != RequestStatusPending {
		return nil, ErrInvalidState
	}

	to, event := RequestStatusAccepted, EventRequestAccepted
	if decision == DecisionReject {
		to, event = RequestStatusRejected, EventRequestRejected
	}

	now := s.now()
	updated, err := s.requests.TransitionRequest(ctx, TransitionParams{
		RequestID:       requestID,
		From:            RequestStatusPending,
		To:              to,
		ResponseMessage: &responseMessage,
		RespondedAt:     &now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, updated.FromUserID, Event{Type: event, ActorID: actorID, Request: updated})
	return s.view(ctx, actorID, updated)
}

// CompleteRequest marks an accepted request as completed; either party may do it.
func (s *RequestService) CompleteRequest(ctx context.Context, requestID, actorID uuid.UUID) (*RequestView, error) {
	req, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(actorID) {
		return nil, ErrForbidden
	}
	if req.Status != RequestStatusAccepted {
		return nil, ErrInvalidState
	}

	now := s.now()
	updated, err := s.requests.TransitionRequest(ctx, TransitionParams{
		RequestID:   requestID,
		From:        RequestStatusAccepted,
		To:          RequestStatusCompleted,
		CompletedAt: &now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, updated.Counterpart(actorID), Event{Type: EventRequestCompleted, ActorID: actorID, Request: updated})
	return s.view(ctx, actorID, updated)
}

// CancelRequest deletes a request the actor sent, unless it has been completed.
func (s *RequestService) CancelRequest(ctx context.Context, requestID, actorID uuid.UUID) error {
	req, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.FromUserID != actorID {
		return ErrForbidden
	}
	if req.Status == RequestStatusCompleted {
		return ErrInvalidState
	}

	if err := s.requests.DeleteRequest(ctx, requestID, actorID, req.Status); err != nil {
		return err
	}

	req.Status = RequestStatusCancelled
	s.notifier.Notify(ctx, req.ToUserID, Event{Type: EventRequestCancelled, ActorID: actorID, Request: req})
	return nil
}

// RateRequest records the actor's 1..5 rating of the other party on a completed request.
func (s *RequestService) RateRequest(ctx context.Context, requestID, actorID uuid.UUID, score int, feedback string) (*RequestView, error) {
	var errs validator.ValidationErrors
	if score < 1 || score > 5 {
		errs.Add("rating", "Rating must be between 1 and 5")
	}
	feedback = strings.TrimSpace(feedback)
	errs.Length("feedback", feedback, 0, maxFeedbackLength, "Feedback cannot exceed 500 characters")
	if errs.HasErrors() {
		return nil, errs
	}

	req, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(actorID) {
		return nil, ErrForbidden
	}
	if req.Status != RequestStatusCompleted {
		return nil, ErrInvalidState
	}

	byFromUser := req.FromUserID == actorID
	if (byFromUser && req.Rating.FromUserRating != nil) || (!byFromUser && req.Rating.ToUserRating != nil) {
		return nil, ErrAlreadyRated
	}

	updated, err := s.requests.RecordRating(ctx, RecordRatingParams{
		RequestID:   requestID,
		ByFromUser:  byFromUser,
		RatedUserID: req.Counterpart(actorID),
		Score:       score,
		Feedback:    feedback,
		UpdatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, updated.Counterpart(actorID), Event{Type: EventRequestRated, ActorID: actorID, Request: updated})
	return s.view(ctx, actorID, updated)
}

// GetRequest returns one request if userID is a party to it.
func (s *RequestService) GetRequest(ctx context.Context, requestID, userID uuid.UUID) (*RequestView, error) {
	req, err := s.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(userID) {
		// Hide requests between other users entirely.
		return nil, ErrRequestNotFound
	}
	return s.view(ctx, userID, req)
}

// ListRequestsForUser returns every request userID sent or received, newest first.
func (s *RequestService) ListRequestsForUser(ctx context.Context, userID uuid.UUID, filter ListRequestsFilter) ([]*RequestView, error) {
	var errs validator.ValidationErrors
	if filter.Status != "" {
		errs.OneOf("status", string(filter.Status), requestStatuses, "Invalid status")
	}
	if filter.Direction != DirectionAny {
		errs.OneOf("direction", string(filter.Direction), []string{string(DirectionIncoming), string(DirectionOutgoing)}, "Direction must be incoming or outgoing")
	}
	if errs.HasErrors() {
		return nil, errs
	}

	// Without page or limit the whole list is returned.
	var limit, offset int
	if filter.Page > 0 || filter.Limit > 0 {
		limit, offset = paginate(filter.Page, filter.Limit)
	}
	reqs, err := s.requests.ListRequests(ctx, ListRequestsParams{
		UserID:    userID,
		Status:    filter.Status,
		Direction: filter.Direction,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, userID, reqs)
}

// ListPendingForUser returns pending requests waiting on userID's answer.
func (s *RequestService) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*RequestView, error) {
	return s.ListRequestsForUser(ctx, userID, ListRequestsFilter{
		Status:    RequestStatusPending,
		Direction: DirectionIncoming,
	})
}

func (s *RequestService) view(ctx context.Context, viewerID uuid.UUID, req *Request) (*RequestView, error) {
	views, err := s.views(ctx, viewerID, []*Request{req})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *RequestService) views(ctx context.Context, viewerID uuid.UUID, reqs []*Request) ([]*RequestView, error) {
	out := make([]*RequestView, 0, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(reqs)*2)
	for _, r := range reqs {
		ids = append(ids, r.FromUserID, r.ToUserID)
	}
	summaries, err := s.users.GetUserSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, r := range reqs {
		out = append(out, &RequestView{
			Request:    r,
			IsIncoming: IsIncoming(r, viewerID),
			FromUser:   summaries[r.FromUserID],
			ToUser:     summaries[r.ToUserID],
		})
	}
	return out, nil
}

func paginate(page, limit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// IsValidationError reports whether err carries field-level validation failures.
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
