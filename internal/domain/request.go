package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

var requestStatuses = []string{
	string(RequestStatusPending),
	string(RequestStatusAccepted),
	string(RequestStatusRejected),
	string(RequestStatusCompleted),
	string(RequestStatusCancelled),
}

type SessionType string

const (
	SessionTypeVideoCall SessionType = "video_call"
	SessionTypeInPerson  SessionType = "in_person"
	SessionTypeChat      SessionType = "chat"
	SessionTypeFlexible  SessionType = "flexible"
)

var sessionTypes = []string{
	string(SessionTypeVideoCall),
	string(SessionTypeInPerson),
	string(SessionTypeChat),
	string(SessionTypeFlexible),
}

// Direction of a request relative to a viewer.
type Direction string

const (
	DirectionAny      Direction = ""
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Decision is the recipient's answer to a pending request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Rating holds the score each party gave the other after completion.
// FromUserRating is given by the sender, ToUserRating by the recipient.
type Rating struct {
	FromUserRating *int `json:"fromUserRating,omitempty"`
	ToUserRating   *int `json:"toUserRating,omitempty"`
}

type Feedback struct {
	FromUserFeedback string `json:"fromUserFeedback,omitempty"`
	ToUserFeedback   string `json:"toUserFeedback,omitempty"`
}

// Request is a skill-swap proposal from FromUserID to ToUserID.
type Request struct {
	ID              uuid.UUID     `json:"id"`
	FromUserID      uuid.UUID     `json:"fromUserId"`
	ToUserID        uuid.UUID     `json:"toUserId"`
	OfferedSkill    string        `json:"offeredSkill"`
	WantedSkill     string        `json:"wantedSkill"`
	Message         string        `json:"message"`
	Status          RequestStatus `json:"status"`
	PreferredTime   string        `json:"preferredTime,omitempty"`
	Duration        string        `json:"duration,omitempty"`
	SessionType     SessionType   `json:"sessionType"`
	Notes           string        `json:"notes,omitempty"`
	ResponseMessage string        `json:"responseMessage,omitempty"`
	RespondedAt     *time.Time    `json:"respondedAt,omitempty"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
	Rating          Rating        `json:"rating"`
	Feedback        Feedback      `json:"feedback"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// IsParty reports whether userID is the sender or the recipient.
func (r *Request) IsParty(userID uuid.UUID) bool {
	return r.FromUserID == userID || r.ToUserID == userID
}

// Counterpart returns the other party of the request.
func (r *Request) Counterpart(userID uuid.UUID) uuid.UUID {
	if r.FromUserID == userID {
		return r.ToUserID
	}
	return r.FromUserID
}

// IsIncoming reports whether the request was sent to viewerID.
// It depends on the reader, so it is never stored.
func IsIncoming(r *Request, viewerID uuid.UUID) bool {
	return r.ToUserID == viewerID
}

// SwapKey identifies a trade regardless of which side sent it:
// A offering X for B's Y and B offering Y for A's X share a key.
func SwapKey(fromUserID, toUserID uuid.UUID, offeredSkill, wantedSkill string) string {
	a := fmt.Sprintf("%s:%d:%s", fromUserID, len(offeredSkill), offeredSkill)
	b := fmt.Sprintf("%s:%d:%s", toUserID, len(wantedSkill), wantedSkill)
	if a > b {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(a + "|" + b))
	return hex.EncodeToString(sum[:])
}

// RequestView is a request as seen by one of its parties.
type RequestView struct {
	*Request
	IsIncoming bool         `json:"isIncoming"`
	FromUser   *UserSummary `json:"fromUser,omitempty"`
	ToUser     *UserSummary `json:"toUser,omitempty"`
}

// CreateRequestParams holds parameters for request creation
type CreateRequestParams struct {
	FromUserID    uuid.UUID
	ToUserID      uuid.UUID
	OfferedSkill  string
	WantedSkill   string
	Message       string
	PreferredTime string
	Duration      string
	SessionType   SessionType
	Notes         string
	SwapKey       string
	CreatedAt     time.Time
}

// TransitionParams moves a request from one status to another.
// The update applies only while the stored status still equals From.
type TransitionParams struct {
	RequestID       uuid.UUID
	From            RequestStatus
	To              RequestStatus
	ResponseMessage *string
	RespondedAt     *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// RecordRatingParams stores one party's rating and folds it into the rated user's aggregate.
type RecordRatingParams struct {
	RequestID   uuid.UUID
	ByFromUser  bool
	RatedUserID uuid.UUID
	Score       int
	Feedback    string
	UpdatedAt   time.Time
}

// ListRequestsParams filters a user's requests; zero values mean no filter.
type ListRequestsParams struct {
	UserID    uuid.UUID
	Status    RequestStatus
	Direction Direction
	Limit     int
	Offset    int
}

// RequestRepository is the request store. Implementations must apply
// TransitionRequest, DeleteRequest and RecordRating as single conditional writes
// and reject a second pending request with the same SwapKey.
type RequestRepository interface {
	CreateRequest(ctx context.Context, params CreateRequestParams) (*Request, error)
	GetRequestByID(ctx context.Context, id uuid.UUID) (*Request, error)
	HasPendingSwap(ctx context.Context, swapKey string) (bool, error)
	TransitionRequest(ctx context.Context, params TransitionParams) (*Request, error)
	DeleteRequest(ctx context.Context, id, fromUserID uuid.UUID, expected RequestStatus) error
	RecordRating(ctx context.Context, params RecordRatingParams) (*Request, error)
	ListRequests(ctx context.Context, params ListRequestsParams) ([]*Request, error)
}
