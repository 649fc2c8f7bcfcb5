package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skillswap/backend/internal/fcm"
	"github.com/skillswap/backend/internal/realtime"
	"go.uber.org/zap"
)

const pushTimeout = 10 * time.Second

// RealtimePublisher pushes a message to a user's open connections
type RealtimePublisher interface {
	SendToUser(userID uuid.UUID, msg realtime.Message)
}

// PushSender delivers a mobile push notification
type PushSender interface {
	Send(ctx context.Context, push fcm.Push) error
}

// DeviceTokens resolves and clears users' push tokens
type DeviceTokens interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateDeviceToken(ctx context.Context, userID uuid.UUID, token string) error
}

// NotificationService fans lifecycle events out to websocket clients and mobile push.
// Either channel may be nil.
type NotificationService struct {
	users    DeviceTokens
	realtime RealtimePublisher
	push     PushSender
	logger   *zap.Logger
}

func NewNotificationService(users DeviceTokens, publisher RealtimePublisher, push PushSender, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		users:    users,
		realtime: publisher,
		push:     push,
		logger:   logger,
	}
}

// Notify implements Notifier. The websocket send is non-blocking and the push runs in the background.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, event Event) {
	if s.realtime != nil {
		s.realtime.SendToUser(userID, realtime.Message{Type: string(event.Type), Payload: event})
	}
	if s.push == nil {
		return
	}

	go func() {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := s.sendPush(pushCtx, userID, event); err != nil {
			s.logger.Warn("Failed to send push notification",
				zap.String("userID", userID.String()),
				zap.String("event", string(event.Type)),
				zap.Error(err),
			)
		}
	}()
}

func (s *NotificationService) sendPush(ctx context.Context, userID uuid.UUID, event Event) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.DeviceToken == nil || *user.DeviceToken == "" {
		return nil
	}

	title, body := pushText(event)
	err = s.push.Send(ctx, fcm.Push{
		Token: *user.DeviceToken,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":      string(event.Type),
			"requestId": event.Request.ID.String(),
			"status":    string(event.Request.Status),
		},
	})
	if errors.Is(err, fcm.ErrTokenUnregistered) {
		return s.users.UpdateDeviceToken(ctx, userID, "")
	}
	return err
}

func pushText(event Event) (string, string) {
	req := event.Request
	switch event.Type {
	case EventRequestCreated:
		return "New skill swap request", fmt.Sprintf("Someone offers %s in exchange for %s", req.OfferedSkill, req.WantedSkill)
	case EventRequestAccepted:
		return "Request accepted", fmt.Sprintf("Your %s for %s swap was accepted", req.OfferedSkill, req.WantedSkill)
	case EventRequestRejected:
		return "Request declined", fmt.Sprintf("Your %s for %s swap was declined", req.OfferedSkill, req.WantedSkill)
	case EventRequestCompleted:
		return "Swap completed", "Don't forget to rate your session"
	case EventRequestCancelled:
		return "Request cancelled", fmt.Sprintf("The %s for %s swap was cancelled", req.OfferedSkill, req.WantedSkill)
	case EventRequestRated:
		return "New rating", "Your swap partner left you a rating"
	default:
		return "Skill swap update", ""
	}
}
