package fcm

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrTokenUnregistered means the device token is stale and should be forgotten
var ErrTokenUnregistered = errors.New("device token is no longer registered")

// Push is one notification addressed to a device
type Push struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type Client struct {
	msgClient *messaging.Client
	logger    *zap.Logger
}

func NewClient(ctx context.Context, logger *zap.Logger, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else {
		logger.Warn("No Firebase credentials file provided. FCM will utilize environment variable GOOGLE_APPLICATION_CREDENTIALS or default credentials.")
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &Client{
		msgClient: msgClient,
		logger:    logger,
	}, nil
}

// Send delivers a push notification. A push without a token is skipped.
func (c *Client) Send(ctx context.Context, push Push) error {
	if push.Token == "" {
		return nil
	}

	_, err := c.msgClient.Send(ctx, buildMessage(push))
	if err != nil {
		if messaging.IsRegistrationTokenNotRegistered(err) {
			return ErrTokenUnregistered
		}
		return fmt.Errorf("send fcm message: %w", err)
	}
	return nil
}

func buildMessage(push Push) *messaging.Message {
	return &messaging.Message{
		Token: push.Token,
		Notification: &messaging.Notification{
			Title: push.Title,
			Body:  push.Body,
		},
		Data: push.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}
