package fcm

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Notification is one push message. Data must hold string values only.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
	// Link is opened by web clients when the notification is clicked.
	Link string
}

// Sender delivers a notification to device tokens and reports the tokens that failed.
type Sender interface {
	Send(ctx context.Context, tokens []string, n Notification) ([]string, error)
}

// Client wraps Firebase Cloud Messaging
type Client struct {
	messaging *messaging.Client
}

// NewClient initializes Firebase with the credentials file, or application default credentials when empty.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Println("[FCM] Client initialized")
	return &Client{messaging: mc}, nil
}

func (c *Client) Send(ctx context.Context, tokens []string, n Notification) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	resp, err := c.messaging.SendEachForMulticast(ctx, BuildMessage(tokens, n))
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}
	log.Printf("[FCM] Multicast sent: %d success, %d failures", resp.SuccessCount, resp.FailureCount)

	var failed []string
	for i, r := range resp.Responses {
		if !r.Success {
			failed = append(failed, tokens[i])
			log.Printf("[FCM] Delivery to %s failed: %v", mask(tokens[i]), r.Error)
		}
	}
	return failed, nil
}

// BuildMessage maps a Notification onto the multicast payload.
func BuildMessage(tokens []string, n Notification) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Icon:  "/icon-192.svg",
			},
		},
	}
	if n.Link != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: n.Link}
	}
	return msg
}

func mask(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:12] + "..."
}
