package firebase

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/petertzy/molthub/backend/internal/models"
)

// App holds the initialized Firebase app and messaging client
type App struct {
	FirebaseApp     *firebase.App
	MessagingClient *messaging.Client
}

// InitFirebase initializes the Firebase application and the Cloud Messaging
// client used for offline push delivery.
func InitFirebase(ctx context.Context, credentialsPath string) (*App, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}

	// Check if the credentials file exists
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	firebaseApp, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	messagingClient, err := firebaseApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase messaging client: %w", err)
	}

	return &App{FirebaseApp: firebaseApp, MessagingClient: messagingClient}, nil
}

// SendPush delivers a notification to the agent's devices. Devices subscribe
// to their agent's topic on login, so no token registry is needed here.
func (a *App) SendPush(ctx context.Context, agentID string, notification *models.Notification) error {
	body := ""
	if notification.Content != nil {
		body = *notification.Content
	}

	message := &messaging.Message{
		Topic: "agent-" + agentID,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  body,
		},
		Data: map[string]string{
			"notification_id": notification.ID,
			"type":            string(notification.Type),
		},
	}

	_, err := a.MessagingClient.Send(ctx, message)
	return err
}
