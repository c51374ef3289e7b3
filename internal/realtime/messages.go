package realtime

import "time"

// Push message types delivered over the realtime channel
const (
	MessageNewNotification = "new_notification"
	MessageUnreadCount     = "unread_count"
)

// Envelope is the typed message frame pushed to live connections
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
