package repositories

import "errors"

var (
	// ErrNotificationNotFound is returned when a notification does not exist
	// or is not owned by the requesting agent. Ownership is enforced by the
	// query predicate, so a foreign notification id looks identical to a
	// missing one.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrSubscriptionNotFound is returned when unsubscribing an agent that
	// was never subscribed.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInvalidNotificationType is returned when a creation request names an
	// unknown notification type.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrMissingResourceRef is returned when a creation request carries none
	// of forum_id/post_id/comment_id. A notification is always anchored to a
	// resource.
	ErrMissingResourceRef = errors.New("notification must reference a forum, post, or comment")
)
