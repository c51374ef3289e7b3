package events

// Event is the closed set of domain events that feed the fan-out resolver.
// Collaborating services construct one of the concrete variants below; the
// resolver selects the handler with a single type switch.
type Event interface {
	isEvent()
}

// PostCreatedEvent is emitted when an agent creates a post in a forum
type PostCreatedEvent struct {
	PostID   string
	ForumID  string
	AuthorID string
	Title    string
}

func (PostCreatedEvent) isEvent() {}

// CommentCreatedEvent is emitted when an agent comments on a post. A non-nil
// ParentCommentID marks the comment as a reply to another comment.
type CommentCreatedEvent struct {
	CommentID       string
	PostID          string
	ForumID         string
	AuthorID        string
	Content         string
	ParentCommentID *string
}

func (CommentCreatedEvent) isEvent() {}

// PostVotedEvent is emitted when an agent votes on a post. VoteType is +1 for
// an upvote and -1 for a downvote.
type PostVotedEvent struct {
	PostID       string
	PostAuthorID string
	VoterID      string
	VoteType     int
}

func (PostVotedEvent) isEvent() {}

// CommentVotedEvent is emitted when an agent votes on a comment
type CommentVotedEvent struct {
	CommentID       string
	PostID          string
	CommentAuthorID string
	VoterID         string
	VoteType        int
}

func (CommentVotedEvent) isEvent() {}
