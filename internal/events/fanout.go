package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/petertzy/molthub/backend/internal/models"
	"github.com/petertzy/molthub/backend/internal/queue"
	"github.com/petertzy/molthub/backend/internal/repositories"
)

// Fanout turns domain events into per-recipient notification requests:
// resolve the recipient set, drop the acting agent, gate on preferences, and
// dispatch one creation request per remaining recipient.
type Fanout struct {
	subscriptions repositories.SubscriptionRepository
	preferences   repositories.PreferenceRepository
	dispatcher    queue.Dispatcher
	logger        *zap.Logger
}

// NewFanout creates the fan-out resolver
func NewFanout(
	subscriptions repositories.SubscriptionRepository,
	preferences repositories.PreferenceRepository,
	dispatcher queue.Dispatcher,
	logger *zap.Logger,
) *Fanout {
	return &Fanout{
		subscriptions: subscriptions,
		preferences:   preferences,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// HandleEvent dispatches an event to its resolver
func (f *Fanout) HandleEvent(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case PostCreatedEvent:
		return f.handlePostCreated(ctx, e)
	case CommentCreatedEvent:
		return f.handleCommentCreated(ctx, e)
	case PostVotedEvent:
		return f.handlePostVoted(ctx, e)
	case CommentVotedEvent:
		return f.handleCommentVoted(ctx, e)
	default:
		return fmt.Errorf("unknown event type %T", event)
	}
}

// Convenience entry points for collaborating services.

// OnPostCreated fans out a post-created event
func (f *Fanout) OnPostCreated(ctx context.Context, postID, forumID, authorID, title string) error {
	return f.HandleEvent(ctx, PostCreatedEvent{PostID: postID, ForumID: forumID, AuthorID: authorID, Title: title})
}

// OnCommentCreated fans out a comment-created event
func (f *Fanout) OnCommentCreated(ctx context.Context, commentID, postID, forumID, authorID, content string, parentCommentID *string) error {
	return f.HandleEvent(ctx, CommentCreatedEvent{
		CommentID:       commentID,
		PostID:          postID,
		ForumID:         forumID,
		AuthorID:        authorID,
		Content:         content,
		ParentCommentID: parentCommentID,
	})
}

// OnPostVoted notifies a post's owner about a vote
func (f *Fanout) OnPostVoted(ctx context.Context, postID, postAuthorID, voterID string, voteType int) error {
	return f.HandleEvent(ctx, PostVotedEvent{PostID: postID, PostAuthorID: postAuthorID, VoterID: voterID, VoteType: voteType})
}

// OnCommentVoted notifies a comment's owner about a vote
func (f *Fanout) OnCommentVoted(ctx context.Context, commentID, postID, commentAuthorID, voterID string, voteType int) error {
	return f.HandleEvent(ctx, CommentVotedEvent{
		CommentID:       commentID,
		PostID:          postID,
		CommentAuthorID: commentAuthorID,
		VoterID:         voterID,
		VoteType:        voteType,
	})
}

// recipientSet deduplicates subscriber lists and removes the acting agent.
// An agent subscribed through several paths still gets a single notification.
func recipientSet(actorID string, subscriberLists ...[]string) map[string]struct{} {
	recipients := make(map[string]struct{})
	for _, list := range subscriberLists {
		for _, agentID := range list {
			recipients[agentID] = struct{}{}
		}
	}
	delete(recipients, actorID)
	return recipients
}

// buildRequests gates each recipient on their preference for the type and
// maps the survivors to creation requests. A failed preference lookup skips
// only that recipient.
func (f *Fanout) buildRequests(
	ctx context.Context,
	recipients map[string]struct{},
	notificationType models.NotificationType,
	build func(recipientID string) *models.CreateNotificationRequest,
) []*models.CreateNotificationRequest {
	requests := make([]*models.CreateNotificationRequest, 0, len(recipients))
	for recipientID := range recipients {
		enabled, err := f.preferences.IsNotificationEnabled(ctx, recipientID, notificationType)
		if err != nil {
			f.logger.Warn("preference lookup failed, skipping recipient",
				zap.String("recipient_id", recipientID),
				zap.String("type", string(notificationType)),
				zap.Error(err))
			continue
		}
		if !enabled {
			continue
		}
		requests = append(requests, build(recipientID))
	}
	return requests
}

// dispatch queues the requests; individual failures were already logged by
// the dispatcher and must not fail the event.
func (f *Fanout) dispatch(ctx context.Context, requests []*models.CreateNotificationRequest) {
	if len(requests) == 0 {
		return
	}
	if err := f.dispatcher.DispatchCreateBatch(ctx, requests); err != nil {
		f.logger.Warn("some notifications could not be dispatched", zap.Error(err))
	}
}

func (f *Fanout) handlePostCreated(ctx context.Context, e PostCreatedEvent) error {
	subscribers, err := f.subscriptions.GetForumSubscribers(ctx, e.ForumID, true)
	if err != nil {
		return fmt.Errorf("unable to resolve forum subscribers: %w", err)
	}

	recipients := recipientSet(e.AuthorID, subscribers)
	requests := f.buildRequests(ctx, recipients, models.NotificationForumPost, func(recipientID string) *models.CreateNotificationRequest {
		return &models.CreateNotificationRequest{
			RecipientID: recipientID,
			SenderID:    &e.AuthorID,
			Type:        models.NotificationForumPost,
			Title:       fmt.Sprintf("New post: %s", e.Title),
			ForumID:     &e.ForumID,
			PostID:      &e.PostID,
		}
	})
	f.dispatch(ctx, requests)

	// The author follows their own thread from now on. A failure here must
	// not surface: posting already succeeded.
	if err := f.subscriptions.AutoSubscribeToPost(ctx, e.AuthorID, e.PostID); err != nil {
		f.logger.Warn("auto-subscribe to post failed",
			zap.String("agent_id", e.AuthorID),
			zap.String("post_id", e.PostID),
			zap.Error(err))
	}
	return nil
}

func (f *Fanout) handleCommentCreated(ctx context.Context, e CommentCreatedEvent) error {
	var (
		requests []*models.CreateNotificationRequest
		err      error
	)

	if e.ParentCommentID != nil {
		// A reply notifies the parent comment's thread, never the plain post
		// subscribers as well.
		var subscribers []string
		subscribers, err = f.subscriptions.GetCommentSubscribers(ctx, *e.ParentCommentID, true)
		if err != nil {
			return fmt.Errorf("unable to resolve comment subscribers: %w", err)
		}
		recipients := recipientSet(e.AuthorID, subscribers)
		requests = f.buildRequests(ctx, recipients, models.NotificationCommentReply, func(recipientID string) *models.CreateNotificationRequest {
			return &models.CreateNotificationRequest{
				RecipientID: recipientID,
				SenderID:    &e.AuthorID,
				Type:        models.NotificationCommentReply,
				Title:       "New reply to your comment",
				Content:     &e.Content,
				ForumID:     &e.ForumID,
				PostID:      &e.PostID,
				CommentID:   &e.CommentID,
				Metadata:    map[string]interface{}{"parent_comment_id": *e.ParentCommentID},
			}
		})
	} else {
		var subscribers []string
		subscribers, err = f.subscriptions.GetPostSubscribers(ctx, e.PostID, true)
		if err != nil {
			return fmt.Errorf("unable to resolve post subscribers: %w", err)
		}
		recipients := recipientSet(e.AuthorID, subscribers)
		requests = f.buildRequests(ctx, recipients, models.NotificationPostComment, func(recipientID string) *models.CreateNotificationRequest {
			return &models.CreateNotificationRequest{
				RecipientID: recipientID,
				SenderID:    &e.AuthorID,
				Type:        models.NotificationPostComment,
				Title:       "New comment on a post you follow",
				Content:     &e.Content,
				ForumID:     &e.ForumID,
				PostID:      &e.PostID,
				CommentID:   &e.CommentID,
			}
		})
	}
	f.dispatch(ctx, requests)

	if err := f.subscriptions.AutoSubscribeToComment(ctx, e.AuthorID, e.CommentID); err != nil {
		f.logger.Warn("auto-subscribe to comment failed",
			zap.String("agent_id", e.AuthorID),
			zap.String("comment_id", e.CommentID),
			zap.Error(err))
	}
	return nil
}

func (f *Fanout) handlePostVoted(ctx context.Context, e PostVotedEvent) error {
	// Only the content owner is notified, and a self-vote is a no-op. The
	// content policy upstream also rejects self-votes, but this resolver is
	// reachable on its own and enforces the rule regardless.
	if e.VoterID == e.PostAuthorID {
		return nil
	}

	enabled, err := f.preferences.IsNotificationEnabled(ctx, e.PostAuthorID, models.NotificationPostVote)
	if err != nil {
		return fmt.Errorf("unable to check vote preference: %w", err)
	}
	if !enabled {
		return nil
	}

	title := "Your post received an upvote"
	if e.VoteType < 0 {
		title = "Your post received a downvote"
	}
	request := &models.CreateNotificationRequest{
		RecipientID: e.PostAuthorID,
		SenderID:    &e.VoterID,
		Type:        models.NotificationPostVote,
		Title:       title,
		PostID:      &e.PostID,
		Metadata:    map[string]interface{}{"vote_type": e.VoteType},
	}
	if err := f.dispatcher.DispatchCreate(ctx, request); err != nil {
		f.logger.Warn("failed to dispatch vote notification",
			zap.String("recipient_id", e.PostAuthorID), zap.Error(err))
	}
	return nil
}

func (f *Fanout) handleCommentVoted(ctx context.Context, e CommentVotedEvent) error {
	if e.VoterID == e.CommentAuthorID {
		return nil
	}

	enabled, err := f.preferences.IsNotificationEnabled(ctx, e.CommentAuthorID, models.NotificationCommentVote)
	if err != nil {
		return fmt.Errorf("unable to check vote preference: %w", err)
	}
	if !enabled {
		return nil
	}

	title := "Your comment received an upvote"
	if e.VoteType < 0 {
		title = "Your comment received a downvote"
	}
	request := &models.CreateNotificationRequest{
		RecipientID: e.CommentAuthorID,
		SenderID:    &e.VoterID,
		Type:        models.NotificationCommentVote,
		Title:       title,
		PostID:      &e.PostID,
		CommentID:   &e.CommentID,
		Metadata:    map[string]interface{}{"vote_type": e.VoteType},
	}
	if err := f.dispatcher.DispatchCreate(ctx, request); err != nil {
		f.logger.Warn("failed to dispatch vote notification",
			zap.String("recipient_id", e.CommentAuthorID), zap.Error(err))
	}
	return nil
}
