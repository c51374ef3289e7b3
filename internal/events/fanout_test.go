package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petertzy/molthub/backend/internal/models"
	"github.com/petertzy/molthub/backend/internal/queue"
)

type fakeSubscriptionRepo struct {
	forumSubscribers   []string
	postSubscribers    []string
	commentSubscribers []string
	subscribersErr     error

	autoSubscribedPosts    []string
	autoSubscribedComments []string
	autoSubscribeErr       error
}

func (f *fakeSubscriptionRepo) SubscribeToForum(_ context.Context, _, _ string, _ models.ForumSubscriptionSettings) (*models.ForumSubscription, error) {
	return nil, nil
}

func (f *fakeSubscriptionRepo) UnsubscribeFromForum(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeSubscriptionRepo) GetForumSubscribers(_ context.Context, _ string, _ bool) ([]string, error) {
	return f.forumSubscribers, f.subscribersErr
}

func (f *fakeSubscriptionRepo) SubscribeToPost(_ context.Context, _, _ string, _ models.ThreadSubscriptionSettings) (*models.ThreadSubscription, error) {
	return nil, nil
}

func (f *fakeSubscriptionRepo) UnsubscribeFromPost(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeSubscriptionRepo) GetPostSubscribers(_ context.Context, _ string, _ bool) ([]string, error) {
	return f.postSubscribers, f.subscribersErr
}

func (f *fakeSubscriptionRepo) SubscribeToComment(_ context.Context, _, _ string, _ models.ThreadSubscriptionSettings) (*models.ThreadSubscription, error) {
	return nil, nil
}

func (f *fakeSubscriptionRepo) UnsubscribeFromComment(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeSubscriptionRepo) GetCommentSubscribers(_ context.Context, _ string, _ bool) ([]string, error) {
	return f.commentSubscribers, f.subscribersErr
}

func (f *fakeSubscriptionRepo) AutoSubscribeToPost(_ context.Context, agentID, postID string) error {
	f.autoSubscribedPosts = append(f.autoSubscribedPosts, agentID+":"+postID)
	return f.autoSubscribeErr
}

func (f *fakeSubscriptionRepo) AutoSubscribeToComment(_ context.Context, agentID, commentID string) error {
	f.autoSubscribedComments = append(f.autoSubscribedComments, agentID+":"+commentID)
	return f.autoSubscribeErr
}

type fakePreferenceRepo struct {
	// disabled lists agent ids whose preference for any type is off
	disabled map[string]bool
	// failing lists agent ids whose preference lookup errors out
	failing map[string]bool
}

func (f *fakePreferenceRepo) GetPreferences(_ context.Context, _ string) ([]models.Preference, error) {
	return nil, nil
}

func (f *fakePreferenceRepo) UpdatePreference(_ context.Context, _ string, _ *models.UpdatePreferenceRequest) (*models.Preference, error) {
	return nil, nil
}

func (f *fakePreferenceRepo) IsNotificationEnabled(_ context.Context, agentID string, _ models.NotificationType) (bool, error) {
	if f.failing[agentID] {
		return false, errors.New("preference store unavailable")
	}
	return !f.disabled[agentID], nil
}

func (f *fakePreferenceRepo) IsPushEnabled(_ context.Context, agentID string, _ models.NotificationType) (bool, error) {
	return !f.disabled[agentID], nil
}

type capturingDispatcher struct {
	created []*models.CreateNotificationRequest
	sent    []*models.Notification
}

func (c *capturingDispatcher) DispatchCreate(_ context.Context, req *models.CreateNotificationRequest, _ ...queue.DispatchOption) error {
	c.created = append(c.created, req)
	return nil
}

func (c *capturingDispatcher) DispatchCreateBatch(ctx context.Context, reqs []*models.CreateNotificationRequest, opts ...queue.DispatchOption) error {
	for _, req := range reqs {
		_ = c.DispatchCreate(ctx, req, opts...)
	}
	return nil
}

func (c *capturingDispatcher) DispatchSend(_ context.Context, notification *models.Notification, _ ...queue.DispatchOption) error {
	c.sent = append(c.sent, notification)
	return nil
}

func (c *capturingDispatcher) recipients() []string {
	ids := make([]string, 0, len(c.created))
	for _, req := range c.created {
		ids = append(ids, req.RecipientID)
	}
	return ids
}

func newTestFanout(subs *fakeSubscriptionRepo, prefs *fakePreferenceRepo) (*Fanout, *capturingDispatcher) {
	dispatcher := &capturingDispatcher{}
	return NewFanout(subs, prefs, dispatcher, zap.NewNop()), dispatcher
}

func TestPostCreatedNotifiesSubscribersExceptAuthor(t *testing.T) {
	subs := &fakeSubscriptionRepo{forumSubscribers: []string{"agent-1", "agent-2", "author"}}
	fanout, dispatcher := newTestFanout(subs, &fakePreferenceRepo{})

	err := fanout.OnPostCreated(context.Background(), "post-1", "forum-1", "author", "Hello world")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"agent-1", "agent-2"}, dispatcher.recipients())
	for _, req := range dispatcher.created {
		assert.Equal(t, models.NotificationForumPost, req.Type)
		assert.Equal(t, "New post: Hello world", req.Title)
		require.NotNil(t, req.SenderID)
		assert.Equal(t, "author", *req.SenderID)
		require.NotNil(t, req.ForumID)
		assert.Equal(t, "forum-1", *req.ForumID)
	}
}

func TestPostCreatedAutoSubscribesAuthor(t *testing.T) {
	subs := &fakeSubscriptionRepo{}
	fanout, _ := newTestFanout(subs, &fakePreferenceRepo{})

	err := fanout.OnPostCreated(context.Background(), "post-1", "forum-1", "author", "Hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"author:post-1"}, subs.autoSubscribedPosts)
}

func TestPostCreatedSucceedsWhenAutoSubscribeFails(t *testing.T) {
	subs := &fakeSubscriptionRepo{
		forumSubscribers: []string{"agent-1"},
		autoSubscribeErr: errors.New("unique_violation"),
	}
	fanout, dispatcher := newTestFanout(subs, &fakePreferenceRepo{})

	err := fanout.OnPostCreated(context.Background(), "post-1", "forum-1", "author", "Hello")
	require.NoError(t, err)
	assert.Len(t, dispatcher.created, 1)
}

func TestPostCreatedDeduplicatesRecipients(t *testing.T) {
	subs := &fakeSubscriptionRepo{forumSubscribers: []string{"agent-1", "agent-1", "agent-2"}}
	fanout, dispatcher := newTestFanout(subs, &fakePreferenceRepo{})

	err := fanout.OnPostCreated(context.Background(), "post-1", "forum-1", "author", "Hello")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"agent-1", "agent-2"}, dispatcher.recipients())
}

func TestPostCreatedSkipsDisabledPreference(t *testing.T) {
	subs := &fakeSubscriptionRepo{forumSubscribers: []string{"agent-1", "agent-2"}}
	prefs := &fakePreferenceRepo{disabled: map[string]bool{"agent-2": true}}
	fanout, dispatcher := newTestFanout(subs, prefs)

	err := fanout.OnPostCreated(context.Background(), "post-1", "forum-1", "author", "Hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"agent-1"}, dispatcher.recipients())
}

func TestPostCreatedContinuesPastFailedPreferenceLookup(t *testing.T) {
	subs := &fakeSubscriptionRepo{forumSubscribers: []string{"agent-1", "agent-2", "agent-3"}}
	prefs := &fakePreferenceRepo{failing: map[string]bool{"agent-2": true}}
	fanout, dispatcher := newTestFanout(subs, prefs)

	err := fanout.OnPostCreated(context.Background(), "post-1", "forum-1", "author", "Hello")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"agent-1", "agent-3"}, dispatcher.recipients())
}

func TestPostCreatedFailsWhenSubscriberLookupFails(t *testing.T) {
	subs := &fakeSubscriptionRepo{subscribersErr: errors.New("db down")}
	fanout, dispatcher := newTestFanout(subs, &fakePreferenceRepo{})

	err := fanout.OnPostCreated(context.Background(), "post-1", "forum-1", "author", "Hello")
	require.Error(t, err)
	assert.Empty(t, dispatcher.created)
}

func TestTopLevelCommentNotifiesPostSubscribers(t *testing.T) {
	subs := &fakeSubscriptionRepo{
		postSubscribers:    []string{"agent-1"},
		commentSubscribers: []string{"agent-2"},
	}
	fanout, dispatcher := newTestFanout(subs, &fakePreferenceRepo{})

	err := fanout.OnCommentCreated(context.Background(), "comment-1", "post-1", "forum-1", "author", "nice post", nil)
	require.NoError(t, err)

	// Top-level comments go to post subscribers only.
	require.Len(t, dispatcher.created, 1)
	req := dispatcher.created[0]
	assert.Equal(t, "agent-1", req.RecipientID)
	assert.Equal(t, models.NotificationPostComment, req.Type)
	require.NotNil(t, req.Content)
	assert.Equal(t, "nice post", *req.Content)
	assert.Nil(t, req.Metadata["parent_comment_id"])
}

func TestReplyNotifiesParentCommentSubscribers(t *testing.T) {
	subs := &fakeSubscriptionRepo{
		postSubscribers:    []string{"agent-1"},
		commentSubscribers: []string{"agent-2"},
	}
	fanout, dispatcher := newTestFanout(subs, &fakePreferenceRepo{})

	parentID := "comment-0"
	err := fanout.OnCommentCreated(context.Background(), "comment-1", "post-1", "forum-1", "author", "I agree", &parentID)
	require.NoError(t, err)

	// Replies go to the parent comment's subscribers, not the post's.
	require.Len(t, dispatcher.created, 1)
	req := dispatcher.created[0]
	assert.Equal(t, "agent-2", req.RecipientID)
	assert.Equal(t, models.NotificationCommentReply, req.Type)
	assert.Equal(t, "comment-0", req.Metadata["parent_comment_id"])
}

func TestCommentCreatedAutoSubscribesAuthor(t *testing.T) {
	subs := &fakeSubscriptionRepo{}
	fanout, _ := newTestFanout(subs, &fakePreferenceRepo{})

	err := fanout.OnCommentCreated(context.Background(), "comment-1", "post-1", "forum-1", "author", "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"author:comment-1"}, subs.autoSubscribedComments)
}

func TestPostVoteNotifiesOwner(t *testing.T) {
	fanout, dispatcher := newTestFanout(&fakeSubscriptionRepo{}, &fakePreferenceRepo{})

	err := fanout.OnPostVoted(context.Background(), "post-1", "owner", "voter", 1)
	require.NoError(t, err)

	require.Len(t, dispatcher.created, 1)
	req := dispatcher.created[0]
	assert.Equal(t, "owner", req.RecipientID)
	assert.Equal(t, models.NotificationPostVote, req.Type)
	assert.Equal(t, "Your post received an upvote", req.Title)
	assert.Equal(t, 1, req.Metadata["vote_type"])
}

func TestDownvoteTitle(t *testing.T) {
	fanout, dispatcher := newTestFanout(&fakeSubscriptionRepo{}, &fakePreferenceRepo{})

	err := fanout.OnCommentVoted(context.Background(), "comment-1", "post-1", "owner", "voter", -1)
	require.NoError(t, err)

	require.Len(t, dispatcher.created, 1)
	assert.Equal(t, "Your comment received a downvote", dispatcher.created[0].Title)
}

func TestSelfVoteIsSilent(t *testing.T) {
	fanout, dispatcher := newTestFanout(&fakeSubscriptionRepo{}, &fakePreferenceRepo{})

	err := fanout.OnPostVoted(context.Background(), "post-1", "owner", "owner", 1)
	require.NoError(t, err)
	assert.Empty(t, dispatcher.created)

	err = fanout.OnCommentVoted(context.Background(), "comment-1", "post-1", "owner", "owner", -1)
	require.NoError(t, err)
	assert.Empty(t, dispatcher.created)
}

func TestVoteSkippedWhenOwnerDisabledType(t *testing.T) {
	prefs := &fakePreferenceRepo{disabled: map[string]bool{"owner": true}}
	fanout, dispatcher := newTestFanout(&fakeSubscriptionRepo{}, prefs)

	err := fanout.OnPostVoted(context.Background(), "post-1", "owner", "voter", 1)
	require.NoError(t, err)
	assert.Empty(t, dispatcher.created)
}

func TestUnknownEventRejected(t *testing.T) {
	fanout, _ := newTestFanout(&fakeSubscriptionRepo{}, &fakePreferenceRepo{})

	err := fanout.HandleEvent(context.Background(), nil)
	require.Error(t, err)
}
