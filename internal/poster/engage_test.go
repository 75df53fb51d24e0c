package poster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotlabs/parrot/internal/account"
	"github.com/parrotlabs/parrot/internal/guard"
	"github.com/parrotlabs/parrot/internal/styleprofile"
	"github.com/parrotlabs/parrot/internal/x"
)

type fakeEngageClient struct {
	mentions []x.Mention
	posts    []x.Post

	replies    []string
	repliedTo  []string
	liked      []string
	retweeted  []string
	lastQuery  string
	likeErr    error
	retweetErr error
}

func (f *fakeEngageClient) Mentions(ctx context.Context, handle string, maxCount int) ([]x.Mention, error) {
	return f.mentions, nil
}

func (f *fakeEngageClient) Reply(ctx context.Context, handle, text, inReplyToID string) (string, error) {
	f.replies = append(f.replies, text)
	f.repliedTo = append(f.repliedTo, inReplyToID)
	return "reply-" + inReplyToID, nil
}

func (f *fakeEngageClient) Search(ctx context.Context, handle, query string, maxCount int) ([]x.Post, error) {
	f.lastQuery = query
	return f.posts, nil
}

func (f *fakeEngageClient) Like(ctx context.Context, handle, tweetID string) error {
	if f.likeErr != nil {
		return f.likeErr
	}
	f.liked = append(f.liked, tweetID)
	return nil
}

func (f *fakeEngageClient) Retweet(ctx context.Context, handle, tweetID string) error {
	if f.retweetErr != nil {
		return f.retweetErr
	}
	f.retweeted = append(f.retweeted, tweetID)
	return nil
}

type fakeReplyGen struct {
	text string
	err  error
}

func (f *fakeReplyGen) GenerateReply(ctx context.Context, profile styleprofile.Profile, author, mention string) (string, error) {
	return f.text, f.err
}

func newTestEngager(cfg Config, accounts *fakeAccounts, client EngageClient, replies ReplyGenerator, vet Vetter) *Engager {
	e := NewEngager(cfg, accounts, client, replies, vet, nil)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

func TestReplyToMentionsUpToLimit(t *testing.T) {
	accounts := &fakeAccounts{}
	client := &fakeEngageClient{mentions: []x.Mention{
		{ID: "m1", Text: "love this", Username: "fan"},
		{ID: "m2", Text: "question?", Username: "curious"},
		{ID: "m3", Text: "hello", Username: "other"},
	}}
	e := newTestEngager(Config{}, accounts, client, &fakeReplyGen{text: "thanks!"}, nil)

	n, err := e.ReplyToMentions(context.Background(), "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"m1", "m2"}, client.repliedTo)

	require.Len(t, accounts.audited, 2)
	assert.Equal(t, account.OutcomeReplied, accounts.audited[0].Outcome)
	assert.Equal(t, "reply-m1", accounts.audited[0].PostID)
}

func TestReplyToMentionsDryRun(t *testing.T) {
	accounts := &fakeAccounts{}
	client := &fakeEngageClient{mentions: []x.Mention{{ID: "m1", Text: "hi", Username: "fan"}}}
	e := newTestEngager(Config{DryRun: true}, accounts, client, &fakeReplyGen{text: "thanks!"}, nil)

	n, err := e.ReplyToMentions(context.Background(), "alice", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, client.repliedTo)

	require.Len(t, accounts.audited, 1)
	assert.Equal(t, account.OutcomeDryRun, accounts.audited[0].Outcome)
}

func TestReplyToMentionsWithoutGeneratorOnlyLogs(t *testing.T) {
	client := &fakeEngageClient{mentions: []x.Mention{{ID: "m1", Text: "hi"}}}
	e := newTestEngager(Config{}, &fakeAccounts{}, client, nil, nil)

	n, err := e.ReplyToMentions(context.Background(), "alice", 5)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, client.repliedTo)
}

func TestReplyToMentionsVetterRejects(t *testing.T) {
	accounts := &fakeAccounts{}
	client := &fakeEngageClient{mentions: []x.Mention{{ID: "m1", Text: "hi", Username: "fan"}}}
	vet := &fakeVetter{verdict: guard.Verdict{Allow: false, Reason: guard.ReasonBlocklist}}
	e := newTestEngager(Config{}, accounts, client, &fakeReplyGen{text: "crypto giveaway"}, vet)

	n, err := e.ReplyToMentions(context.Background(), "alice", 5)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, client.repliedTo)

	require.Len(t, accounts.audited, 1)
	assert.Equal(t, account.OutcomeRejected(guard.ReasonBlocklist), accounts.audited[0].Outcome)
}

func TestReplyToMentionsGenerationFailureSkips(t *testing.T) {
	client := &fakeEngageClient{mentions: []x.Mention{
		{ID: "m1", Text: "hi", Username: "fan"},
	}}
	e := newTestEngager(Config{}, &fakeAccounts{}, client, &fakeReplyGen{err: errors.New("model down")}, nil)

	n, err := e.ReplyToMentions(context.Background(), "alice", 5)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, client.repliedTo)
}

func TestLikeRetweetAlternatesUpToCount(t *testing.T) {
	client := &fakeEngageClient{posts: []x.Post{{ID: "t1"}, {ID: "t2"}}}
	e := newTestEngager(Config{}, &fakeAccounts{}, client, nil, nil)

	n, err := e.LikeRetweet(context.Background(), "alice", []string{"golang"}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"t1", "t2"}, client.liked)
	assert.Equal(t, []string{"t1"}, client.retweeted)
}

func TestLikeRetweetDryRunSkipsCalls(t *testing.T) {
	client := &fakeEngageClient{posts: []x.Post{{ID: "t1"}}}
	e := newTestEngager(Config{DryRun: true}, &fakeAccounts{}, client, nil, nil)

	n, err := e.LikeRetweet(context.Background(), "alice", []string{"golang"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, client.liked)
	assert.Empty(t, client.retweeted)
}

func TestLikeRetweetKeywordQuery(t *testing.T) {
	client := &fakeEngageClient{}
	e := newTestEngager(Config{}, &fakeAccounts{}, client, nil, nil)

	_, err := e.LikeRetweet(context.Background(), "alice",
		[]string{"a", "b", "c", "d", "e", "f"}, 4)
	require.NoError(t, err)
	assert.Equal(t, "a OR b OR c OR d OR e", client.lastQuery)
}

func TestLikeRetweetSkipsFailedAction(t *testing.T) {
	client := &fakeEngageClient{
		posts:   []x.Post{{ID: "t1"}},
		likeErr: errors.New("already liked"),
	}
	e := newTestEngager(Config{}, &fakeAccounts{}, client, nil, nil)

	n, err := e.LikeRetweet(context.Background(), "alice", []string{"golang"}, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"t1"}, client.retweeted)
}

func TestLikeRetweetRequiresKeywords(t *testing.T) {
	e := newTestEngager(Config{}, &fakeAccounts{}, &fakeEngageClient{}, nil, nil)
	_, err := e.LikeRetweet(context.Background(), "alice", nil, 4)
	assert.Error(t, err)
}
