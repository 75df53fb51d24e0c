package poster

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/parrotlabs/parrot/internal/account"
	"github.com/parrotlabs/parrot/internal/logging"
	"github.com/parrotlabs/parrot/internal/styleprofile"
	"github.com/parrotlabs/parrot/internal/x"
)

// EngageClient is the platform surface engagement needs: read mentions,
// reply, search, like, retweet.
type EngageClient interface {
	Mentions(ctx context.Context, handle string, maxCount int) ([]x.Mention, error)
	Reply(ctx context.Context, handle, text, inReplyToID string) (string, error)
	Search(ctx context.Context, handle, query string, maxCount int) ([]x.Post, error)
	Like(ctx context.Context, handle, tweetID string) error
	Retweet(ctx context.Context, handle, tweetID string) error
}

// ReplyGenerator produces reply text for one mention.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, profile styleprofile.Profile, author, mention string) (string, error)
}

// Engager runs the interaction jobs that sit beside posting: replying to
// mentions, and liking and retweeting keyword matches. Actions are logged
// and replies audited, but none of them count against the posting cap.
type Engager struct {
	cfg      Config
	accounts Accounts
	client   EngageClient
	replies  ReplyGenerator
	vetter   Vetter
	logger   logging.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngager(cfg Config, accounts Accounts, client EngageClient, replies ReplyGenerator, vetter Vetter, logger logging.Logger) *Engager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engager{
		cfg:      cfg,
		accounts: accounts,
		client:   client,
		replies:  replies,
		vetter:   vetter,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// ReplyToMentions fetches recent mentions of handle and replies to at most
// maxReplies of them. Without a reply generator it only logs what it found.
// Returns the number of replies sent (or that would have been sent in a
// dry run).
func (e *Engager) ReplyToMentions(ctx context.Context, handle string, maxReplies int) (int, error) {
	release := e.accounts.AcquireHandle(handle)
	defer release()

	log := e.logger.WithFields(logging.Fields{"handle": handle})

	mentions, err := e.client.Mentions(ctx, handle, 20)
	if err != nil {
		return 0, fmt.Errorf("fetch mentions for %s: %w", handle, err)
	}
	if len(mentions) == 0 {
		log.Info("No recent mentions")
		return 0, nil
	}

	if e.replies == nil {
		for _, m := range mentions {
			log.WithFields(logging.Fields{"mention_id": m.ID, "from": m.Username}).Info("Mention (no reply generator configured)")
		}
		return 0, nil
	}

	profile := styleprofile.LoadForHandle(e.cfg.ProfilesDir, handle)
	state := e.accounts.State(ctx, handle)

	replied := 0
	for _, m := range mentions {
		if replied >= maxReplies {
			break
		}
		mlog := log.WithFields(logging.Fields{"mention_id": m.ID, "from": m.Username})

		text, err := e.replies.GenerateReply(ctx, profile, m.Username, m.Text)
		if err != nil {
			mlog.WithFields(logging.Fields{"error": err.Error()}).Warn("Reply generation failed, skipping mention")
			continue
		}

		if e.vetter != nil {
			if verdict := e.vetter.Check(ctx, handle, text, state.RecentTexts); !verdict.Allow {
				mlog.WithFields(logging.Fields{"reason": verdict.Reason}).Info("Reply rejected")
				e.audit(handle, account.NewAuditRecord(handle, account.OutcomeRejected(verdict.Reason), "", text))
				continue
			}
		}

		if e.cfg.DryRun {
			mlog.WithFields(logging.Fields{"text": text}).Info("Dry run, not replying")
			e.audit(handle, account.NewAuditRecord(handle, account.OutcomeDryRun, "", text))
			replied++
			continue
		}

		postID, err := e.client.Reply(ctx, handle, text, m.ID)
		if err != nil {
			mlog.WithFields(logging.Fields{"error": err.Error()}).Warn("Reply failed, skipping mention")
			continue
		}
		mlog.WithFields(logging.Fields{"post_id": postID}).Info("Replied to mention")
		e.audit(handle, account.NewAuditRecord(handle, account.OutcomeReplied, postID, text))
		replied++

		if err := e.pause(ctx); err != nil {
			return replied, err
		}
	}
	return replied, nil
}

// LikeRetweet searches recent tweets matching the keywords and likes, then
// retweets, each hit until count actions have been taken. Per-tweet errors
// are skipped so one protected or deleted tweet cannot stop the run.
// Returns the number of actions taken.
func (e *Engager) LikeRetweet(ctx context.Context, handle string, keywords []string, count int) (int, error) {
	if len(keywords) == 0 {
		return 0, fmt.Errorf("like-retweet for %s: no keywords", handle)
	}
	if count <= 0 {
		count = 10
	}
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	query := strings.Join(keywords, " OR ")

	log := e.logger.WithFields(logging.Fields{"handle": handle, "query": query})

	searchCount := count
	if searchCount > 15 {
		searchCount = 15
	}
	posts, err := e.client.Search(ctx, handle, query, searchCount)
	if err != nil {
		return 0, fmt.Errorf("search for %s: %w", handle, err)
	}
	if len(posts) == 0 {
		log.Info("No tweets matched keywords")
		return 0, nil
	}

	actions := 0
	for _, p := range posts {
		for _, do := range []struct {
			name string
			fn   func(context.Context, string, string) error
		}{
			{"like", e.client.Like},
			{"retweet", e.client.Retweet},
		} {
			if actions >= count {
				return actions, nil
			}
			if e.cfg.DryRun {
				log.WithFields(logging.Fields{"action": do.name, "tweet_id": p.ID}).Info("Dry run, skipping action")
				actions++
				continue
			}
			if err := do.fn(ctx, handle, p.ID); err != nil {
				log.WithFields(logging.Fields{"action": do.name, "tweet_id": p.ID, "error": err.Error()}).Debug("Action failed, skipping")
				continue
			}
			log.WithFields(logging.Fields{"action": do.name, "tweet_id": p.ID}).Info("Engaged with tweet")
			actions++

			if err := e.pause(ctx); err != nil {
				return actions, err
			}
		}
	}
	return actions, nil
}

func (e *Engager) audit(handle string, entry account.AuditRecord) {
	if err := e.accounts.Audit(handle, entry); err != nil {
		e.logger.WithFields(logging.Fields{
			"handle": handle,
			"error":  err.Error(),
		}).Warn("Audit write failed")
	}
}

func (e *Engager) pause(ctx context.Context) error {
	if e.cfg.MaxDelay <= 0 || e.cfg.MaxDelay < e.cfg.MinDelay {
		return nil
	}
	delay := e.cfg.MinDelay
	if span := e.cfg.MaxDelay - e.cfg.MinDelay; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	return e.sleep(ctx, delay)
}
