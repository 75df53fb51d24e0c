// Package poster drives one posting invocation end to end: generate, vet,
// resolve media, publish, record.
package poster

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/parrotlabs/parrot/internal/account"
	"github.com/parrotlabs/parrot/internal/guard"
	"github.com/parrotlabs/parrot/internal/logging"
	"github.com/parrotlabs/parrot/internal/media"
	"github.com/parrotlabs/parrot/internal/styleprofile"
	"github.com/parrotlabs/parrot/internal/x"
)

// Outcome of one invocation, one per call to Post.
type Outcome struct {
	Handle   string
	Posted   bool
	DryRun   bool
	Rejected string
	PostID   string
	Text     string
}

// Generator produces candidate text for a handle's style profile.
type Generator interface {
	Generate(ctx context.Context, profile styleprofile.Profile, topic string) (string, error)
}

// Vetter decides whether a candidate may be published.
type Vetter interface {
	Check(ctx context.Context, handle, text string, recent []string) guard.Verdict
}

// Publisher posts text with optional media on behalf of a handle.
type Publisher interface {
	Publish(ctx context.Context, handle, text, mediaID string) (string, error)
	Upload(ctx context.Context, handle, path string) (string, error)
}

// MediaResolver finds an optional attachment. A nil resolver or nil result
// means posting text only.
type MediaResolver interface {
	Resolve(ctx context.Context, handle, text string) *media.Attachment
}

// Accounts is the per-handle state the poster reads and updates.
type Accounts interface {
	AcquireHandle(handle string) func()
	State(ctx context.Context, handle string) account.State
	RecordPublish(ctx context.Context, handle string, entry account.AuditRecord) error
	Audit(handle string, entry account.AuditRecord) error
}

type Config struct {
	ProfilesDir string
	MinDelay    time.Duration
	MaxDelay    time.Duration
	DryRun      bool
}

type Poster struct {
	cfg       Config
	accounts  Accounts
	generator Generator
	vetter    Vetter
	resolver  MediaResolver
	publisher Publisher
	logger    logging.Logger

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPoster(cfg Config, accounts Accounts, generator Generator, vetter Vetter, resolver MediaResolver, publisher Publisher, logger logging.Logger) *Poster {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poster{
		cfg:       cfg,
		accounts:  accounts,
		generator: generator,
		vetter:    vetter,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Post runs one invocation for handle. The handle is locked for the whole
// call so concurrent invocations cannot race the daily counter.
func (p *Poster) Post(ctx context.Context, handle, topic string) (Outcome, error) {
	release := p.accounts.AcquireHandle(handle)
	defer release()

	log := p.logger.WithFields(logging.Fields{"handle": handle})
	outcome := Outcome{Handle: handle, DryRun: p.cfg.DryRun}

	profile := styleprofile.LoadForHandle(p.cfg.ProfilesDir, handle)

	text, err := p.generator.Generate(ctx, profile, topic)
	if err != nil {
		p.audit(handle, account.NewAuditRecord(handle, account.OutcomeError("generate"), "", ""))
		return outcome, fmt.Errorf("generate for %s: %w", handle, err)
	}
	outcome.Text = text
	log.WithFields(logging.Fields{"length": len(text)}).Info("Generated candidate post")

	state := p.accounts.State(ctx, handle)
	verdict := p.vetter.Check(ctx, handle, text, state.RecentTexts)
	if !verdict.Allow {
		outcome.Rejected = verdict.Reason
		log.WithFields(logging.Fields{
			"reason": verdict.Reason,
			"detail": verdict.Detail,
		}).Info("Candidate rejected")
		p.audit(handle, account.NewAuditRecord(handle, account.OutcomeRejected(verdict.Reason), "", text))
		return outcome, nil
	}

	if p.cfg.DryRun {
		log.WithFields(logging.Fields{"text": text}).Info("Dry run, not publishing")
		p.audit(handle, account.NewAuditRecord(handle, account.OutcomeDryRun, "", text))
		return outcome, nil
	}

	var att *media.Attachment
	if p.resolver != nil {
		att = p.resolver.Resolve(ctx, handle, text)
	}
	defer att.Cleanup()

	if err := p.humanDelay(ctx); err != nil {
		p.audit(handle, account.NewAuditRecord(handle, account.OutcomeError("cancelled"), "", text))
		return outcome, err
	}

	mediaID := ""
	if att != nil {
		id, err := p.publisher.Upload(ctx, handle, att.Path)
		if err != nil {
			log.WithFields(logging.Fields{"error": err.Error()}).Warn("Media upload failed, posting text only")
		} else {
			mediaID = id
		}
	}

	postID, err := p.publisher.Publish(ctx, handle, text, mediaID)
	if err != nil {
		kind := string(x.ErrorKind(err))
		var cfgErr *account.ConfigError
		if errors.As(err, &cfgErr) {
			kind = "config"
		}
		p.audit(handle, account.NewAuditRecord(handle, account.OutcomeError(kind), "", text))
		return outcome, fmt.Errorf("publish for %s: %w", handle, err)
	}

	outcome.Posted = true
	outcome.PostID = postID
	log.WithFields(logging.Fields{"post_id": postID}).Info("Published post")

	if err := p.accounts.RecordPublish(ctx, handle, account.NewAuditRecord(handle, account.OutcomePosted, postID, text)); err != nil {
		log.WithFields(logging.Fields{"error": err.Error()}).Error("Post published but state update failed")
	}
	return outcome, nil
}

func (p *Poster) audit(handle string, entry account.AuditRecord) {
	if err := p.accounts.Audit(handle, entry); err != nil {
		p.logger.WithFields(logging.Fields{
			"handle": handle,
			"error":  err.Error(),
		}).Warn("Audit write failed")
	}
}

// humanDelay waits a random interval between the configured bounds so posts
// do not land at machine-regular timestamps.
func (p *Poster) humanDelay(ctx context.Context) error {
	if p.cfg.MaxDelay <= 0 || p.cfg.MaxDelay < p.cfg.MinDelay {
		return nil
	}
	delay := p.cfg.MinDelay
	if span := p.cfg.MaxDelay - p.cfg.MinDelay; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	p.logger.WithFields(logging.Fields{"delay": delay.String()}).Debug("Waiting before publish")
	return p.sleep(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
