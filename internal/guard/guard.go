// Package guard vets candidate text before it can be published. Checks run
// cheapest first and the first rejection wins; the AI safety check is last
// and fails closed.
package guard

import (
	"context"
	"strings"

	"github.com/parrotlabs/parrot/internal/logging"
)

// Rejection reasons, recorded verbatim in audit entries and metrics.
const (
	ReasonDailyCap     = "daily-cap"
	ReasonBlocklist    = "blocklist"
	ReasonDuplicate    = "duplicate"
	ReasonSafetyLow    = "safety-score-low"
	ReasonSafetyFailed = "ai-check-error"
)

// Verdict is the outcome of vetting one candidate.
type Verdict struct {
	Allow  bool
	Reason string
	Detail string
}

func allow() Verdict { return Verdict{Allow: true} }

func reject(reason, detail string) Verdict {
	return Verdict{Allow: false, Reason: reason, Detail: detail}
}

// CapChecker reports whether a handle may still publish today.
type CapChecker interface {
	CheckDailyCap(ctx context.Context, handle string, maxPerDay int) bool
}

// Scorer rates a text for safety. Implementations return the raw score and
// a short explanation.
type Scorer interface {
	Score(ctx context.Context, text string) (int, string, error)
}

type Config struct {
	Blocklist           []string
	SimilarityThreshold float64
	MaxPostsPerDay      int
	SafetyEnabled       bool
	SafetyMinScore      int
}

type Guard struct {
	cfg    Config
	caps   CapChecker
	scorer Scorer
	logger logging.Logger
}

func NewGuard(cfg Config, caps CapChecker, scorer Scorer, logger logging.Logger) *Guard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Guard{cfg: cfg, caps: caps, scorer: scorer, logger: logger}
}

// Check vets text for handle against recent posts. Order matters: the daily
// cap and local checks run before any model call is paid for.
func (g *Guard) Check(ctx context.Context, handle, text string, recent []string) Verdict {
	if g.caps != nil && !g.caps.CheckDailyCap(ctx, handle, g.cfg.MaxPostsPerDay) {
		return reject(ReasonDailyCap, "daily post limit reached")
	}
	if term := matchBlocklist(text, g.cfg.Blocklist); term != "" {
		return reject(ReasonBlocklist, "contains blocked term "+term)
	}
	if dup := findSimilar(text, recent, g.cfg.SimilarityThreshold); dup != "" {
		return reject(ReasonDuplicate, "too similar to recent post: "+dup)
	}
	if g.cfg.SafetyEnabled {
		return g.checkSafety(ctx, handle, text)
	}
	return allow()
}

func (g *Guard) checkSafety(ctx context.Context, handle, text string) Verdict {
	if g.scorer == nil {
		return reject(ReasonSafetyFailed, "safety check enabled but no scorer configured")
	}
	score, explanation, err := g.scorer.Score(ctx, text)
	if err != nil {
		g.logger.WithFields(logging.Fields{
			"handle": handle,
			"error":  err.Error(),
		}).Warn("Safety check failed, rejecting candidate")
		return reject(ReasonSafetyFailed, err.Error())
	}
	if score < g.cfg.SafetyMinScore {
		return reject(ReasonSafetyLow, explanation)
	}
	return allow()
}

// matchBlocklist returns the first blocked term found in text, matching
// case-insensitively as a substring.
func matchBlocklist(text string, blocklist []string) string {
	lowered := strings.ToLower(text)
	for _, term := range blocklist {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			return term
		}
	}
	return ""
}

// findSimilar returns the first recent post whose word overlap with text
// meets the threshold. Very short texts are never flagged.
func findSimilar(text string, recent []string, threshold float64) string {
	if threshold <= 0 {
		threshold = 0.8
	}
	words := wordSet(text)
	if len(words) < 3 {
		return ""
	}
	for _, prev := range recent {
		if similarity(words, wordSet(prev)) >= threshold {
			return prev
		}
	}
	return ""
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// similarity is the share of the larger word set present in both texts.
func similarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for w := range a {
		if _, ok := b[w]; ok {
			overlap++
		}
	}
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	return float64(overlap) / float64(larger)
}
