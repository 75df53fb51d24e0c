package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaps struct {
	allowed bool
	calls   int
}

func (f *fakeCaps) CheckDailyCap(ctx context.Context, handle string, maxPerDay int) bool {
	f.calls++
	return f.allowed
}

type fakeScorer struct {
	score int
	why   string
	err   error
	calls int
}

func (f *fakeScorer) Score(ctx context.Context, text string) (int, string, error) {
	f.calls++
	return f.score, f.why, f.err
}

func baseConfig() Config {
	return Config{
		Blocklist:           []string{"giveaway", "not financial advice"},
		SimilarityThreshold: 0.8,
		MaxPostsPerDay:      5,
		SafetyEnabled:       true,
		SafetyMinScore:      4,
	}
}

func TestCheckDailyCapFirst(t *testing.T) {
	caps := &fakeCaps{allowed: false}
	scorer := &fakeScorer{score: 5}
	g := NewGuard(baseConfig(), caps, scorer, nil)

	v := g.Check(context.Background(), "alice", "GIVEAWAY time", nil)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonDailyCap, v.Reason)
	assert.Zero(t, scorer.calls, "cap rejection must not reach the scorer")
}

func TestCheckBlocklistCaseInsensitive(t *testing.T) {
	g := NewGuard(baseConfig(), &fakeCaps{allowed: true}, &fakeScorer{score: 5}, nil)

	v := g.Check(context.Background(), "alice", "Huge GiveAway starting now", nil)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonBlocklist, v.Reason)
}

func TestCheckDuplicate(t *testing.T) {
	g := NewGuard(baseConfig(), &fakeCaps{allowed: true}, &fakeScorer{score: 5}, nil)
	recent := []string{"shipping the new release today, stay tuned"}

	v := g.Check(context.Background(), "alice", "Shipping the new release today, stay tuned!", recent)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonDuplicate, v.Reason)
}

func TestCheckShortTextNeverDuplicate(t *testing.T) {
	g := NewGuard(baseConfig(), &fakeCaps{allowed: true}, &fakeScorer{score: 5}, nil)

	v := g.Check(context.Background(), "alice", "gm gm", []string{"gm gm"})
	assert.True(t, v.Allow)
}

func TestCheckSafetyScoreBelowMin(t *testing.T) {
	scorer := &fakeScorer{score: 3, why: "could be misread"}
	g := NewGuard(baseConfig(), &fakeCaps{allowed: true}, scorer, nil)

	v := g.Check(context.Background(), "alice", "a perfectly ordinary update about the roadmap", nil)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonSafetyLow, v.Reason)
	assert.Equal(t, "could be misread", v.Detail)
}

func TestCheckSafetyFailsClosed(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("model unavailable")}
	g := NewGuard(baseConfig(), &fakeCaps{allowed: true}, scorer, nil)

	v := g.Check(context.Background(), "alice", "a perfectly ordinary update about the roadmap", nil)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonSafetyFailed, v.Reason)
}

func TestCheckSafetyDisabledSkipsScorer(t *testing.T) {
	cfg := baseConfig()
	cfg.SafetyEnabled = false
	scorer := &fakeScorer{err: errors.New("should not be called")}
	g := NewGuard(cfg, &fakeCaps{allowed: true}, scorer, nil)

	v := g.Check(context.Background(), "alice", "a perfectly ordinary update about the roadmap", nil)
	assert.True(t, v.Allow)
	assert.Zero(t, scorer.calls)
}

func TestCheckAllows(t *testing.T) {
	g := NewGuard(baseConfig(), &fakeCaps{allowed: true}, &fakeScorer{score: 4}, nil)

	v := g.Check(context.Background(), "alice", "a perfectly ordinary update about the roadmap", nil)
	assert.True(t, v.Allow)
	assert.Empty(t, v.Reason)
}

func TestSimilarity(t *testing.T) {
	a := wordSet("the quick brown fox jumps")
	b := wordSet("the quick brown fox sleeps")
	assert.InDelta(t, 0.8, similarity(a, b), 0.001)

	assert.Zero(t, similarity(wordSet(""), b))
}

func TestParseScore(t *testing.T) {
	score, why, err := parseScore("4 safe and on-brand")
	require.NoError(t, err)
	assert.Equal(t, 4, score)
	assert.Equal(t, "safe and on-brand", why)

	score, _, err = parseScore("Score: 2. Too spicy.")
	require.NoError(t, err)
	assert.Equal(t, 2, score)

	_, _, err = parseScore("looks fine to me")
	require.Error(t, err)

	_, _, err = parseScore("0 broken")
	require.Error(t, err)
}
