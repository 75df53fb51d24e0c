package styleprofile

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotlabs/parrot/internal/llm"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := Default("alice")
	p.Topics = []string{"go", "databases"}
	p.AnalyzedCount = 42

	path, err := Save(dir, p)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestLoadForHandleFallsBackToDefault(t *testing.T) {
	p := LoadForHandle(t.TempDir(), "@nobody")
	assert.Equal(t, "nobody", p.Handle)
	assert.Zero(t, p.AnalyzedCount)
	assert.NotEmpty(t, p.Topics)
}

func TestPathForStripsAt(t *testing.T) {
	assert.Equal(t, "profiles/alice.json", PathFor("profiles", "@alice"))
}

type jsonProvider struct {
	reply string
}

type jsonStream struct {
	content string
	done    bool
}

func (s *jsonStream) Recv() (llm.Chunk, error) {
	if s.done {
		return llm.Chunk{}, io.EOF
	}
	s.done = true
	return llm.Chunk{Content: s.content}, nil
}

func (s *jsonStream) Close() error { return nil }

func (p *jsonProvider) Complete(ctx context.Context, messages []llm.Message, opts *llm.Options) (llm.Stream, error) {
	return &jsonStream{content: p.reply}, nil
}

type sliceCorpus struct {
	texts map[string][]string
}

func (c *sliceCorpus) FetchedTexts(ctx context.Context, handle string, limit int) ([]string, error) {
	return c.texts[handle], nil
}

const analyzerReply = "```json\n" + `{
  "topics": ["distributed systems", "go"],
  "tone": "dry, technical",
  "avg_length_words": 18,
  "length_range": [10, 30],
  "emoji_usage": "none",
  "hashtag_style": "never",
  "language_patterns": "short declaratives",
  "posting_style": "single tweets"
}` + "\n```"

func TestAnalyzeParsesFencedJSON(t *testing.T) {
	corpus := &sliceCorpus{texts: map[string][]string{
		"alice": {"post one", "post two", "post three"},
	}}
	a := NewAnalyzer(&jsonProvider{reply: analyzerReply}, corpus, nil)

	p, err := a.Analyze(context.Background(), "alice", 50)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Handle)
	assert.Equal(t, []string{"distributed systems", "go"}, p.Topics)
	assert.Equal(t, 18, p.AvgLengthWords)
	assert.Equal(t, 3, p.AnalyzedCount)
}

func TestAnalyzeEmptyArchive(t *testing.T) {
	a := NewAnalyzer(&jsonProvider{reply: analyzerReply}, &sliceCorpus{texts: map[string][]string{}}, nil)

	_, err := a.Analyze(context.Background(), "alice", 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch-tweets")
}

func TestAnalyzeCombined(t *testing.T) {
	corpus := &sliceCorpus{texts: map[string][]string{
		"alice": {"a1", "a2"},
		"bob":   {"b1"},
	}}
	a := NewAnalyzer(&jsonProvider{reply: analyzerReply}, corpus, nil)

	p, err := a.AnalyzeCombined(context.Background(), []string{"alice", "bob"}, 50)
	require.NoError(t, err)
	assert.Equal(t, "combined", p.Handle)
	assert.Equal(t, []string{"alice", "bob"}, p.SourceHandles)
	assert.Equal(t, 3, p.AnalyzedCount)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
