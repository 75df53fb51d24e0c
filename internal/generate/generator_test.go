package generate

import (
	"context"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotlabs/parrot/internal/llm"
	"github.com/parrotlabs/parrot/internal/styleprofile"
)

type staticProvider struct {
	reply    string
	lastUser string
}

type staticStream struct {
	chunks []llm.Chunk
	pos    int
}

func (s *staticStream) Recv() (llm.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return llm.Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *staticStream) Close() error { return nil }

func (p *staticProvider) Complete(ctx context.Context, messages []llm.Message, opts *llm.Options) (llm.Stream, error) {
	for _, m := range messages {
		if m.Role == "user" {
			p.lastUser = m.Content
		}
	}
	return &staticStream{chunks: []llm.Chunk{{Content: p.reply}}}, nil
}

func TestGenerateStripsQuotes(t *testing.T) {
	p := &staticProvider{reply: `"gm to everyone shipping today"`}
	g := NewGenerator(p)

	text, err := g.Generate(context.Background(), styleprofile.Default("alice"), "")
	require.NoError(t, err)
	assert.Equal(t, "gm to everyone shipping today", text)
}

func TestGenerateEmptyIsError(t *testing.T) {
	g := NewGenerator(&staticProvider{reply: "   "})

	_, err := g.Generate(context.Background(), styleprofile.Default("alice"), "")
	require.Error(t, err)
	var genErr *Error
	assert.ErrorAs(t, err, &genErr)
}

func TestGenerateTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("word ", 100)
	g := NewGenerator(&staticProvider{reply: long})

	text, err := g.Generate(context.Background(), styleprofile.Default("alice"), "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), maxPostLength)
	assert.False(t, strings.HasSuffix(text, " "))
}

func TestGenerateTopicInPrompt(t *testing.T) {
	p := &staticProvider{reply: "launch day"}
	g := NewGenerator(p)

	_, err := g.Generate(context.Background(), styleprofile.Default("alice"), "the big launch")
	require.NoError(t, err)
	assert.Contains(t, p.lastUser, "the big launch")
}

func TestBuildPromptUsesTemplate(t *testing.T) {
	profile := styleprofile.Default("alice")
	profile.PromptTemplate = "Write as {handle} about {topics} in a {tone} voice."
	profile.Topics = []string{"go", "infra"}
	profile.Tone = "dry"

	prompt := buildPrompt(profile, "")
	assert.Contains(t, prompt, "Write as alice about go, infra in a dry voice.")
}

func TestTruncateAtWord(t *testing.T) {
	assert.Equal(t, "short", truncateAtWord("short", 280))

	got := truncateAtWord("alpha beta gamma delta", 16)
	assert.Equal(t, "alpha beta", got)
}

func TestGenerateTruncatesMultiByteOnRunes(t *testing.T) {
	long := strings.Repeat("héllo wörld ", 40)
	g := NewGenerator(&staticProvider{reply: long})

	text, err := g.Generate(context.Background(), styleprofile.Default("alice"), "")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(text))
	assert.LessOrEqual(t, utf8.RuneCountInString(text), maxPostLength)
}

func TestGenerateReplyIncludesMention(t *testing.T) {
	p := &staticProvider{reply: "thanks for the kind words!"}
	g := NewGenerator(p)

	text, err := g.GenerateReply(context.Background(), styleprofile.Default("alice"), "fan", "love this post")
	require.NoError(t, err)
	assert.Equal(t, "thanks for the kind words!", text)
	assert.Contains(t, p.lastUser, "@fan")
	assert.Contains(t, p.lastUser, "love this post")
}

func TestGenerateReplyEmptyIsError(t *testing.T) {
	g := NewGenerator(&staticProvider{reply: "  "})
	_, err := g.GenerateReply(context.Background(), styleprofile.Default("alice"), "fan", "hi")
	assert.Error(t, err)
}

func TestTruncateAtWordRuneBoundary(t *testing.T) {
	// No spaces, so the cut lands mid-text and must still end on a
	// complete rune.
	got := truncateAtWord(strings.Repeat("é", 300), 280)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 280, utf8.RuneCountInString(got))
}
