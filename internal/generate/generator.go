// Package generate turns a style profile and optional topic into candidate
// post text.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/parrotlabs/parrot/internal/llm"
	"github.com/parrotlabs/parrot/internal/styleprofile"
)

const (
	maxPostLength   = 280
	generateTimeout = 45 * time.Second
)

const generatorSystemPrompt = "You output only the exact post text, no quotes, no preamble, no explanation. Maximum 280 characters."

// Error wraps a failed or empty generation so the orchestrator can
// distinguish it from other invocation failures.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("generation failed: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

type Generator struct {
	llm llm.Provider
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{llm: provider}
}

// Generate produces one candidate text in the profile's style. Empty output
// from the model is an error, never a silent empty candidate.
func (g *Generator) Generate(ctx context.Context, profile styleprofile.Profile, topic string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	text, err := llm.CollectText(ctx, g.llm, []llm.Message{
		{Role: "system", Content: generatorSystemPrompt},
		{Role: "user", Content: buildPrompt(profile, topic)},
	}, &llm.Options{MaxTokens: 150, Temperature: llm.Temp(0.8)})
	if err != nil {
		return "", &Error{Err: err}
	}

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) > 1 {
		text = text[1 : len(text)-1]
	}
	if text == "" {
		return "", &Error{Err: errors.New("model returned empty text")}
	}
	if utf8.RuneCountInString(text) > maxPostLength {
		text = truncateAtWord(text, maxPostLength)
	}
	return text, nil
}

// GenerateReply produces reply text for a mention, in the profile's voice.
// Same length rules as Generate.
func (g *Generator) GenerateReply(ctx context.Context, profile styleprofile.Profile, author, mention string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "Write a short, friendly reply in the style of @%s. Tone: %s. ", profile.Handle, profile.Tone)
	b.WriteString("Do not repeat the mention back, and do not include @-mentions in the reply.\n\n")
	if author != "" {
		fmt.Fprintf(&b, "Reply to @%s who said: %s", author, mention)
	} else {
		fmt.Fprintf(&b, "Reply to this mention: %s", mention)
	}

	text, err := llm.CollectText(ctx, g.llm, []llm.Message{
		{Role: "system", Content: generatorSystemPrompt},
		{Role: "user", Content: b.String()},
	}, &llm.Options{MaxTokens: 120, Temperature: llm.Temp(0.8)})
	if err != nil {
		return "", &Error{Err: err}
	}

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) > 1 {
		text = text[1 : len(text)-1]
	}
	if text == "" {
		return "", &Error{Err: errors.New("model returned empty text")}
	}
	if utf8.RuneCountInString(text) > maxPostLength {
		text = truncateAtWord(text, maxPostLength)
	}
	return text, nil
}

func buildPrompt(profile styleprofile.Profile, topic string) string {
	var b strings.Builder

	template := profile.PromptTemplate
	if template == "" {
		fmt.Fprintf(&b, "Write a single post in the style of @%s. ", profile.Handle)
		if len(profile.Topics) > 0 {
			fmt.Fprintf(&b, "Topics often include: %s. ", strings.Join(profile.Topics, ", "))
		}
		fmt.Fprintf(&b, "Tone: %s. Length around %d words. ", profile.Tone, profile.AvgLengthWords)
		fmt.Fprintf(&b, "Emoji: %s. Hashtags: %s. Language: %s. ",
			profile.EmojiUsage, profile.HashtagStyle, profile.LanguagePatterns)
		b.WriteString("Output only the post text, no quotes or explanation.")
	} else {
		replacer := strings.NewReplacer(
			"{handle}", profile.Handle,
			"{topics}", strings.Join(profile.Topics, ", "),
			"{tone}", profile.Tone,
			"{avg_length_words}", fmt.Sprint(profile.AvgLengthWords),
			"{extra_guidance}", fmt.Sprintf("Emoji: %s. Hashtags: %s.", profile.EmojiUsage, profile.HashtagStyle),
		)
		b.WriteString(replacer.Replace(template))
	}

	b.WriteString("\n\n")
	if topic != "" {
		fmt.Fprintf(&b, "Topic or theme for this post: %s", topic)
	} else {
		b.WriteString("Choose a theme from the user's usual topics or something timely and on-brand.")
	}
	return b.String()
}

// truncateAtWord cuts s to maxLen runes, backing up to the last space when
// that does not lose more than half the text. Counting runes keeps a cut
// from landing inside a multi-byte character.
func truncateAtWord(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	truncated := runes[:maxLen]
	lastSpace := -1
	for i, r := range truncated {
		if r == ' ' {
			lastSpace = i
		}
	}
	if lastSpace > maxLen/2 {
		return string(truncated[:lastSpace])
	}
	return string(truncated)
}

// SuggestTopics returns the profile's leading topics, for CLI hints.
func SuggestTopics(profile styleprofile.Profile) []string {
	if len(profile.Topics) <= 5 {
		return profile.Topics
	}
	return profile.Topics[:5]
}
