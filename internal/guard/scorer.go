package guard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/parrotlabs/parrot/internal/llm"
)

const scorerTimeout = 30 * time.Second

const scorerSystemPrompt = `You review social media posts before publication. Rate the post from 1 to 5:
1 = harmful, offensive, or defamatory
2 = likely to cause controversy or reputational damage
3 = questionable, could be misread
4 = safe and on-brand
5 = safe, on-brand, and engaging
Reply with the single digit first, then a space, then one short sentence of reasoning.`

// LLMScorer asks a model to rate a post and parses the leading digit from
// its reply.
type LLMScorer struct {
	llm llm.Provider
}

func NewLLMScorer(provider llm.Provider) *LLMScorer {
	return &LLMScorer{llm: provider}
}

func (s *LLMScorer) Score(ctx context.Context, text string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, scorerTimeout)
	defer cancel()

	reply, err := llm.CollectText(ctx, s.llm, []llm.Message{
		{Role: "system", Content: scorerSystemPrompt},
		{Role: "user", Content: "Post to review:\n\n" + text},
	}, &llm.Options{MaxTokens: 100, Temperature: llm.Temp(0)})
	if err != nil {
		return 0, "", fmt.Errorf("safety score request: %w", err)
	}
	return parseScore(reply)
}

// parseScore extracts the first digit from the model's reply and returns the
// rest as the explanation.
func parseScore(reply string) (int, string, error) {
	reply = strings.TrimSpace(reply)
	idx := strings.IndexFunc(reply, unicode.IsDigit)
	if idx < 0 {
		return 0, "", fmt.Errorf("no score in safety reply %q", reply)
	}
	score, err := strconv.Atoi(string(reply[idx]))
	if err != nil || score < 1 || score > 5 {
		return 0, "", fmt.Errorf("score out of range in safety reply %q", reply)
	}
	explanation := strings.TrimSpace(strings.TrimLeft(reply[idx+1:], " .:-"))
	return score, explanation, nil
}
