package styleprofile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parrotlabs/parrot/internal/llm"
	"github.com/parrotlabs/parrot/internal/logging"
)

const analyzeTimeout = 90 * time.Second

const analyzerSystemPrompt = `You are an expert at analyzing writing style from a corpus of short posts.
Given a list of posts, extract and summarize:
1. Common topics and themes.
2. Tone (humorous, professional, casual, sarcastic, enthusiastic, ...).
3. Typical length in words (average and range).
4. Emoji usage (frequency, which emojis appear often).
5. Hashtag usage (frequency and style).
6. Language patterns (sentence structure, questions vs statements, slang, punctuation).
7. Posting style (call-to-actions, links, threads vs single posts).

Respond with valid JSON only, no markdown or extra text, using exactly these keys:
{"topics": ["..."], "tone": "...", "avg_length_words": 0, "length_range": [0, 0],
"emoji_usage": "...", "hashtag_style": "...", "language_patterns": "...", "posting_style": "..."}`

// Corpus supplies archived post texts for analysis.
type Corpus interface {
	FetchedTexts(ctx context.Context, handle string, limit int) ([]string, error)
}

type Analyzer struct {
	llm    llm.Provider
	corpus Corpus
	logger logging.Logger
}

func NewAnalyzer(provider llm.Provider, corpus Corpus, logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{llm: provider, corpus: corpus, logger: logger}
}

// Analyze builds a style profile for one handle from its archived posts.
func (a *Analyzer) Analyze(ctx context.Context, handle string, maxPosts int) (Profile, error) {
	if maxPosts <= 0 {
		maxPosts = 200
	}
	texts, err := a.corpus.FetchedTexts(ctx, handle, maxPosts*2)
	if err != nil {
		return Profile{}, fmt.Errorf("load corpus: %w", err)
	}
	if len(texts) == 0 {
		return Profile{}, errors.New("no posts in archive for handle; run fetch-tweets first")
	}

	sample := sampleForAnalysis(texts, maxPosts, 45000)
	userPrompt := fmt.Sprintf("Analyze the following posts from user @%s and extract the style profile.\n\nPosts:\n%s", handle, sample)

	profile, err := a.complete(ctx, userPrompt)
	if err != nil {
		return Profile{}, err
	}
	profile.Handle = strings.TrimPrefix(handle, "@")
	profile.AnalyzedCount = len(texts)
	return profile, nil
}

// AnalyzeCombined blends several handles' corpora into one profile, for
// accounts that learn from many sources and post as one.
func (a *Analyzer) AnalyzeCombined(ctx context.Context, handles []string, maxPerHandle int) (Profile, error) {
	if len(handles) == 0 {
		return Profile{}, errors.New("combined analysis needs at least one source handle")
	}
	if maxPerHandle <= 0 {
		maxPerHandle = 200
	}

	var combined []string
	clean := make([]string, 0, len(handles))
	for _, h := range handles {
		h = strings.TrimPrefix(strings.TrimSpace(h), "@")
		if h == "" {
			continue
		}
		clean = append(clean, h)
		texts, err := a.corpus.FetchedTexts(ctx, h, maxPerHandle*2)
		if err != nil {
			a.logger.WithError(err).WithField("handle", h).Warn("Skipping handle in combined analysis")
			continue
		}
		combined = append(combined, texts...)
	}
	if len(combined) == 0 {
		return Profile{}, errors.New("no posts in archive for any source handle; run fetch-tweets first")
	}

	sample := sampleForAnalysis(combined, 500, 50000)
	userPrompt := fmt.Sprintf(
		"Analyze the following posts from multiple users (combined: @%s) and extract a single blended style profile capturing common themes, tone, length, and patterns.\n\nPosts:\n%s",
		strings.Join(clean, ", @"), sample)

	profile, err := a.complete(ctx, userPrompt)
	if err != nil {
		return Profile{}, err
	}
	profile.Handle = "combined"
	profile.SourceHandles = clean
	profile.AnalyzedCount = len(combined)
	return profile, nil
}

func (a *Analyzer) complete(ctx context.Context, userPrompt string) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	text, err := llm.CollectText(ctx, a.llm, []llm.Message{
		{Role: "system", Content: analyzerSystemPrompt},
		{Role: "user", Content: userPrompt},
	}, &llm.Options{MaxTokens: 2000, Temperature: llm.Temp(0.3)})
	if err != nil {
		return Profile{}, fmt.Errorf("analyze style: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal([]byte(stripFences(text)), &profile); err != nil {
		return Profile{}, fmt.Errorf("parse style analysis: %w", err)
	}
	return profile, nil
}

// sampleForAnalysis joins post texts up to the given count and character
// budget so the prompt stays inside token limits.
func sampleForAnalysis(texts []string, maxPosts, maxChars int) string {
	var b strings.Builder
	count := 0
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(t) > 280 {
			t = t[:280]
		}
		if b.Len()+len(t)+1 > maxChars || count >= maxPosts {
			break
		}
		b.WriteString(t)
		b.WriteByte('\n')
		count++
	}
	if b.Len() == 0 {
		return "No posts available."
	}
	return b.String()
}

// stripFences removes a markdown code fence the model may wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
