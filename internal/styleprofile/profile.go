// Package styleprofile holds the derived writing-style descriptor that
// conditions generation. A profile is immutable once written; re-analysis
// replaces the file wholesale.
package styleprofile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Profile struct {
	Handle           string   `json:"handle"`
	Topics           []string `json:"topics"`
	Tone             string   `json:"tone"`
	AvgLengthWords   int      `json:"avg_length_words"`
	LengthRange      [2]int   `json:"length_range"`
	EmojiUsage       string   `json:"emoji_usage"`
	HashtagStyle     string   `json:"hashtag_style"`
	LanguagePatterns string   `json:"language_patterns"`
	PostingStyle     string   `json:"posting_style"`
	PromptTemplate   string   `json:"prompt_template,omitempty"`
	SourceHandles    []string `json:"source_handles,omitempty"`
	AnalyzedCount    int      `json:"analyzed_count"`
}

// Default returns a minimal profile for handles that have not been analyzed
// yet.
func Default(handle string) Profile {
	if handle == "" {
		handle = "user"
	}
	return Profile{
		Handle:           handle,
		Topics:           []string{"tech", "productivity", "ideas"},
		Tone:             "casual and friendly",
		AvgLengthWords:   25,
		LengthRange:      [2]int{15, 40},
		EmojiUsage:       "light, occasional",
		HashtagStyle:     "optional, 0-2 per tweet",
		LanguagePatterns: "conversational",
		PostingStyle:     "single tweets",
		AnalyzedCount:    0,
	}
}

// PathFor returns the per-handle profile path under dir.
func PathFor(dir, handle string) string {
	return filepath.Join(dir, strings.TrimPrefix(handle, "@")+".json")
}

// Load reads a profile file.
func Load(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read style profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("parse style profile %s: %w", path, err)
	}
	return p, nil
}

// LoadForHandle reads the handle's profile, falling back to the default
// profile when none has been analyzed yet.
func LoadForHandle(dir, handle string) Profile {
	p, err := Load(PathFor(dir, handle))
	if err != nil {
		return Default(handle)
	}
	return p
}

// Save writes the profile to its per-handle path, replacing any previous
// version.
func Save(dir string, p Profile) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create profiles dir: %w", err)
	}
	path := PathFor(dir, p.Handle)
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode style profile: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write style profile: %w", err)
	}
	return path, nil
}
