package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parrotlabs/parrot/internal/llm"
	"github.com/parrotlabs/parrot/internal/x"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
var videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".webm": true}

// Ranker picks the most relevant candidate for a post. Implementations that
// fail fall back to the first candidate.
type Ranker interface {
	Pick(ctx context.Context, text string, candidates []string) (int, error)
}

// FolderSource serves files from local directories, ranked for relevance by
// file name.
type FolderSource struct {
	imageDir string
	videoDir string
	ranker   Ranker
}

func NewFolderSource(imageDir, videoDir string, ranker Ranker) *FolderSource {
	return &FolderSource{imageDir: imageDir, videoDir: videoDir, ranker: ranker}
}

func (s *FolderSource) Name() string { return "folder" }

func (s *FolderSource) Find(ctx context.Context, handle, text string, kind Kind) (Attachment, error) {
	dir := s.imageDir
	allowed := imageExtensions
	if kind == KindVideo {
		dir = s.videoDir
		allowed = videoExtensions
	}
	if dir == "" {
		return Attachment{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Attachment{}, nil
		}
		return Attachment{}, fmt.Errorf("read media folder: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if allowed[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return Attachment{}, nil
	}
	sort.Strings(files)

	chosen := files[pickIndex(ctx, s.ranker, text, files)]
	return Attachment{Path: filepath.Join(dir, chosen)}, nil
}

// MediaSearcher is the search-and-download slice of the platform client the
// search source needs.
type MediaSearcher interface {
	SearchMedia(ctx context.Context, handle, query, mediaType string, maxCount int) ([]x.MediaResult, error)
	Download(ctx context.Context, rawURL, dir string) (string, error)
}

// SearchSource pulls recent media posted on the platform matching the post's
// key terms, asks the ranker which hit fits the post best, and downloads it.
type SearchSource struct {
	client  MediaSearcher
	ranker  Ranker
	tempDir string
}

func NewSearchSource(client MediaSearcher, ranker Ranker, tempDir string) *SearchSource {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &SearchSource{client: client, ranker: ranker, tempDir: tempDir}
}

func (s *SearchSource) Name() string { return "twitter-search" }

func (s *SearchSource) Find(ctx context.Context, handle, text string, kind Kind) (Attachment, error) {
	mediaType := "image"
	if kind == KindVideo {
		mediaType = "video"
	}
	results, err := s.client.SearchMedia(ctx, handle, searchQuery(text), mediaType, 10)
	if err != nil {
		return Attachment{}, fmt.Errorf("media search: %w", err)
	}
	if len(results) == 0 {
		return Attachment{}, nil
	}

	// Candidates are described to the ranker by the tweet they came from,
	// not by their URL.
	descriptions := make([]string, len(results))
	for i, r := range results {
		descriptions[i] = clipText(r.Text, 120)
	}
	chosen := results[pickIndex(ctx, s.ranker, text, descriptions)]

	path, err := s.client.Download(ctx, chosen.URL, s.tempDir)
	if err != nil {
		return Attachment{}, fmt.Errorf("media download: %w", err)
	}
	return Attachment{Path: path, Temp: true}, nil
}

func clipText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// searchQuery keeps the few longest words of the post as search terms.
func searchQuery(text string) string {
	words := strings.Fields(text)
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	if len(words) > 4 {
		words = words[:4]
	}
	for i, w := range words {
		words[i] = strings.Trim(w, ".,!?#@\"'")
	}
	return strings.Join(words, " ")
}

// GenerateSource creates an image for the post with an image model and
// downloads it. Only images can be generated.
type GenerateSource struct {
	generator llm.ImageGenerator
	client    *x.Client
	tempDir   string
}

func NewGenerateSource(generator llm.ImageGenerator, client *x.Client, tempDir string) *GenerateSource {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &GenerateSource{generator: generator, client: client, tempDir: tempDir}
}

func (s *GenerateSource) Name() string { return "ai-generate" }

func (s *GenerateSource) Find(ctx context.Context, handle, text string, kind Kind) (Attachment, error) {
	if kind != KindImage || s.generator == nil {
		return Attachment{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	url, err := s.generator.GenerateImage(ctx, "An image to accompany this social media post, no text overlay: "+text)
	if err != nil {
		return Attachment{}, fmt.Errorf("image generation: %w", err)
	}
	path, err := s.client.Download(ctx, url, s.tempDir)
	if err != nil {
		return Attachment{}, fmt.Errorf("generated image download: %w", err)
	}
	return Attachment{Path: path, Temp: true}, nil
}

// pickIndex asks the ranker to choose among the candidate descriptions and
// falls back to the first one on any failure or out-of-range answer.
func pickIndex(ctx context.Context, ranker Ranker, text string, candidates []string) int {
	if ranker == nil || len(candidates) <= 1 {
		return 0
	}
	idx, err := ranker.Pick(ctx, text, candidates)
	if err != nil || idx < 0 || idx >= len(candidates) {
		return 0
	}
	return idx
}

// LLMRanker asks a model which candidate best matches the post. Candidates
// are short descriptions: file names for the folder source, tweet texts for
// the search source.
type LLMRanker struct {
	llm llm.Provider
}

func NewLLMRanker(provider llm.Provider) *LLMRanker {
	return &LLMRanker{llm: provider}
}

func (r *LLMRanker) Pick(ctx context.Context, text string, candidates []string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var b strings.Builder
	b.WriteString("Pick the candidate with the most relevant media for this post. Reply with the number only.\n\nPost: ")
	b.WriteString(text)
	b.WriteString("\n\nCandidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i, c)
	}

	reply, err := llm.CollectText(ctx, r.llm, []llm.Message{
		{Role: "user", Content: b.String()},
	}, &llm.Options{MaxTokens: 10, Temperature: llm.Temp(0)})
	if err != nil {
		return 0, err
	}

	idx := -1
	if _, err := fmt.Sscanf(strings.TrimSpace(reply), "%d", &idx); err != nil {
		return 0, fmt.Errorf("unparseable ranker reply %q", reply)
	}
	return idx, nil
}
