package config

import (
	"path/filepath"
	"time"
)

// Config stores environment configuration for the parrot agent.
type Config struct {
	// X (Twitter) API
	XAPIBaseURL       string
	XUploadBaseURL    string
	XHandle           string
	XAccessToken      string
	XAccessSecret     string
	SourceHandles     []string
	AccountsFile      string

	// LLM capability
	LLMProvider  string
	LLMModel     string
	LLMAPIKey    string
	LLMAPIURL    string
	LLMMaxTokens int

	// Content guard
	MaxPostsPerDay      int
	SafetyCheckEnabled  bool
	SafetyMinScore      int
	Blocklist           []string
	SimilarityThreshold float64
	RecentWindow        int

	// Media
	ImageEnabled bool
	VideoEnabled bool
	ImageSources []string
	VideoSources []string
	ImageFolder  string
	VideoFolder  string
	ImageModel   string

	// Posting pace
	MinDelay time.Duration
	MaxDelay time.Duration

	// Scheduler
	PostInterval   time.Duration
	IntervalJitter time.Duration
	RunImmediately bool

	// Paths
	DataDir     string
	DBPath      string
	ProfilesDir string
	AuditDir    string

	// Status server
	StatusAddr string
}

const minPostInterval = 5 * time.Minute

// Load reads the full configuration from the environment. Call LoadEnv
// first so .env files are visible.
func Load() Config {
	dataDir := GetEnv("PARROT_DATA_DIR", "data")
	cfg := Config{
		XAPIBaseURL:    GetEnv("X_API_URL", "https://api.twitter.com"),
		XUploadBaseURL: GetEnv("X_UPLOAD_URL", "https://upload.twitter.com"),
		XHandle:        normalizeHandle(GetEnv("X_HANDLE", "")),
		XAccessToken:   GetEnv("X_ACCESS_TOKEN", ""),
		XAccessSecret:  GetEnv("X_ACCESS_TOKEN_SECRET", ""),
		SourceHandles:  normalizeHandles(GetEnvList("SOURCE_HANDLES")),
		AccountsFile:   GetEnv("ACCOUNTS_FILE", "accounts.json"),

		LLMProvider:  GetEnv("LLM_PROVIDER", "anthropic"),
		LLMModel:     GetEnv("LLM_MODEL", ""),
		LLMAPIKey:    GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:    GetEnv("LLM_API_URL", ""),
		LLMMaxTokens: GetEnvInt("LLM_MAX_TOKENS", 0),

		MaxPostsPerDay:      GetEnvInt("MAX_POSTS_PER_DAY", 5),
		SafetyCheckEnabled:  GetEnvBool("ENABLE_SAFETY_CHECK", true),
		SafetyMinScore:      GetEnvInt("SAFETY_MIN_SCORE", 4),
		Blocklist:           GetEnvList("BLOCKLIST"),
		SimilarityThreshold: GetEnvFloat("SIMILARITY_THRESHOLD", 0.8),
		RecentWindow:        GetEnvInt("RECENT_WINDOW", 30),

		ImageEnabled: GetEnvBool("ENABLE_IMAGE", false),
		VideoEnabled: GetEnvBool("ENABLE_VIDEO", false),
		ImageSources: GetEnvList("IMAGE_SOURCES"),
		VideoSources: GetEnvList("VIDEO_SOURCES"),
		ImageFolder:  GetEnv("IMAGE_FOLDER_PATH", ""),
		VideoFolder:  GetEnv("VIDEO_FOLDER_PATH", ""),
		ImageModel:   GetEnv("IMAGE_MODEL", "dall-e-3"),

		MinDelay: GetEnvDuration("MIN_DELAY", 30*time.Second),
		MaxDelay: GetEnvDuration("MAX_DELAY", 2*time.Minute),

		PostInterval:   GetEnvDuration("POST_INTERVAL", 24*time.Hour),
		IntervalJitter: GetEnvDuration("POST_INTERVAL_JITTER", 10*time.Minute),
		RunImmediately: GetEnvBool("RUN_IMMEDIATELY", true),

		DataDir:     dataDir,
		DBPath:      GetEnv("DB_PATH", filepath.Join(dataDir, "posts.db")),
		ProfilesDir: GetEnv("PROFILES_DIR", filepath.Join(dataDir, "style_profiles")),
		AuditDir:    GetEnv("AUDIT_DIR", filepath.Join(dataDir, "audit")),

		StatusAddr: GetEnv("STATUS_ADDR", ""),
	}

	if cfg.PostInterval < minPostInterval {
		cfg.PostInterval = minPostInterval
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if len(cfg.ImageSources) == 0 {
		cfg.ImageSources = []string{"twitter-search", "ai-generate", "folder"}
	}
	if len(cfg.VideoSources) == 0 {
		cfg.VideoSources = []string{"twitter-search", "folder"}
	}
	return cfg
}

func normalizeHandle(h string) string {
	for len(h) > 0 && h[0] == '@' {
		h = h[1:]
	}
	return h
}

func normalizeHandles(hs []string) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		if n := normalizeHandle(h); n != "" {
			out = append(out, n)
		}
	}
	return out
}
