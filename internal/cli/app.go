// Package cli wires the application together and defines the parrot
// command tree.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/parrotlabs/parrot/internal/account"
	"github.com/parrotlabs/parrot/internal/archive"
	"github.com/parrotlabs/parrot/internal/config"
	"github.com/parrotlabs/parrot/internal/generate"
	"github.com/parrotlabs/parrot/internal/guard"
	"github.com/parrotlabs/parrot/internal/llm"
	"github.com/parrotlabs/parrot/internal/logging"
	"github.com/parrotlabs/parrot/internal/media"
	"github.com/parrotlabs/parrot/internal/poster"
	"github.com/parrotlabs/parrot/internal/styleprofile"
	"github.com/parrotlabs/parrot/internal/x"
)

// app holds everything a command needs, built once per invocation.
type app struct {
	cfg      config.Config
	logger   logging.Logger
	llm      llm.Provider
	client   *x.Client
	store    *archive.Store
	registry *account.Registry
}

func newApp() (*app, error) {
	logger := logging.NewLogger()
	config.LoadEnv(logger)

	cfg := config.Load()

	provider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		APIURL:    cfg.LLMAPIURL,
		MaxTokens: cfg.LLMMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("configure model provider: %w", err)
	}

	store, err := archive.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	registry := account.NewRegistry(account.Config{
		AccountsFile: cfg.AccountsFile,
		DefaultCreds: x.Credentials{AccessToken: cfg.XAccessToken, AccessSecret: cfg.XAccessSecret},
		Archive:      store,
		AuditDir:     cfg.AuditDir,
		RecentWindow: cfg.RecentWindow,
		Logger:       logger,
	})

	client := x.NewClient(cfg.XAPIBaseURL, cfg.XUploadBaseURL, registry)

	return &app{
		cfg:      cfg,
		logger:   logger,
		llm:      provider,
		client:   client,
		store:    store,
		registry: registry,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) newGuard() *guard.Guard {
	return guard.NewGuard(guard.Config{
		Blocklist:           a.cfg.Blocklist,
		SimilarityThreshold: a.cfg.SimilarityThreshold,
		MaxPostsPerDay:      a.cfg.MaxPostsPerDay,
		SafetyEnabled:       a.cfg.SafetyCheckEnabled,
		SafetyMinScore:      a.cfg.SafetyMinScore,
	}, a.registry, guard.NewLLMScorer(a.llm), a.logger)
}

func (a *app) newResolver() *media.Resolver {
	tempDir := filepath.Join(a.cfg.DataDir, "media-tmp")

	var generator llm.ImageGenerator
	if img, err := llm.NewOpenAIImageClient(llm.Config{
		APIKey: a.cfg.LLMAPIKey,
		Model:  a.cfg.ImageModel,
	}); err == nil {
		generator = img
	} else {
		a.logger.WithFields(logging.Fields{"error": err.Error()}).Debug("Image generation unavailable")
	}

	ranker := media.NewLLMRanker(a.llm)
	sources := []media.Source{
		media.NewFolderSource(a.cfg.ImageFolder, a.cfg.VideoFolder, ranker),
		media.NewSearchSource(a.client, ranker, tempDir),
		media.NewGenerateSource(generator, a.client, tempDir),
	}

	return media.NewResolver(media.Config{
		ImageEnabled: a.cfg.ImageEnabled,
		VideoEnabled: a.cfg.VideoEnabled,
		ImageSources: a.cfg.ImageSources,
		VideoSources: a.cfg.VideoSources,
	}, sources, a.logger)
}

func (a *app) newPoster(dryRun bool) *poster.Poster {
	var resolver poster.MediaResolver
	if a.cfg.ImageEnabled || a.cfg.VideoEnabled {
		resolver = a.newResolver()
	}
	return poster.NewPoster(poster.Config{
		ProfilesDir: a.cfg.ProfilesDir,
		MinDelay:    a.cfg.MinDelay,
		MaxDelay:    a.cfg.MaxDelay,
		DryRun:      dryRun,
	}, a.registry, generate.NewGenerator(a.llm), a.newGuard(), resolver, a.client, a.logger)
}

func (a *app) newEngager(dryRun bool) *poster.Engager {
	return poster.NewEngager(poster.Config{
		ProfilesDir: a.cfg.ProfilesDir,
		MinDelay:    a.cfg.MinDelay,
		MaxDelay:    a.cfg.MaxDelay,
		DryRun:      dryRun,
	}, a.registry, a.client, generate.NewGenerator(a.llm), a.newGuard(), a.logger)
}

func (a *app) profileFor(handle string) styleprofile.Profile {
	return styleprofile.LoadForHandle(a.cfg.ProfilesDir, handle)
}

// resolveHandles returns the handles a command should act on: the flag value
// when set, otherwise every configured handle.
func (a *app) resolveHandles(flagHandle string) ([]string, error) {
	if flagHandle != "" {
		return []string{account.NormalizeHandle(flagHandle)}, nil
	}
	handles := a.registry.Handles(a.cfg.XHandle)
	if len(handles) == 0 {
		return nil, fmt.Errorf("no handle given: pass --handle or set X_HANDLE")
	}
	return handles, nil
}
