// Package media resolves an optional attachment for a post. Sources are
// tried in configured order and media failures never block publishing.
package media

import (
	"context"
	"os"

	"github.com/parrotlabs/parrot/internal/logging"
)

// Kind of attachment. Video outranks image when both are enabled.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Attachment is a local file ready for upload. Temp files are removed by
// Cleanup after the upload attempt.
type Attachment struct {
	Path string
	Kind Kind
	Temp bool
}

func (a *Attachment) Cleanup() {
	if a != nil && a.Temp {
		os.Remove(a.Path)
	}
}

// Source finds a local file of the given kind relevant to text. Returning
// an empty path with a nil error means the source had nothing to offer.
type Source interface {
	Name() string
	Find(ctx context.Context, handle, text string, kind Kind) (Attachment, error)
}

type Config struct {
	ImageEnabled bool
	VideoEnabled bool
	ImageSources []string
	VideoSources []string
}

// Resolver walks the configured source chains. A nil attachment result is
// normal operation, not an error.
type Resolver struct {
	cfg     Config
	sources map[string]Source
	logger  logging.Logger
}

func NewResolver(cfg Config, sources []Source, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &Resolver{cfg: cfg, sources: byName, logger: logger}
}

// Resolve returns at most one attachment for the post, trying video sources
// before image sources. Every source failure is logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, handle, text string) *Attachment {
	if r.cfg.VideoEnabled {
		if att := r.tryChain(ctx, handle, text, KindVideo, r.cfg.VideoSources); att != nil {
			return att
		}
	}
	if r.cfg.ImageEnabled {
		if att := r.tryChain(ctx, handle, text, KindImage, r.cfg.ImageSources); att != nil {
			return att
		}
	}
	return nil
}

func (r *Resolver) tryChain(ctx context.Context, handle, text string, kind Kind, chain []string) *Attachment {
	for _, name := range chain {
		source, ok := r.sources[name]
		if !ok {
			r.logger.WithFields(logging.Fields{"source": name}).Warn("Unknown media source in config, skipping")
			continue
		}
		att, err := source.Find(ctx, handle, text, kind)
		if err != nil {
			r.logger.WithFields(logging.Fields{
				"source": name,
				"kind":   string(kind),
				"error":  err.Error(),
			}).Warn("Media source failed, trying next")
			continue
		}
		if att.Path == "" {
			continue
		}
		r.logger.WithFields(logging.Fields{
			"source": name,
			"kind":   string(kind),
			"path":   att.Path,
		}).Info("Resolved media attachment")
		att.Kind = kind
		return &att
	}
	return nil
}
