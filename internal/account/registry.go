// Package account owns all per-handle mutable posting state: credentials,
// daily counters, the recent-text window, and the append-only audit log.
// Nothing else in the pipeline writes this state.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parrotlabs/parrot/internal/logging"
	"github.com/parrotlabs/parrot/internal/x"
)

const dayLayout = "2006-01-02"

// State is one handle's counter and history record. Mutated only by
// RecordPublish and the day-rollover reset inside State().
type State struct {
	PostsToday   int
	LastPostDate string
	RecentTexts  []string
}

// Archive is the durable post store the registry seeds from and writes
// publishes to.
type Archive interface {
	RecentTexts(ctx context.Context, handle string, limit int) ([]string, error)
	CountPublishedOn(ctx context.Context, handle, day string) (int, error)
	SavePublished(ctx context.Context, handle, text, platformID, day string) error
}

type Config struct {
	AccountsFile string
	DefaultCreds x.Credentials
	Archive      Archive
	AuditDir     string
	RecentWindow int
	Logger       logging.Logger
	Now          func() time.Time
}

type Registry struct {
	mu       sync.Mutex
	states   map[string]*State
	inflight map[string]*sync.Mutex

	accountsFile string
	defaultCreds x.Credentials
	archive      Archive
	auditDir     string
	window       int
	logger       logging.Logger
	now          func() time.Time
}

func NewRegistry(cfg Config) *Registry {
	window := cfg.RecentWindow
	if window <= 0 {
		window = 30
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		states:       make(map[string]*State),
		inflight:     make(map[string]*sync.Mutex),
		accountsFile: cfg.AccountsFile,
		defaultCreds: cfg.DefaultCreds,
		archive:      cfg.Archive,
		auditDir:     cfg.AuditDir,
		window:       window,
		logger:       logger,
		now:          now,
	}
}

// NormalizeHandle strips whitespace and a leading @.
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

// Credentials resolves the handle's credentials: accounts file first, then
// the default account. A missing mapping is a configuration error.
func (r *Registry) Credentials(handle string) (x.Credentials, error) {
	handle = NormalizeHandle(handle)
	accounts, err := r.loadAccounts()
	if err != nil {
		r.logger.WithError(err).Warn("Could not load accounts file; using default credentials")
	}
	if creds, ok := accounts[handle]; ok && !creds.Empty() {
		return creds, nil
	}
	if !r.defaultCreds.Empty() {
		return r.defaultCreds, nil
	}
	return x.Credentials{}, &ConfigError{Handle: handle}
}

func (r *Registry) loadAccounts() (map[string]x.Credentials, error) {
	if r.accountsFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(r.accountsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	var parsed map[string]x.Credentials
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	out := make(map[string]x.Credentials, len(parsed))
	for h, creds := range parsed {
		out[NormalizeHandle(h)] = creds
	}
	return out, nil
}

// Handles lists every handle with credentials: the accounts file entries
// sorted, with the default handle first when it has one.
func (r *Registry) Handles(defaultHandle string) []string {
	seen := make(map[string]bool)
	var handles []string
	if h := NormalizeHandle(defaultHandle); h != "" && !r.defaultCreds.Empty() {
		handles = append(handles, h)
		seen[h] = true
	}
	accounts, err := r.loadAccounts()
	if err != nil {
		r.logger.WithError(err).Warn("Could not load accounts file")
	}
	var rest []string
	for h := range accounts {
		if !seen[h] {
			rest = append(rest, h)
		}
	}
	sort.Strings(rest)
	return append(handles, rest...)
}

// AcquireHandle serializes pipeline invocations for one handle. The
// returned func releases the handle. Distinct handles proceed concurrently.
func (r *Registry) AcquireHandle(handle string) func() {
	handle = NormalizeHandle(handle)
	r.mu.Lock()
	lock, ok := r.inflight[handle]
	if !ok {
		lock = &sync.Mutex{}
		r.inflight[handle] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// State returns a copy of the handle's current state, creating a zeroed
// default on first reference and resetting the counter when the local
// calendar day has rolled over.
func (r *Registry) State(ctx context.Context, handle string) State {
	handle = NormalizeHandle(handle)
	today := r.now().Format(dayLayout)

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[handle]
	if !ok {
		st = r.seedState(ctx, handle, today)
		r.states[handle] = st
	}
	if st.LastPostDate != today {
		st.PostsToday = 0
		st.LastPostDate = today
	}
	return State{
		PostsToday:   st.PostsToday,
		LastPostDate: st.LastPostDate,
		RecentTexts:  append([]string(nil), st.RecentTexts...),
	}
}

func (r *Registry) seedState(ctx context.Context, handle, today string) *State {
	st := &State{LastPostDate: today}
	if r.archive == nil {
		return st
	}
	if count, err := r.archive.CountPublishedOn(ctx, handle, today); err == nil {
		st.PostsToday = count
	} else {
		r.logger.WithError(err).Warn("Could not seed daily count from archive")
	}
	if texts, err := r.archive.RecentTexts(ctx, handle, r.window); err == nil {
		st.RecentTexts = texts
	} else {
		r.logger.WithError(err).Warn("Could not seed recent texts from archive")
	}
	return st
}

// CheckDailyCap reports whether the handle may still publish today. Pure
// read; callers must still call RecordPublish exactly once per publish.
func (r *Registry) CheckDailyCap(ctx context.Context, handle string, maxPerDay int) bool {
	if maxPerDay <= 0 {
		return true
	}
	return r.State(ctx, handle).PostsToday < maxPerDay
}

// RecordPublish is the single mutation point for published state: it
// increments the daily counter, pushes the text into the recent window,
// archives the post, and appends the audit entry.
func (r *Registry) RecordPublish(ctx context.Context, handle string, entry AuditRecord) error {
	handle = NormalizeHandle(handle)
	today := r.now().Format(dayLayout)

	r.mu.Lock()
	st, ok := r.states[handle]
	if !ok {
		st = r.seedState(ctx, handle, today)
		r.states[handle] = st
	}
	if st.LastPostDate != today {
		st.PostsToday = 0
		st.LastPostDate = today
	}
	st.PostsToday++
	st.RecentTexts = append([]string{entry.Text}, st.RecentTexts...)
	if len(st.RecentTexts) > r.window {
		st.RecentTexts = st.RecentTexts[:r.window]
	}
	r.mu.Unlock()

	if r.archive != nil {
		if err := r.archive.SavePublished(ctx, handle, entry.Text, entry.PostID, today); err != nil {
			r.logger.WithError(err).Warn("Could not archive published post")
		}
	}
	return r.Audit(handle, entry)
}
