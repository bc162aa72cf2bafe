package storage

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"

	"github.com/chis/regman/internal/logging"
	"github.com/chis/regman/internal/registry"
)

// Recorder turns deletion outcomes into history entries.
// A Recorder with a nil Storage records nothing. Write failures are logged,
// never returned, so history can't fail a delete that already happened.
type Recorder struct {
	store    Storage
	registry string
	logger   *log.Logger
}

// NewRecorder returns a Recorder for deletions against registryURL.
func NewRecorder(store Storage, registryURL string) *Recorder {
	return &Recorder{
		store:    store,
		registry: registryURL,
		logger:   logging.Default().With("component", "history"),
	}
}

// Enabled reports whether entries are persisted.
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// RecordTag records a delete-by-tag outcome, including the digest the tag
// resolved to so the deleted content stays identifiable after the tag is gone.
func (r *Recorder) RecordTag(ctx context.Context, repository string, result registry.TagResult) {
	if !r.Enabled() {
		return
	}
	entry := r.entry(ctx, OperationDeleteTag, repository, result.Deleted, result.Err)
	entry.Tag = result.Tag
	entry.Digest = result.Digest.String()
	if entry.Digest == "" {
		entry.Digest = digestFromError(result.Err).String()
	}
	r.write(ctx, []DeletionEntry{entry})
}

// RecordDigest records a DeleteByDigest outcome.
func (r *Recorder) RecordDigest(ctx context.Context, repository string, dgst digest.Digest, deleted bool, err error) {
	if !r.Enabled() {
		return
	}
	entry := r.entry(ctx, OperationDeleteDigest, repository, deleted, err)
	entry.Digest = dgst.String()
	r.write(ctx, []DeletionEntry{entry})
}

// RecordReport records one entry per tag of a bulk delete.
func (r *Recorder) RecordReport(ctx context.Context, report *registry.DeletionReport) {
	if !r.Enabled() || report == nil || len(report.Results) == 0 {
		return
	}
	entries := make([]DeletionEntry, 0, len(report.Results))
	for _, res := range report.Results {
		entry := r.entry(ctx, OperationDeleteAll, report.Repository, res.Deleted, res.Err)
		entry.Tag = res.Tag
		entry.Digest = res.Digest.String()
		if res.Err == nil && !res.Deleted {
			entry.ErrorKind = res.Kind.String()
			entry.Error = res.Message
		}
		entries = append(entries, entry)
	}
	r.write(ctx, entries)
}

func (r *Recorder) entry(ctx context.Context, op, repository string, deleted bool, err error) DeletionEntry {
	entry := DeletionEntry{
		CorrelationID: logging.GetCorrelationID(ctx),
		Operation:     op,
		Registry:      r.registry,
		Repository:    repository,
		Success:       deleted && err == nil,
		Timestamp:     time.Now().UTC(),
	}
	if err != nil {
		if kind := registry.KindOf(err); kind != 0 {
			entry.ErrorKind = kind.String()
		}
		entry.Error = err.Error()
	}
	return entry
}

func (r *Recorder) write(ctx context.Context, entries []DeletionEntry) {
	// The action's context may already be cancelled; history still gets written.
	ctx = context.WithoutCancel(ctx)
	if err := r.store.LogDeletionBatch(ctx, entries); err != nil {
		logging.Annotate(ctx, r.logger).Warn("failed to record deletion history", "entries", len(entries), "error", err)
	}
}

// digestFromError returns the digest a failed delete targeted, if the
// failure happened after resolution.
func digestFromError(err error) digest.Digest {
	var regErr *registry.Error
	if !errors.As(err, &regErr) {
		return ""
	}
	if d, parseErr := digest.Parse(regErr.Reference); parseErr == nil {
		return d
	}
	return ""
}
