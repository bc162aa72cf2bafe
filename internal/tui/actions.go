package tui

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/chis/regman/internal/registry"
	"github.com/chis/regman/internal/render"
	"github.com/chis/regman/internal/storage"
)

// defaultHistoryLimit is the number of history rows shown when Services
// does not set one.
const defaultHistoryLimit = 20

// Services are the dependencies menu actions call into.
type Services struct {
	Client registry.Client
	// Endpoint is shown in the menu header.
	Endpoint string
	// History is nil when deletion history is disabled.
	History      storage.Storage
	Recorder     *storage.Recorder
	HistoryLimit int
}

// ActionCompleteMsg is sent when a menu action finishes
type ActionCompleteMsg struct {
	Title string
	Body  string
	Err   error
	// Partial marks a result that succeeded overall but contains failures,
	// e.g. a bulk delete where some tags were not removed.
	Partial bool
}

// menuAction is one numbered entry of the main menu.
type menuAction struct {
	key     string
	label   string
	prompts []string
	// confirm returns the y/N question asked before run, if any.
	confirm func(inputs []string) string
	run     func(ctx context.Context, s Services, inputs []string) ActionCompleteMsg
}

const quitKey = "7"

var menuActions = []menuAction{
	{
		key:   "1",
		label: "List all repositories and tags",
		run:   listAll,
	},
	{
		key:     "2",
		label:   "List tags for a specific repository",
		prompts: []string{"Repository"},
		run:     listTags,
	},
	{
		key:     "3",
		label:   "Get manifest for an image",
		prompts: []string{"Repository", "Tag"},
		run:     showManifest,
	},
	{
		key:     "4",
		label:   "Delete an image",
		prompts: []string{"Repository", "Tag or digest"},
		run:     deleteImage,
	},
	{
		key:     "5",
		label:   "Delete all images in a repository",
		prompts: []string{"Repository"},
		confirm: func(inputs []string) string {
			return fmt.Sprintf("Delete ALL tags in %s? This cannot be undone.", inputs[0])
		},
		run: deleteAll,
	},
	{
		key:   "6",
		label: "Show deletion history",
		run:   showHistory,
	},
}

func findAction(key string) *menuAction {
	for i := range menuActions {
		if menuActions[i].key == key {
			return &menuActions[i]
		}
	}
	return nil
}

// listAll lists the catalog, then the tags of each repository. A tag
// listing failure is shown inline for that repository only.
func listAll(ctx context.Context, s Services, _ []string) ActionCompleteMsg {
	const title = "Repositories and tags"

	repos, err := s.Client.ListRepositories(ctx)
	if err != nil {
		return ActionCompleteMsg{Title: title, Err: err}
	}

	entries := make([]render.RepoTags, 0, len(repos))
	partial := false
	for _, repo := range repos {
		tags, err := s.Client.ListTags(ctx, repo)
		if err != nil {
			partial = true
		}
		entries = append(entries, render.RepoTags{Repository: repo, Tags: tags, Err: err})
	}
	return ActionCompleteMsg{Title: title, Body: render.Catalog(entries), Partial: partial}
}

func listTags(ctx context.Context, s Services, inputs []string) ActionCompleteMsg {
	repo := inputs[0]
	title := fmt.Sprintf("Tags for %s", repo)

	tags, err := s.Client.ListTags(ctx, repo)
	if err != nil {
		return ActionCompleteMsg{Title: title, Err: err}
	}
	return ActionCompleteMsg{Title: title, Body: render.Tags(repo, tags)}
}

func showManifest(ctx context.Context, s Services, inputs []string) ActionCompleteMsg {
	repo, tag := inputs[0], inputs[1]
	title := fmt.Sprintf("Manifest for %s:%s", repo, tag)

	manifest, err := s.Client.GetManifest(ctx, repo, tag)
	if err != nil {
		return ActionCompleteMsg{Title: title, Err: err}
	}
	return ActionCompleteMsg{Title: title, Body: render.Manifest(manifest)}
}

// deleteImage deletes by digest when the reference parses as one, by tag otherwise.
func deleteImage(ctx context.Context, s Services, inputs []string) ActionCompleteMsg {
	repo, ref := inputs[0], inputs[1]
	title := "Delete image"

	if dgst, err := digest.Parse(ref); err == nil {
		deleted, err := s.Client.DeleteByDigest(ctx, repo, dgst)
		s.Recorder.RecordDigest(ctx, repo, dgst, deleted, err)
		if err != nil {
			return ActionCompleteMsg{Title: title, Err: err}
		}
		return ActionCompleteMsg{Title: title, Body: render.Deleted(repo, dgst.String(), deleted), Partial: !deleted}
	}

	result := s.Client.DeleteTag(ctx, repo, ref)
	s.Recorder.RecordTag(ctx, repo, result)
	if result.Err != nil {
		return ActionCompleteMsg{Title: title, Err: result.Err}
	}
	return ActionCompleteMsg{Title: title, Body: render.Deleted(repo, ref, result.Deleted), Partial: !result.Deleted}
}

func deleteAll(ctx context.Context, s Services, inputs []string) ActionCompleteMsg {
	repo := inputs[0]
	title := fmt.Sprintf("Delete all images in %s", repo)

	report, err := s.Client.DeleteAllTags(ctx, repo)
	if err != nil {
		return ActionCompleteMsg{Title: title, Err: err}
	}
	s.Recorder.RecordReport(ctx, report)
	return ActionCompleteMsg{
		Title:   title,
		Body:    render.DeletionReport(report),
		Partial: len(report.Failed()) > 0,
	}
}

func showHistory(ctx context.Context, s Services, _ []string) ActionCompleteMsg {
	const title = "Deletion history"

	if s.History == nil {
		return ActionCompleteMsg{Title: title, Body: "Deletion history is disabled."}
	}
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := s.History.GetAllDeletionLog(ctx, limit)
	if err != nil {
		return ActionCompleteMsg{Title: title, Err: fmt.Errorf("failed to read history: %w", err)}
	}
	return ActionCompleteMsg{Title: title, Body: render.History(entries)}
}
