package main

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/chis/regman/internal/logging"
	"github.com/chis/regman/internal/output"
	"github.com/chis/regman/internal/render"
	"github.com/chis/regman/internal/version"
)

// errPartialDelete is returned when a bulk delete left tags behind.
var errPartialDelete = errors.New("some tags could not be deleted")

const (
	sortRegistry = "registry"
	sortVersion  = "version"
)

// errNotDeleted is returned when a delete completed without removing anything.
var errNotDeleted = errors.New("image was not deleted")

func newReposCmd(c *cli) *cobra.Command {
	var withTags bool

	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List repositories in the registry catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := c.services(cmd, true)
			if err != nil {
				return c.fail(cmd.OutOrStdout(), err)
			}
			defer cleanup()

			ctx := logging.WithCorrelationID(cmd.Context(), logging.NewCorrelationID())
			repos, err := deps.Registry.ListRepositories(ctx)
			if err != nil {
				return c.fail(cmd.OutOrStdout(), err)
			}
			if !withTags {
				return c.emit(cmd.OutOrStdout(), repos, render.Repositories(repos))
			}

			entries := make([]render.RepoTags, 0, len(repos))
			for _, repo := range repos {
				tags, err := deps.Registry.ListTags(ctx, repo)
				if err != nil {
					deps.Logger.Warn("failed to list tags", "repo", repo, "error", err)
				}
				entries = append(entries, render.RepoTags{Repository: repo, Tags: tags, Err: err})
			}
			return c.emit(cmd.OutOrStdout(), entries, render.Catalog(entries))
		},
	}

	cmd.Flags().BoolVarP(&withTags, "tags", "t", false, "Also list the tags of every repository")
	return cmd
}

func newTagsCmd(c *cli) *cobra.Command {
	var sortBy string

	cmd := &cobra.Command{
		Use:   "tags REPOSITORY",
		Short: "List tags of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := c.services(cmd, true)
			if err != nil {
				return c.fail(cmd.OutOrStdout(), err)
			}
			defer cleanup()

			ctx := logging.WithCorrelationID(cmd.Context(), logging.NewCorrelationID())
			tags, err := deps.Registry.ListTags(ctx, args[0])
			if err != nil {
				return c.fail(cmd.OutOrStdout(), err)
			}
			switch sortBy {
			case sortRegistry:
			case sortVersion:
				tags = version.SortTags(tags)
			default:
				return c.fail(cmd.OutOrStdout(), fmt.Errorf("invalid --sort %q (use %s or %s)", sortBy, sortRegistry, sortVersion))
			}
			return c.emit(cmd.OutOrStdout(), tags, render.Tags(args[0], tags))
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", sortRegistry, "Tag order: registry (as listed) or version (oldest to newest)")
	return cmd
}

func newManifestCmd(c *cli) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "manifest REPOSITORY TAG",
		Short: "Show the manifest a tag points to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := c.services(cmd, true)
			if err != nil {
				return c.fail(cmd.OutOrStdout(), err)
			}
			defer cleanup()

			ctx := logging.WithCorrelationID(cmd.Context(), logging.NewCorrelationID())
			manifest, err := deps.Registry.GetManifest(ctx, args[0], args[1])
			if err != nil {
				return c.fail(cmd.OutOrStdout(), err)
			}

			text := render.Manifest(manifest)
			if raw {
				text = string(manifest.Body)
			}
			return c.emit(cmd.OutOrStdout(), manifest, text)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the manifest body exactly as served")
	return cmd
}

// deleteResult is the --json payload of the delete command.
type deleteResult struct {
	Repository string        `json:"repository"`
	Tag        string        `json:"tag,omitempty"`
	Digest     digest.Digest `json:"digest,omitempty"`
	Deleted    bool          `json:"deleted"`
}

func newDeleteCmd(c *cli) *cobra.Command {
	var byDigest string

	cmd := &cobra.Command{
		Use:   "delete REPOSITORY [TAG]",
		Short: "Delete an image by tag, or by digest with --digest",
		Long: `Delete an image by tag: the tag is resolved to its content digest and
the manifest is deleted by that digest, which also removes every other tag
pointing at the same content. With --digest the manifest is deleted directly.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := args[0]
			out := cmd.OutOrStdout()

			if (byDigest == "") == (len(args) == 1) {
				return c.fail(out, errors.New("specify exactly one of TAG or --digest"))
			}

			deps, cleanup, err := c.services(cmd, false)
			if err != nil {
				return c.fail(out, err)
			}
			defer cleanup()

			ctx := logging.WithCorrelationID(cmd.Context(), logging.NewCorrelationID())
			result := deleteResult{Repository: repo}
			var ref string

			if byDigest != "" {
				dgst, parseErr := digest.Parse(byDigest)
				if parseErr != nil {
					return c.fail(out, fmt.Errorf("invalid digest %q: %w", byDigest, parseErr))
				}
				result.Digest, ref = dgst, dgst.String()
				result.Deleted, err = deps.Registry.DeleteByDigest(ctx, repo, dgst)
				deps.Recorder.RecordDigest(ctx, repo, dgst, result.Deleted, err)
			} else {
				result.Tag, ref = args[1], args[1]
				tagResult := deps.Registry.DeleteTag(ctx, repo, ref)
				deps.Recorder.RecordTag(ctx, repo, tagResult)
				result.Digest, result.Deleted, err = tagResult.Digest, tagResult.Deleted, tagResult.Err
			}
			if err != nil {
				return c.fail(out, err)
			}

			if emitErr := c.emit(out, result, render.Deleted(repo, ref, result.Deleted)); emitErr != nil {
				return emitErr
			}
			if !result.Deleted {
				return &reportedError{err: errNotDeleted}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&byDigest, "digest", "", "Delete by content digest (sha256:...) instead of tag")
	return cmd
}

func newDeleteAllCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-all REPOSITORY",
		Short: "Delete every tag of a repository",
		Long: `Delete every tag of a repository. Each tag is deleted independently;
a failure for one tag does not stop the others, and every outcome is
reported. The command exits non-zero if any tag could not be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := args[0]
			out := cmd.OutOrStdout()

			if !yes {
				if c.opts.json {
					return c.fail(out, errors.New("delete-all needs --yes in --json mode"))
				}
				ok, err := c.confirm(fmt.Sprintf("Delete ALL tags in %s? This cannot be undone.", repo))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			deps, cleanup, err := c.services(cmd, false)
			if err != nil {
				return c.fail(out, err)
			}
			defer cleanup()

			ctx := logging.WithCorrelationID(cmd.Context(), logging.NewCorrelationID())
			report, err := deps.Registry.DeleteAllTags(ctx, repo)
			if err != nil {
				return c.fail(out, err)
			}
			deps.Recorder.RecordReport(ctx, report)

			for _, res := range report.Failed() {
				deps.Logger.Warn("tag not deleted", "repo", repo, "tag", res.Tag, "kind", res.Kind, "error", res.Message)
			}

			if len(report.Failed()) == 0 {
				return c.emit(out, report, render.DeletionReport(report))
			}
			if c.opts.json {
				if err := output.WriteJSONErrorWithData(out, errPartialDelete, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, render.DeletionReport(report))
			}
			return &reportedError{err: errPartialDelete}
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.emit(cmd.OutOrStdout(), map[string]string{"version": output.Version}, "regman "+output.Version)
		},
	}
}
