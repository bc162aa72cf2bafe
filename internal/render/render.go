// Package render turns registry results into plain text for the CLI and TUI.
// Nothing here talks to the registry.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/opencontainers/go-digest"

	"github.com/chis/regman/internal/registry"
	"github.com/chis/regman/internal/storage"
)

// shortDigestLen is the number of hex characters shown by ShortDigest.
const shortDigestLen = 12

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// RepoTags is one catalog row for the "all repositories and tags" view.
// Err is set when that repository's tags could not be listed.
type RepoTags struct {
	Repository string   `json:"repository"`
	Tags       []string `json:"tags"`
	Err        error    `json:"-"`
}

// Repositories renders the catalog.
func Repositories(repos []string) string {
	if len(repos) == 0 {
		return "No repositories found."
	}
	var b strings.Builder
	b.WriteString("Repositories:\n")
	for _, repo := range repos {
		fmt.Fprintf(&b, "  %s\n", repo)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Tags renders the tag listing of one repository.
func Tags(repository string, tags []string) string {
	if len(tags) == 0 {
		return fmt.Sprintf("No tags in %s.", repository)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tags for %s:\n", repository)
	for _, tag := range tags {
		fmt.Fprintf(&b, "  %s\n", tag)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Catalog renders every repository with its tags. A per-repository failure
// is shown inline.
func Catalog(entries []RepoTags) string {
	if len(entries) == 0 {
		return "No repositories found."
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", e.Repository)
		switch {
		case e.Err != nil:
			fmt.Fprintf(&b, "  %s\n", Error(e.Err))
		case len(e.Tags) == 0:
			b.WriteString("  (no tags)\n")
		default:
			for _, tag := range e.Tags {
				fmt.Fprintf(&b, "  %s\n", tag)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Manifest renders a manifest header followed by the indented document.
// A body that is not valid JSON is printed as received.
func Manifest(m *registry.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Manifest for %s:%s\n", m.Repository, m.Reference)
	if m.MediaType != "" {
		fmt.Fprintf(&b, "Media type: %s\n", m.MediaType)
	}
	if m.Digest != "" {
		fmt.Fprintf(&b, "Digest:     %s\n", m.Digest)
	}
	b.WriteString("\n")
	b.WriteString(PrettyJSON(m.Body))
	return b.String()
}

// PrettyJSON indents a JSON document with two spaces.
func PrettyJSON(body []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}

// Deleted renders the outcome of a single delete.
func Deleted(repository, reference string, deleted bool) string {
	if deleted {
		return fmt.Sprintf("Image %s deleted successfully.", imageRef(repository, reference))
	}
	return fmt.Sprintf("Failed to delete image %s.", imageRef(repository, reference))
}

// DeletionReport renders a bulk delete as a summary line plus one row per tag.
func DeletionReport(r *registry.DeletionReport) string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("No tags in %s, nothing deleted.", r.Repository)
	}

	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		status := "deleted"
		detail := ""
		if !res.Deleted {
			status = res.Kind.String()
			detail = res.Message
		}
		rows = append(rows, []string{res.Tag, ShortDigest(res.Digest), status, detail})
	}

	summary := fmt.Sprintf("Deleted %d of %d tags from %s.", r.Succeeded(), len(r.Results), r.Repository)
	if failed := len(r.Failed()); failed > 0 {
		summary += fmt.Sprintf(" %d failed.", failed)
	}
	return summary + "\n" + simpleTable([]string{"TAG", "DIGEST", "STATUS", "DETAIL"}, rows)
}

// History renders deletion log entries, most recent first as given.
func History(entries []storage.DeletionEntry) string {
	if len(entries) == 0 {
		return "No deletions recorded."
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = e.ErrorKind
			if result == "" {
				result = "failed"
			}
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format(time.DateTime),
			e.Operation,
			imageRef(e.Repository, e.Tag),
			ShortDigest(digest.Digest(e.Digest)),
			result,
		})
	}
	return simpleTable([]string{"TIME", "OPERATION", "IMAGE", "DIGEST", "RESULT"}, rows)
}

// Error renders an error with its registry kind, e.g.
// "[TagNotFound] get manifest app:v9: tag not found (404)".
func Error(err error) string {
	if err == nil {
		return ""
	}
	if kind := registry.KindOf(err); kind != 0 {
		return fmt.Sprintf("[%s] %s", kind, err)
	}
	return err.Error()
}

// ShortDigest abbreviates a digest to algorithm plus the first hex characters.
func ShortDigest(d digest.Digest) string {
	if d == "" {
		return "-"
	}
	if err := d.Validate(); err != nil {
		return d.String()
	}
	hex := d.Encoded()
	if len(hex) > shortDigestLen {
		hex = hex[:shortDigestLen]
	}
	return d.Algorithm().String() + ":" + hex
}

func imageRef(repository, reference string) string {
	switch {
	case reference == "":
		return repository
	case strings.Contains(reference, ":"):
		return repository + "@" + reference
	default:
		return repository + ":" + reference
	}
}

func simpleTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		String()
}
