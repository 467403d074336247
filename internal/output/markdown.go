package output

import (
	"strings"

	"github.com/namelens/relay/internal/core"
)

// MarkdownFormatter renders results as markdown tables, for pasting into
// issues and runbooks.
type MarkdownFormatter struct{}

// FormatResponse renders the response metadata and a fenced body.
func (f *MarkdownFormatter) FormatResponse(resp *core.Response) (string, error) {
	if resp == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(responseTable(resp).RenderMarkdown())

	body, err := responseBody(resp)
	if err != nil {
		return "", err
	}
	if body != "" {
		lang := ""
		if resp.JSON {
			lang = "json"
		}
		sb.WriteString("\n\n```" + lang + "\n")
		sb.WriteString(body)
		sb.WriteString("\n```\n")
	}
	return sb.String(), nil
}

// FormatSnapshot renders the gate snapshot as Markdown.
func (f *MarkdownFormatter) FormatSnapshot(snapshot core.GateSnapshot) (string, error) {
	return "## Buckets\n\n" + snapshotTable(snapshot).RenderMarkdown(), nil
}

// FormatBatch renders a batch result as Markdown.
func (f *MarkdownFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return "## Batch\n\n" + batchTable(result).RenderMarkdown(), nil
}
