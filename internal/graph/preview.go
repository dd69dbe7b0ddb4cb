package graph

import (
	"github.com/systemshift/weave/internal/core"
)

// buildPreview derives the listing preview from the node's current title
// and content. Called on create and whenever either changes, so the
// preview is never stale.
func buildPreview(node core.Node) core.Preview {
	p := core.Preview{
		Title:  node.Title,
		Source: node.Source,
		Date:   node.Timestamp,
	}

	p.Summary = truncate(node.Content.Text, core.PreviewSummaryLen)

	for _, ent := range node.Content.Entities {
		if ent.Name == "" {
			continue
		}
		p.Keywords = append(p.Keywords, ent.Name)
		if len(p.Keywords) == core.PreviewKeywordMax {
			break
		}
	}

	return p
}

// truncate cuts s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
