// Package markdown renders recalled memories as Markdown for memctl's
// terminal output. It does not touch storage — the store itself never
// formats a memory as a document, only the CLI client does.
package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-ports/echovault/internal/model"
)

// RenderMemory produces a single "### <kind>" heading block summarizing a
// recalled memory: content, importance, tags, and source, in that order.
func RenderMemory(mem *model.Memory) string {
	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(string(mem.Kind))
	sb.WriteString("\n**Content:** ")
	sb.WriteString(mem.Content)
	sb.WriteString(fmt.Sprintf("\n**Importance:** %.2f", mem.Importance))
	if len(mem.Tags) > 0 {
		sb.WriteString("\n**Tags:** ")
		sb.WriteString(strings.Join(sortedUniq(mem.Tags), ", "))
	}
	if mem.Source != "" {
		sb.WriteString("\n**Source:** ")
		sb.WriteString(mem.Source)
	}
	if mem.Pinned {
		sb.WriteString("\n**Pinned**")
	}
	return sb.String()
}

// RenderResults joins a sequence of memories into a single Markdown
// document, one heading block per memory, blank-line separated.
func RenderResults(mems []*model.Memory) string {
	blocks := make([]string, 0, len(mems))
	for _, mem := range mems {
		blocks = append(blocks, RenderMemory(mem))
	}
	return strings.Join(blocks, "\n\n")
}

func sortedUniq(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
