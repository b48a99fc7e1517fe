package ui

import (
	"fmt"
	"strings"

	"github.com/bjulian5/cq/internal/model"
)

// FormatPatchFinderLine formats one patch as a single finder row,
// truncated to the terminal width.
func FormatPatchFinderLine(p *model.Patch) string {
	line := fmt.Sprintf("%s  %s (%s)", p.GerritNumber, p.Subject, p.Project)
	if width := GetTerminalWidth(); len(line) > width {
		line = line[:width-1] + "…"
	}
	return line
}

// FormatPatchPreview formats the detail pane for one patch.
func FormatPatchPreview(p *model.Patch) string {
	var b strings.Builder

	b.WriteString(Bold(p.Subject) + "\n\n")
	writeField(&b, "Change", p.GerritNumber+","+p.PatchNumber)
	writeField(&b, "Project", p.Project)
	writeField(&b, "Branch", p.TrackingBranch)
	writeField(&b, "Owner", p.OwnerEmail)
	writeField(&b, "Change-Id", p.ChangeID)
	writeField(&b, "Ref", p.Ref)
	if p.URL != "" {
		writeField(&b, "URL", p.URL)
	}
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s %s\n", Dim(name+":"), value)
}
