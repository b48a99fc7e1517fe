package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/bjulian5/cq/internal/model"
)

func init() {
	// Force lipgloss to initialize and detect terminal before fuzzy finder starts
	// This prevents ANSI escape sequences from leaking into the finder input
	_ = lipgloss.NewStyle().Render("")
	// Ensure color profile is detected early
	_ = lipgloss.HasDarkBackground()
}

// SelectPatch presents a fuzzy finder to select one of the candidate
// patches. Returns the selected patch, or nil if the user cancelled the
// selection.
func SelectPatch(patches []*model.Patch) (*model.Patch, error) {
	// Flush stdout/stderr before starting fuzzy finder to clear any ANSI sequences
	os.Stdout.Sync()
	os.Stderr.Sync()

	idx, err := fuzzyfinder.Find(
		patches,
		func(i int) string {
			return FormatPatchFinderLine(patches[i])
		},
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			return FormatPatchPreview(patches[i])
		}),
	)

	if err != nil {
		// User cancelled (Ctrl+C or ESC)
		return nil, nil
	}

	return patches[idx], nil
}
