package pool

import "fmt"

// Author-facing comment templates. Each takes the build log URL.
const (
	pickedUpMessage = "Your change was picked up by the commit queue and is being " +
		"tested in %s."

	couldNotApplyMessage = "The commit queue failed to apply your change in %s."

	defaultApplyErrorAdvice = "Please re-sync, rebase, and re-mark your change as " +
		"ready for the commit queue."

	couldNotVerifyMessage = "The commit queue failed to verify your change in %s. " +
		"If you believe this happened in error, just re-mark your change as ready. " +
		"It will then get automatically retried."

	couldNotSubmitMessage = "The commit queue failed to submit your change in %s. " +
		"This can happen if you submitted your change manually, or if someone else " +
		"submitted a conflicting change while yours was being tested."
)

const documentationNote = "For more details on the commit queue, see " +
	"http://www.chromium.org/developers/tree-sheriffs/sheriff-details-chromium-os/commit-queue-overview"

// formatMessage renders an author-facing comment from a template, the
// build log URL, and optional extra detail. The detail can contain
// arbitrary text from git, so it is never treated as a format string.
func formatMessage(template, buildLog string, detail ...string) string {
	msg := fmt.Sprintf(template, buildLog)
	for _, d := range detail {
		msg += " " + d
	}
	return msg + "\n\n" + documentationNote
}

// buildLogURL points authors at the waterfall page for this validation
// run.
func buildLogURL(cfg Config) string {
	return fmt.Sprintf("http://chromegw.corp.google.com/i/chromeos/builders/%s/builds/%d",
		cfg.BuilderName, cfg.BuildNumber)
}
