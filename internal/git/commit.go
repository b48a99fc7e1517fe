package git

import (
	"strings"
)

// Commit represents a git commit.
type Commit struct {
	Hash     string
	Title    string
	Body     string
	Message  string
	Trailers map[string]string
}

// ParseCommitMessage parses a commit message into title, body, and
// trailers. Trailers are the Key: Value lines in the final paragraph of
// the message.
func ParseCommitMessage(hash string, message string) Commit {
	commit := Commit{
		Hash:     hash,
		Message:  message,
		Trailers: make(map[string]string),
	}

	lines := strings.Split(message, "\n")
	if len(lines) == 0 {
		return commit
	}
	commit.Title = strings.TrimSpace(lines[0])

	// Find where the trailer block starts: the last block of consecutive
	// Key: Value lines at the end of the message.
	trailerStart := len(lines)
	for i := len(lines) - 1; i >= 1; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if trailerStart < len(lines) {
				break
			}
			continue
		}
		if !isTrailerLine(line) {
			break
		}
		trailerStart = i
	}

	for i := trailerStart; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if ok {
			commit.Trailers[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	commit.Body = strings.TrimSpace(strings.Join(lines[1:trailerStart], "\n"))
	return commit
}

// isTrailerLine reports whether a line has Key: Value shape with a
// space-free key.
func isTrailerLine(line string) bool {
	key, _, ok := strings.Cut(line, ":")
	return ok && key != "" && !strings.Contains(key, " ")
}

// Trailer extracts a specific trailer from a commit message.
func Trailer(message string, key string) string {
	return ParseCommitMessage("", message).Trailers[key]
}
