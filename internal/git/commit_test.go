package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommitMessage(t *testing.T) {
	msg := `tacos: add cheese

Cheese makes everything better.

Change-Id: Iee5c89d929f1850d7d4e1a4ff5f21adda800025f
CQ-DEPEND: 1234
`
	commit := ParseCommitMessage("abc123", msg)

	assert.Equal(t, "abc123", commit.Hash)
	assert.Equal(t, "tacos: add cheese", commit.Title)
	assert.Equal(t, "Cheese makes everything better.", commit.Body)
	assert.Equal(t, map[string]string{
		"Change-Id": "Iee5c89d929f1850d7d4e1a4ff5f21adda800025f",
		"CQ-DEPEND": "1234",
	}, commit.Trailers)
}

func TestParseCommitMessageNoTrailers(t *testing.T) {
	commit := ParseCommitMessage("abc123", "tacos: add cheese\n\nJust a body.\n")
	assert.Equal(t, "tacos: add cheese", commit.Title)
	assert.Equal(t, "Just a body.", commit.Body)
	assert.Empty(t, commit.Trailers)
}

func TestParseCommitMessageTitleOnly(t *testing.T) {
	commit := ParseCommitMessage("abc123", "tacos: add cheese\n")
	assert.Equal(t, "tacos: add cheese", commit.Title)
	assert.Empty(t, commit.Body)
	assert.Empty(t, commit.Trailers)
}

func TestTrailer(t *testing.T) {
	msg := "fix the thing\n\nChange-Id: I0000\n"
	assert.Equal(t, "I0000", Trailer(msg, "Change-Id"))
	assert.Equal(t, "", Trailer(msg, "CQ-DEPEND"))
}
