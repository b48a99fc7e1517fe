package model

// PatchRecord mirrors the JSON emitted by the review server's query
// command with --current-patch-set. The field names and shapes are a
// compatibility surface with deployed review servers and must not change.
type PatchRecord struct {
	Project         string      `json:"project"`
	Branch          string      `json:"branch"`
	ID              string      `json:"id"`
	Number          string      `json:"number"`
	Subject         string      `json:"subject"`
	Owner           RecordOwner `json:"owner"`
	URL             string      `json:"url"`
	Status          string      `json:"status"`
	CommitMessage   string      `json:"commitMessage"`
	CurrentPatchSet PatchSet    `json:"currentPatchSet"`
}

// RecordOwner identifies the author of a change.
type RecordOwner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PatchSet describes one uploaded revision of a change.
type PatchSet struct {
	Number   string `json:"number"`
	Ref      string `json:"ref"`
	Revision string `json:"revision"`
}
