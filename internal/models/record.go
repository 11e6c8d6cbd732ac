package models

import "time"

// HistoryType tags memory entries that describe a past command attempt.
// Entries with any other type are ignored by similarity queries.
const HistoryType = "shell_history"

// CommandRecord is one executed attempt: the intent that asked for it, the
// command that ran, and what came back. Records are append-only; a newer
// record with the same intent supersedes an older one without replacing it.
type CommandRecord struct {
	ID        int64     `json:"id,omitempty"`
	Intent    string    `json:"intent"`
	Command   string    `json:"command"`
	Output    string    `json:"output"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NewCommandRecord builds the record for an intent and the execution it produced.
func NewCommandRecord(intent, command string, result ExecutionResult) CommandRecord {
	return CommandRecord{
		Intent:    intent,
		Command:   command,
		Output:    result.Output,
		Success:   result.Succeeded,
		CreatedAt: time.Now().UTC(),
	}
}

// SimilarityMatch pairs a stored record with its distance from a query.
//
// Score is a cosine distance in [0, 2]: 0 means identical direction and
// smaller is closer. Matches are always returned in ascending Score order.
type SimilarityMatch struct {
	Record CommandRecord `json:"record"`
	Score  float64       `json:"score"`
}
