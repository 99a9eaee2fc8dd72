package domain

import "time"

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is one ledger record: the result of a single download attempt, or
// an informational note for a job that produced no qualifying candidates.
// Outcomes are append-only; nothing mutates or deletes them after creation.
type Outcome struct {
	Keyword       string
	Site          string
	Title         string
	Published     *time.Time
	AttachmentURL string
	Filename      string
	Status        Status
	Reason        string
	At            time.Time
}

func SuccessOutcome(job Job, cand Candidate, att Attachment, filename, reason string) Outcome {
	return Outcome{
		Keyword:       job.Keyword,
		Site:          job.SiteURL,
		Title:         cand.Title,
		Published:     cand.Published,
		AttachmentURL: att.URL,
		Filename:      filename,
		Status:        StatusSuccess,
		Reason:        reason,
		At:            time.Now(),
	}
}

func FailureOutcome(job Job, cand Candidate, att Attachment, reason string) Outcome {
	return Outcome{
		Keyword:       job.Keyword,
		Site:          job.SiteURL,
		Title:         cand.Title,
		Published:     cand.Published,
		AttachmentURL: att.URL,
		Status:        StatusFailure,
		Reason:        reason,
		At:            time.Now(),
	}
}

// InfoOutcome records a job-level note (zero candidates, dry-run counts).
func InfoOutcome(job Job, reason string) Outcome {
	return Outcome{
		Keyword: job.Keyword,
		Site:    job.SiteURL,
		Status:  StatusSuccess,
		Reason:  reason,
		At:      time.Now(),
	}
}
