// Package models - job.go defines the casting Job model and the listing row that pairs a job
// with its director's current trust score.
package models

import "time"

// JobStatus is the lifecycle status of a casting job.
type JobStatus string

const (
	JobStatusOpen   JobStatus = "OPEN"
	JobStatusClosed JobStatus = "CLOSED"
)

// Job is a casting call posted by a director.
type Job struct {
	ID         string     `json:"id" db:"id"`
	DirectorID string     `json:"director_id" db:"director_id"`
	Title      string     `json:"title" db:"title"`
	Location   *string    `json:"location,omitempty" db:"location"`
	Status     JobStatus  `json:"status" db:"status"`
	Deadline   *time.Time `json:"deadline,omitempty" db:"deadline"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// JobWithDirectorTrust is an open job joined with the owning director's trust score
// as read at query time.
type JobWithDirectorTrust struct {
	Job
	DirectorTrustScore int `json:"director_trust_score" db:"director_trust_score"`
}
