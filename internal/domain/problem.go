package domain

import "time"

// ProblemStatus enumerates lifecycle states for reported problems.
type ProblemStatus string

const (
	ProblemStatusPending  ProblemStatus = "pending"
	ProblemStatusAssigned ProblemStatus = "assigned"
	ProblemStatusVerified ProblemStatus = "verified"
	ProblemStatusDone     ProblemStatus = "done"
)

// Problem is the aggregate for a reported civic issue.
type Problem struct {
	ID                    string
	ReporterID            string
	Title                 string
	Description           string
	Category              string
	Location              string
	ImageURL              *string
	Status                ProblemStatus
	Upvotes               []string
	VotesCount            int
	AssignedTo            *string
	AssignedAt            *time.Time
	VerifiedBy            *string
	VerifiedAt            *time.Time
	VerificationImage     *string
	SubmittedToGovernment bool
	SubmittedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasUpvoted reports whether userID is already in the voter set.
func (p *Problem) HasUpvoted(userID string) bool {
	for _, voter := range p.Upvotes {
		if voter == userID {
			return true
		}
	}
	return false
}

// ProblemTransition describes a single forward status move and the fields it introduces.
// Nil fields are left untouched; set-once fields are never overwritten once populated.
type ProblemTransition struct {
	To                    ProblemStatus
	At                    time.Time
	AssignedTo            *string
	VerifiedBy            *string
	VerificationImage     *string
	SubmittedToGovernment bool
}
