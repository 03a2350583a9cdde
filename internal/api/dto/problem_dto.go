package dto

import (
	"time"

	"github.com/urbanecho/civic-service/internal/domain"
)

// CreateProblemRequest payload.
type CreateProblemRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
	Image       *string `json:"image"`
}

// AssignProblemRequest payload.
type AssignProblemRequest struct {
	StaffID string `json:"staffId"`
}

// VerifyProblemRequest payload.
type VerifyProblemRequest struct {
	VerificationImage *string `json:"verificationImage"`
}

// ProblemResponse represents a problem.
type ProblemResponse struct {
	ID                    string               `json:"id"`
	ReporterID            string               `json:"reporterId"`
	Title                 string               `json:"title"`
	Description           string               `json:"description"`
	Category              string               `json:"category"`
	Location              string               `json:"location"`
	Image                 *string              `json:"image"`
	Status                domain.ProblemStatus `json:"status"`
	Upvotes               []string             `json:"upvotes"`
	VotesCount            int                  `json:"votesCount"`
	AssignedTo            *string              `json:"assignedTo"`
	AssignedAt            *time.Time           `json:"assignedAt"`
	VerifiedBy            *string              `json:"verifiedBy"`
	VerifiedAt            *time.Time           `json:"verifiedAt"`
	VerificationImage     *string              `json:"verificationImage"`
	SubmittedToGovernment bool                 `json:"submittedToGovernment"`
	SubmittedAt           *time.Time           `json:"submittedAt"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
}

// UpvoteResponse reports the vote outcome.
type UpvoteResponse struct {
	VotesCount int    `json:"votesCount"`
	Action     string `json:"action"`
}
