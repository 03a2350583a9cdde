package events

import (
	"time"

	"github.com/urbanecho/civic-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventProblemReported EventType = "problem_reported"
	EventProblemAssigned EventType = "problem_assigned"
	EventProblemVerified EventType = "problem_verified"
	EventProblemResolved EventType = "problem_resolved"
	EventProblemUpvoted  EventType = "problem_upvoted"
	EventRewardRedeemed  EventType = "reward_redeemed"
	EventCodeValidated   EventType = "code_validated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ProblemReportedPayload payload.
type ProblemReportedPayload struct {
	ReporterID string `json:"reporter_id"`
	Title      string `json:"title"`
	Category   string `json:"category"`
}

// ProblemAssignedPayload payload.
type ProblemAssignedPayload struct {
	StaffID string `json:"staff_id"`
}

// ProblemVerifiedPayload payload.
type ProblemVerifiedPayload struct {
	VerifiedBy        string  `json:"verified_by"`
	VerificationImage *string `json:"verification_image,omitempty"`
}

// ProblemResolvedPayload payload.
type ProblemResolvedPayload struct {
	ReporterID string `json:"reporter_id"`
	Title      string `json:"title"`
}

// ProblemUpvotedPayload payload.
type ProblemUpvotedPayload struct {
	VoterID    string `json:"voter_id"`
	VotesCount int    `json:"votes_count"`
}

// RewardRedeemedPayload payload.
type RewardRedeemedPayload struct {
	RewardID string `json:"reward_id"`
	Code     string `json:"code"`
	CoinCost int64  `json:"coin_cost"`
}

// CodeValidatedPayload payload.
type CodeValidatedPayload struct {
	RewardID string `json:"reward_id"`
	UserID   string `json:"user_id"`
	Merchant string `json:"merchant"`
}
