package service

import (
	"context"
	"time"

	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/events"
	"github.com/urbanecho/civic-service/internal/repository"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

// Upvote outcomes reported to clients.
const (
	VoteAdded        = "added"
	VoteAlreadyVoted = "already_voted"
)

// VoteResult is the outcome of an upvote call.
type VoteResult struct {
	VotesCount int
	Added      bool
}

// Action renders the result for clients.
func (r VoteResult) Action() string {
	if r.Added {
		return VoteAdded
	}
	return VoteAlreadyVoted
}

// VoteService records one-shot upvotes. A repeated vote is a no-op, never a toggle.
type VoteService struct {
	problems   repository.ProblemRepository
	dispatcher events.Dispatcher
	clock      func() time.Time
}

// NewVoteService constructs the service.
func NewVoteService(problems repository.ProblemRepository, dispatcher events.Dispatcher, clock func() time.Time) *VoteService {
	return &VoteService{problems: problems, dispatcher: dispatcher, clock: nowFunc(clock)}
}

// Upvote adds actor to the problem's voters if absent.
func (s *VoteService) Upvote(ctx context.Context, actor domain.Actor, problemID string) (VoteResult, error) {
	if actor.UserID == "" {
		return VoteResult{}, apperrors.NewUnauthorized("authentication required")
	}

	votes, added, err := s.problems.AddUpvote(ctx, problemID, actor.UserID)
	if err != nil {
		return VoteResult{}, mapRepoError(err, "problem", map[string]any{"problem_id": problemID})
	}

	if added {
		publish(ctx, s.dispatcher, s.clock, events.Event{
			Type:      events.EventProblemUpvoted,
			SubjectID: problemID,
			Actor:     eventActor(actor),
			Payload:   events.ProblemUpvotedPayload{VoterID: actor.UserID, VotesCount: votes},
		})
	}
	return VoteResult{VotesCount: votes, Added: added}, nil
}
