package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanecho/civic-service/internal/config"
	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/repository"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

func TestReportCreditsReporter(t *testing.T) {
	env := newTestEnv(t)

	problem := env.report(t, volunteer)

	assert.Equal(t, domain.ProblemStatusPending, problem.Status)
	assert.Equal(t, 0, problem.VotesCount)
	assert.Empty(t, problem.Upvotes)
	assert.Equal(t, volunteer.UserID, problem.ReporterID)
	assert.Equal(t, int64(10), env.balance(t, volunteer.UserID))
}

func TestReportValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input ReportInput
	}{
		{"missing title", ReportInput{Category: "Roads", Location: "Elm"}},
		{"missing category", ReportInput{Title: "Pothole", Location: "Elm"}},
		{"missing location", ReportInput{Title: "Pothole", Category: "Roads", Location: "   "}},
		{"unknown category", ReportInput{Title: "Pothole", Category: "Potholes", Location: "Elm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.problems.Report(ctx, volunteer, tt.input)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}

	_, total, _ := env.store.Problems().List(ctx, repository.ProblemFilter{})
	assert.Zero(t, total)
}

func TestReportSucceedsWhenAwardFails(t *testing.T) {
	env := newTestEnv(t)
	env.awards.ledger = failingCreditor{}

	problem := env.report(t, volunteer)

	assert.Equal(t, domain.ProblemStatusPending, problem.Status)
	n, _ := env.queue.Len(context.Background())
	assert.Equal(t, int64(1), n, "failed award is queued for retry")
}

func TestFullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	problem := env.report(t, volunteer)

	assigned, err := env.problems.Assign(ctx, ngo, problem.ID, "staff-7")
	require.NoError(t, err)
	assert.Equal(t, domain.ProblemStatusAssigned, assigned.Status)
	assert.Equal(t, "staff-7", *assigned.AssignedTo)
	require.NotNil(t, assigned.AssignedAt)

	env.clock.Advance(time.Hour)
	image := "uploads/after.jpg"
	verified, err := env.problems.Verify(ctx, ngo, problem.ID, &image)
	require.NoError(t, err)
	assert.Equal(t, domain.ProblemStatusVerified, verified.Status)
	assert.Equal(t, ngo.UserID, *verified.VerifiedBy)
	assert.Equal(t, image, *verified.VerificationImage)
	assert.Equal(t, "staff-7", *verified.AssignedTo, "assignment survives later transitions")

	done, err := env.problems.Submit(ctx, ngo, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProblemStatusDone, done.Status)
	assert.True(t, done.SubmittedToGovernment)
	require.NotNil(t, done.SubmittedAt)
	assert.Equal(t, int64(50), env.balance(t, volunteer.UserID))

	_, err = env.problems.Submit(ctx, ngo, problem.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
	assert.Equal(t, int64(50), env.balance(t, volunteer.UserID), "no second resolve award")
}

func TestDoneIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	problem := env.report(t, volunteer)
	image := "img"
	_, err := env.problems.Assign(ctx, ngo, problem.ID, "staff")
	require.NoError(t, err)
	_, err = env.problems.Verify(ctx, ngo, problem.ID, &image)
	require.NoError(t, err)
	_, err = env.problems.Submit(ctx, ngo, problem.ID)
	require.NoError(t, err)

	_, err = env.problems.Assign(ctx, ngo, problem.ID, "other")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
	_, err = env.problems.Verify(ctx, ngo, problem.ID, &image)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
	_, err = env.problems.Verify(ctx, ngo, problem.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "state is checked before the photo")
	_, err = env.problems.Assign(ctx, ngo, problem.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "state is checked before the staff id")
	_, err = env.problems.Submit(ctx, ngo, problem.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	stored, err := env.problems.Get(ctx, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, "staff", *stored.AssignedTo)
}

func TestTransitionGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	problem := env.report(t, volunteer)
	image := "img"

	_, err := env.problems.Assign(ctx, volunteer, problem.ID, "staff")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = env.problems.Verify(ctx, ngo, problem.ID, &image)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "verify needs assignment")

	_, err = env.problems.Submit(ctx, ngo, problem.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	_, err = env.problems.Assign(ctx, ngo, "missing", "staff")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = env.problems.Assign(ctx, ngo, "missing", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = env.problems.Verify(ctx, ngo, "missing", nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = env.problems.Assign(ctx, ngo, problem.ID, "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "staff id required")

	_, err = env.problems.Assign(ctx, ngo, problem.ID, "staff")
	require.NoError(t, err)
	_, err = env.problems.Verify(ctx, ngo, problem.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "photo required")
}

func TestSimplifiedVariant(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Lifecycle.RequireAssignment = false
		c.Lifecycle.RequireVerificationPhoto = false
	})
	ctx := context.Background()
	problem := env.report(t, volunteer)

	verified, err := env.problems.Verify(ctx, ngo, problem.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ProblemStatusVerified, verified.Status)
	assert.Nil(t, verified.AssignedTo)
	assert.Nil(t, verified.VerificationImage)

	_, err = env.problems.Submit(ctx, ngo, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), env.balance(t, volunteer.UserID))
}

func TestListExcludesDoneUnlessAll(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Lifecycle.RequireAssignment = false })
	ctx := context.Background()

	open := env.report(t, volunteer)
	env.clock.Advance(time.Minute)
	closed := env.report(t, neighbour)
	image := "img"
	_, err := env.problems.Verify(ctx, ngo, closed.ID, &image)
	require.NoError(t, err)
	_, err = env.problems.Submit(ctx, ngo, closed.ID)
	require.NoError(t, err)

	active, page, err := env.problems.List(ctx, volunteer, ProblemListInput{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)
	assert.Equal(t, 1, page.Total)

	_, _, err = env.problems.List(ctx, volunteer, ProblemListInput{All: true})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	all, page, err := env.problems.List(ctx, ngo, ProblemListInput{All: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, closed.ID, all[0].ID, "newest first")
	assert.Equal(t, Pagination{Current: 1, Pages: 1, Total: 2, Limit: 20}, page)

	reporter := neighbour.UserID
	mine, _, err := env.problems.List(ctx, ngo, ProblemListInput{ReporterID: &reporter, All: true})
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestReportRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.RateLimit.ReportsPerDay = 2 })

	env.report(t, volunteer)
	env.report(t, volunteer)
	_, err := env.problems.Report(context.Background(), volunteer, ReportInput{Title: "t", Category: "Waste", Location: "l"})
	require.True(t, apperrors.HasCode(err, apperrors.CodeRateLimited))
	assert.Equal(t, float64(24*60*60), apperrors.ToDomainError(err).Details["retry_after"])

	env.report(t, neighbour)
	env.clock.Advance(25 * time.Hour)
	env.report(t, volunteer)
}

func TestConcurrentUpvoteCountsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	problem := env.report(t, volunteer)

	var wg sync.WaitGroup
	results := make([]VoteResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.votes.Upvote(ctx, neighbour, problem.ID)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.NotEqual(t, results[0].Added, results[1].Added, "exactly one call adds the vote")
	stored, err := env.problems.Get(ctx, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VotesCount)
	assert.Equal(t, len(stored.Upvotes), stored.VotesCount)
}

func TestUpvoteIsAddOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	problem := env.report(t, volunteer)

	first, err := env.votes.Upvote(ctx, neighbour, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{VotesCount: 1, Added: true}, first)
	assert.Equal(t, VoteAdded, first.Action())

	second, err := env.votes.Upvote(ctx, neighbour, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{VotesCount: 1, Added: false}, second)
	assert.Equal(t, VoteAlreadyVoted, second.Action())

	third, err := env.votes.Upvote(ctx, volunteer, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, third.VotesCount)

	_, err = env.votes.Upvote(ctx, neighbour, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
