package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/events"
	"github.com/urbanecho/civic-service/internal/repository"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

// Pagination describes a page of a listing.
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	Limit   int `json:"limit"`
}

// PageRequest is a 1-based page request.
type PageRequest struct {
	Page  int
	Limit int
}

// normalize clamps the request and returns limit and offset.
func (p PageRequest) normalize(defaultLimit, maxLimit int) (page, limit, offset int) {
	page, limit = p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, (page - 1) * limit
}

func newPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Current: page, Pages: pages, Total: total, Limit: limit}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, clock func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = clock()
	}
	_ = dispatcher.Publish(ctx, event)
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{UserID: actor.UserID, Role: actor.Role}
}

func requireNGO(actor domain.Actor, action string) error {
	if actor.UserID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !actor.IsNGO() {
		return apperrors.NewForbidden("only NGO accounts can " + action)
	}
	return nil
}

// mapRepoError translates repository sentinels for resource into DomainErrors.
func mapRepoError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	default:
		return apperrors.MapError(err)
	}
}

func strPtr(s string) *string { return &s }

func nowFunc(clock func() time.Time) func() time.Time {
	if clock == nil {
		return time.Now
	}
	return clock
}
