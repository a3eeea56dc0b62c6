package service

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/albizan/shortify-backend/internal/apperror"
	"github.com/albizan/shortify-backend/internal/model"
	"github.com/albizan/shortify-backend/internal/repository"
)

// Paging defaults for List.
const (
	DefaultPage     = 1
	DefaultPageSize = 5
	MaxPageSize     = 100
)

// LinkService manages short links and the redirect path.
type LinkService struct {
	links  repository.LinkRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewLinkService(links repository.LinkRepository, users repository.UserRepository, logger *slog.Logger) *LinkService {
	return &LinkService{
		links:  links,
		users:  users,
		logger: logger,
	}
}

// Resolve returns the target of a short link and counts the visit.
//
// The counter is bumped before the active check, so hits on a disabled link
// are still counted. Missing and disabled links get the same NotFound.
func (s *LinkService) Resolve(ctx context.Context, id string) (string, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.NotFoundMsg("link cannot be found")
		}
		s.logger.ErrorContext(ctx, "loading link failed",
			slog.String("linkID", id),
			slog.String("error", err.Error()),
		)
		return "", apperror.Internal("cannot resolve link")
	}

	if err := s.links.IncrementClicks(ctx, link); err != nil {
		s.logger.WarnContext(ctx, "counting click failed",
			slog.String("linkID", id),
			slog.String("error", err.Error()),
		)
	}

	if !link.IsActive {
		return "", apperror.NotFoundMsg("link cannot be found")
	}
	return link.Original, nil
}

// Create stores a new link for ownerID. The result carries the owner's
// public projection.
func (s *LinkService) Create(ctx context.Context, ownerID, title, original string, isActive bool) (*model.Link, error) {
	owner, err := s.owner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	link := &model.Link{
		Title:    title,
		Original: original,
		IsActive: isActive,
		UserID:   owner.ID,
	}
	if err := s.links.Create(ctx, link); err != nil {
		s.logger.ErrorContext(ctx, "saving link failed",
			slog.String("userID", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("cannot save new link")
	}

	pub := owner.Public()
	link.User = &pub

	s.logger.InfoContext(ctx, "link created",
		slog.String("linkID", link.ID),
		slog.String("userID", ownerID),
	)
	return link, nil
}

// Delete removes one of ownerID's links. A link owned by someone else is
// reported as missing.
func (s *LinkService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owner(ctx, ownerID); err != nil {
		return err
	}

	if err := s.links.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMsg("link cannot be found")
		}
		s.logger.ErrorContext(ctx, "deleting link failed",
			slog.String("linkID", id),
			slog.String("error", err.Error()),
		)
		return apperror.Internal("cannot delete link")
	}

	s.logger.InfoContext(ctx, "link deleted", slog.String("linkID", id), slog.String("userID", ownerID))
	return nil
}

// Patch updates any subset of title, original and isActive.
func (s *LinkService) Patch(ctx context.Context, ownerID, id string, patch model.LinkPatch) (*model.Link, error) {
	link, err := s.links.Patch(ctx, ownerID, id, patch)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMsg("link cannot be found")
		}
		s.logger.ErrorContext(ctx, "patching link failed",
			slog.String("linkID", id),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("cannot patch link")
	}
	return link, nil
}

// List returns one page of ownerID's links, newest first.
func (s *LinkService) List(ctx context.Context, ownerID string, page, pageSize int) ([]model.Link, error) {
	links, err := s.links.ListByOwner(ctx, ownerID, Paginate(page, pageSize))
	if err != nil {
		s.logger.ErrorContext(ctx, "listing links failed",
			slog.String("userID", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("cannot list links")
	}
	return links, nil
}

// Stats summarises every link ownerID has.
func (s *LinkService) Stats(ctx context.Context, ownerID string) (*model.Stats, error) {
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("user not found")
		}
		s.logger.ErrorContext(ctx, "loading user for stats failed", slog.String("error", err.Error()))
		return nil, apperror.Internal("cannot compute stats")
	}

	links, err := s.links.ListAllByOwner(ctx, ownerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "loading links for stats failed", slog.String("error", err.Error()))
		return nil, apperror.Internal("cannot compute stats")
	}

	stats := FoldStats(links)
	return &stats, nil
}

// Paginate turns a 1-based page and a page size into store options.
// page < 1 becomes 1; pageSize < 1 becomes DefaultPageSize and is capped at
// MaxPageSize. Pages too far out for the offset to fit an int are pinned to
// the last representable page, which is always empty in practice.
func Paginate(page, pageSize int) repository.ListOptions {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}
	return repository.ListOptions{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
}

// FoldStats counts links, active links and total clicks.
func FoldStats(links []model.Link) model.Stats {
	var st model.Stats
	for _, l := range links {
		st.TotalLinks++
		if l.IsActive {
			st.ActiveLinks++
		}
		st.TotalClicks += l.Clicks
	}
	return st
}

func (s *LinkService) owner(ctx context.Context, ownerID string) (*model.User, error) {
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "loading link owner failed",
			slog.String("userID", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("cannot find user")
	}
	return owner, nil
}
