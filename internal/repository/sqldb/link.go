package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	nanoid "github.com/jaevor/go-nanoid"

	"github.com/albizan/shortify-backend/internal/apperror"
	"github.com/albizan/shortify-backend/internal/model"
	"github.com/albizan/shortify-backend/internal/repository"
)

var _ repository.LinkRepository = (*LinkStore)(nil)

const (
	// DefaultListLimit applies when ListByOwner gets a non-positive limit.
	DefaultListLimit = 5
	// MaxListLimit caps a single page.
	MaxListLimit = 100

	// createAttempts bounds retries when a freshly generated id collides.
	createAttempts = 3
)

const linkColumns = `id, title, original, clicks, is_active, created_at, user_id`

// LinkStore persists short links in the links table.
type LinkStore struct {
	db    *DB
	newID func() string
}

func newLinkStore(db *DB) (*LinkStore, error) {
	gen, err := nanoid.Standard(model.LinkIDLength)
	if err != nil {
		return nil, fmt.Errorf("sqldb: building link id generator: %w", err)
	}
	return &LinkStore{db: db, newID: gen}, nil
}

// Create inserts link with a fresh random id, zero clicks and the current
// time. link.UserID must reference an existing user.
func (s *LinkStore) Create(ctx context.Context, link *model.Link) error {
	link.Clicks = 0
	link.CreatedAt = time.Now().UTC()

	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		link.ID = s.newID()
		_, err = s.db.exec(ctx,
			`INSERT INTO links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			link.ID,
			link.Title,
			link.Original,
			link.Clicks,
			link.IsActive,
			link.CreatedAt,
			link.UserID,
		)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			break
		}
	}
	link.ID = ""
	return fmt.Errorf("sqldb: creating link: %w", err)
}

func (s *LinkStore) GetByID(ctx context.Context, id string) (*model.Link, error) {
	row := s.db.queryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("link", id)
		}
		return nil, fmt.Errorf("sqldb: getting link %s: %w", id, err)
	}
	return link, nil
}

// IncrementClicks adds one to the stored counter in a single UPDATE, so
// concurrent redirects never lose a click. link.Clicks is bumped to match.
func (s *LinkStore) IncrementClicks(ctx context.Context, link *model.Link) error {
	res, err := s.db.exec(ctx, `UPDATE links SET clicks = clicks + 1 WHERE id = ?`, link.ID)
	if err != nil {
		return fmt.Errorf("sqldb: incrementing clicks for %s: %w", link.ID, err)
	}
	if err := expectOneRow(res, "link", link.ID); err != nil {
		return err
	}
	link.Clicks++
	return nil
}

// Delete removes the link only if ownerID owns it. A link owned by someone
// else is indistinguishable from a missing one.
func (s *LinkStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.exec(ctx, `DELETE FROM links WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqldb: deleting link %s: %w", id, err)
	}
	return expectOneRow(res, "link", id)
}

// Patch applies the non-nil fields of patch to a link owned by ownerID and
// returns the merged link. An empty patch only checks ownership.
func (s *LinkStore) Patch(ctx context.Context, ownerID, id string, patch model.LinkPatch) (*model.Link, error) {
	link, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.UserID != ownerID {
		return nil, apperror.NotFound("link", id)
	}
	if patch.Empty() {
		return link, nil
	}

	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Original != nil {
		sets = append(sets, "original = ?")
		args = append(args, *patch.Original)
	}
	if patch.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *patch.IsActive)
	}

	args = append(args, id, ownerID)
	res, err := s.db.exec(ctx,
		`UPDATE links SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: patching link %s: %w", id, err)
	}
	if err := expectOneRow(res, "link", id); err != nil {
		return nil, err
	}

	patch.Apply(link)
	return link, nil
}

// ListByOwner returns one page of ownerID's links, newest first.
func (s *LinkStore) ListByOwner(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Link, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	return s.list(ctx,
		`SELECT `+linkColumns+` FROM links WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		ownerID, opts.Limit, opts.Offset,
	)
}

// ListAllByOwner returns every link of ownerID, newest first. Used for stats.
func (s *LinkStore) ListAllByOwner(ctx context.Context, ownerID string) ([]model.Link, error) {
	return s.list(ctx,
		`SELECT `+linkColumns+` FROM links WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
}

func (s *LinkStore) list(ctx context.Context, query string, args ...any) ([]model.Link, error) {
	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing links: %w", err)
	}
	defer rows.Close()

	links := []model.Link{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("sqldb: scanning link row: %w", err)
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating link rows: %w", err)
	}
	return links, nil
}

func scanLink(row rowScanner) (*model.Link, error) {
	var l model.Link
	err := row.Scan(
		&l.ID,
		&l.Title,
		&l.Original,
		&l.Clicks,
		&l.IsActive,
		&l.CreatedAt,
		&l.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
