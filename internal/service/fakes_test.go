package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/albizan/shortify-backend/internal/apperror"
	"github.com/albizan/shortify-backend/internal/auth"
	"github.com/albizan/shortify-backend/internal/model"
	"github.com/albizan/shortify-backend/internal/repository"
)

// =========================================================================
// FAKE USER REPOSITORY
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. Setting one of the
// *Err fields makes the matching method fail with a raw storage error.
type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int

	createErr error
	getErr    error
	updateErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user already exists")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFoundMsg("user not found")
}

func (f *fakeUserRepo) Activate(_ context.Context, id string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.IsActive = true
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

// =========================================================================
// FAKE LINK REPOSITORY
// =========================================================================

type fakeLinkRepo struct {
	links  map[string]*model.Link
	nextID int

	createErr    error
	getErr       error
	incrementErr error
	deleteErr    error
	listErr      error

	// lastListOpts records what ListByOwner was called with.
	lastListOpts repository.ListOptions
}

var _ repository.LinkRepository = (*fakeLinkRepo)(nil)

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: make(map[string]*model.Link)}
}

func (f *fakeLinkRepo) put(link model.Link) {
	f.links[link.ID] = &link
}

func (f *fakeLinkRepo) Create(_ context.Context, link *model.Link) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	link.ID = fmt.Sprintf("link%07d", f.nextID)
	link.Clicks = 0
	link.CreatedAt = time.Now().Add(time.Duration(f.nextID) * time.Millisecond)
	stored := *link
	f.links[link.ID] = &stored
	return nil
}

func (f *fakeLinkRepo) GetByID(_ context.Context, id string) (*model.Link, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	l, ok := f.links[id]
	if !ok {
		return nil, apperror.NotFound("link", id)
	}
	out := *l
	return &out, nil
}

func (f *fakeLinkRepo) IncrementClicks(_ context.Context, link *model.Link) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	l, ok := f.links[link.ID]
	if !ok {
		return apperror.NotFound("link", link.ID)
	}
	l.Clicks++
	link.Clicks = l.Clicks
	return nil
}

func (f *fakeLinkRepo) Delete(_ context.Context, ownerID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	l, ok := f.links[id]
	if !ok || l.UserID != ownerID {
		return apperror.NotFound("link", id)
	}
	delete(f.links, id)
	return nil
}

func (f *fakeLinkRepo) Patch(_ context.Context, ownerID, id string, patch model.LinkPatch) (*model.Link, error) {
	l, ok := f.links[id]
	if !ok || l.UserID != ownerID {
		return nil, apperror.NotFound("link", id)
	}
	patch.Apply(l)
	out := *l
	return &out, nil
}

func (f *fakeLinkRepo) ListByOwner(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Link, error) {
	f.lastListOpts = opts
	all, err := f.ListAllByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if opts.Offset >= len(all) {
		return []model.Link{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (f *fakeLinkRepo) ListAllByOwner(_ context.Context, ownerID string) ([]model.Link, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Link{}
	for _, l := range f.links {
		if l.UserID == ownerID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// =========================================================================
// FAKE NOTIFIER
// =========================================================================

type sentMail struct {
	kind  string
	email string
	url   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *fakeNotifier) SendConfirmation(_ context.Context, email, url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"confirmation", email, url})
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, email, url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"reset", email, url})
}

func (n *fakeNotifier) last() (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMail{}, false
	}
	return n.sent[len(n.sent)-1], true
}

// =========================================================================
// HELPERS
// =========================================================================

const testFrontend = "http://front.test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIssuers(t *testing.T) *auth.Issuers {
	t.Helper()
	is, err := auth.NewIssuers(
		"session-secret-at-least-16-chars", time.Hour,
		"mail-secret-at-least-16-chars!!!",
		"reset-secret-at-least-16-chars!!",
	)
	if err != nil {
		t.Fatalf("NewIssuers: %v", err)
	}
	return is
}

type authFixture struct {
	svc      *AuthService
	users    *fakeUserRepo
	notifier *fakeNotifier
	tokens   *auth.Issuers
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	ps, err := auth.NewPasswordServiceWithCost(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordServiceWithCost: %v", err)
	}
	f := &authFixture{
		users:    newFakeUserRepo(),
		notifier: &fakeNotifier{},
		tokens:   newTestIssuers(t),
	}
	f.svc = NewAuthService(f.users, f.tokens, ps, f.notifier, testFrontend+"/", discardLogger())
	return f
}
