package handler_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/albizan/shortify-backend/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubAuth implements handler.AuthService with overridable funcs. Calls
// records the arguments of the last call.
type stubAuth struct {
	RegisterFn       func(name, email, password string) (*model.PublicUser, error)
	LoginFn          func(email, password string) (string, error)
	ResendFn         func(email string) error
	ChangePasswordFn func(token, p1, p2 string) (*model.PublicUser, error)
	ConfirmFn        func(token string) error
	MeFn             func(userID string) (*model.PublicUser, error)

	resetRequestedFor string
	lastArgs          []string
}

func (s *stubAuth) Register(_ context.Context, name, email, password string) (*model.PublicUser, error) {
	s.lastArgs = []string{name, email, password}
	return s.RegisterFn(name, email, password)
}

func (s *stubAuth) Login(_ context.Context, email, password string) (string, error) {
	s.lastArgs = []string{email, password}
	return s.LoginFn(email, password)
}

func (s *stubAuth) RequestPasswordReset(_ context.Context, email string) {
	s.resetRequestedFor = email
}

func (s *stubAuth) ResendConfirmation(_ context.Context, email string) error {
	s.lastArgs = []string{email}
	return s.ResendFn(email)
}

func (s *stubAuth) ChangePassword(_ context.Context, token, p1, p2 string) (*model.PublicUser, error) {
	s.lastArgs = []string{token, p1, p2}
	return s.ChangePasswordFn(token, p1, p2)
}

func (s *stubAuth) ConfirmEmail(_ context.Context, token string) error {
	s.lastArgs = []string{token}
	return s.ConfirmFn(token)
}

func (s *stubAuth) Me(_ context.Context, userID string) (*model.PublicUser, error) {
	s.lastArgs = []string{userID}
	return s.MeFn(userID)
}

// stubLinks implements handler.LinkService.
type stubLinks struct {
	ResolveFn func(id string) (string, error)
	CreateFn  func(ownerID, title, original string, isActive bool) (*model.Link, error)
	DeleteFn  func(ownerID, id string) error
	PatchFn   func(ownerID, id string, patch model.LinkPatch) (*model.Link, error)
	ListFn    func(ownerID string, page, size int) ([]model.Link, error)
	StatsFn   func(ownerID string) (*model.Stats, error)
}

func (s *stubLinks) Resolve(_ context.Context, id string) (string, error) {
	return s.ResolveFn(id)
}

func (s *stubLinks) Create(_ context.Context, ownerID, title, original string, isActive bool) (*model.Link, error) {
	return s.CreateFn(ownerID, title, original, isActive)
}

func (s *stubLinks) Delete(_ context.Context, ownerID, id string) error {
	return s.DeleteFn(ownerID, id)
}

func (s *stubLinks) Patch(_ context.Context, ownerID, id string, patch model.LinkPatch) (*model.Link, error) {
	return s.PatchFn(ownerID, id, patch)
}

func (s *stubLinks) List(_ context.Context, ownerID string, page, size int) ([]model.Link, error) {
	return s.ListFn(ownerID, page, size)
}

func (s *stubLinks) Stats(_ context.Context, ownerID string) (*model.Stats, error) {
	return s.StatsFn(ownerID)
}
