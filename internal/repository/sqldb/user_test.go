package sqldb

import (
	"context"
	"errors"
	"testing"

	"github.com/albizan/shortify-backend/internal/apperror"
	"github.com/albizan/shortify-backend/internal/model"
)

// =========================================================================
// CREATE
// =========================================================================

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "dup@example.com")

	err := db.Users().Create(context.Background(), &model.User{
		Name:         "Other",
		Email:        "dup@example.com",
		PasswordHash: "hash",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
}

func TestUserCreate_EmailIsCaseSensitive(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "case@example.com")

	err := db.Users().Create(context.Background(), &model.User{
		Name:         "Upper",
		Email:        "CASE@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Create() with differently cased email error = %v", err)
	}
}

// =========================================================================
// READ
// =========================================================================

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "get@example.com")

	got, err := db.Users().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "get@example.com" || got.Name != "Tester" {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.IsActive {
		t.Error("new user should be inactive")
	}
	if got.PasswordHash != "$2a$04$hash" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().GetByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "mail@example.com")

	got, err := db.Users().GetByEmail(context.Background(), "mail@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail() id = %q, want %q", got.ID, created.ID)
	}

	if _, err := db.Users().GetByEmail(context.Background(), "MAIL@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() with other casing error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// ACTIVATE / UPDATE
// =========================================================================

func TestUserActivate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "act@example.com")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := db.Users().Activate(ctx, user.ID); err != nil {
			t.Fatalf("Activate() call %d error = %v", i+1, err)
		}
	}

	got, _ := db.Users().GetByID(ctx, user.ID)
	if !got.IsActive {
		t.Error("user should be active after Activate()")
	}
}

func TestUserActivate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Users().Activate(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Activate() error = %v, want ErrNotFound", err)
	}
}

func TestUserUpdate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "upd@example.com")
	ctx := context.Background()
	before := user.UpdatedAt

	user.PasswordHash = "new-hash"
	if err := db.Users().Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := db.Users().GetByID(ctx, user.ID)
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q, want new-hash", got.PasswordHash)
	}
	if got.UpdatedAt.Before(before) {
		t.Error("Update() moved UpdatedAt backwards")
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Users().Update(context.Background(), &model.User{ID: "ghost", Email: "g@example.com"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}
