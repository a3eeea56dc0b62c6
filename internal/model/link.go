package model

import "time"

// LinkIDLength is the length of the public short id.
const LinkIDLength = 11

// Link is a short alias pointing at Original.
//
// ID is a random URL-safe string, unrelated to insertion order. Clicks only
// ever grows, and only through the redirect path.
type Link struct {
	ID        string      `json:"id"        db:"id"`
	Title     string      `json:"title"     db:"title"`
	Original  string      `json:"original"  db:"original"`
	Clicks    int64       `json:"clicks"    db:"clicks"`
	IsActive  bool        `json:"isActive"  db:"is_active"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	UserID    string      `json:"-"         db:"user_id"`
	User      *PublicUser `json:"user,omitempty"`
}

// LinkPatch is a partial update. Nil fields are left untouched.
type LinkPatch struct {
	Title    *string `json:"title,omitempty"`
	Original *string `json:"original,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p LinkPatch) Empty() bool {
	return p.Title == nil && p.Original == nil && p.IsActive == nil
}

// Apply merges the non-nil fields of p into l.
func (p LinkPatch) Apply(l *Link) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Original != nil {
		l.Original = *p.Original
	}
	if p.IsActive != nil {
		l.IsActive = *p.IsActive
	}
}

// Stats summarises a user's links.
type Stats struct {
	TotalLinks  int   `json:"totalLinks"`
	ActiveLinks int   `json:"activeLinks"`
	TotalClicks int64 `json:"totalClicks"`
}
