/*
Package db holds the development server's records: users, the resource library, clearance
requests and news. Store has two implementations, an in-memory one for local runs and tests
and a Postgres one (pgx, goose migrations) used when a DSN is configured.
*/
package db

import (
	"context"
	"strings"
	"time"

	"nyscmate/internal/app/feed"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/user"
)

// User is a registered account.
type User struct {
	user.Profile
	PasswordHash string
	LastSeenAt   time.Time
}

// Clearance is a clearance request and the user who filed it.
type Clearance struct {
	portal.Clearance
	UserID int64
}

// Store is the development server's persistence.
type Store interface {
	CreateUser(ctx context.Context, u User) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
	UpdateProfile(ctx context.Context, id int64, patch user.ProfilePatch) (*User, error)
	TouchUser(ctx context.Context, id int64, at time.Time) error
	ListUsers(ctx context.Context) ([]user.Profile, error)

	// Stats counts users by role; ActiveToday counts users seen since dayStart.
	Stats(ctx context.Context, dayStart time.Time) (*portal.AdminStats, error)

	Resources(ctx context.Context) ([]portal.Resource, error)
	AddResource(ctx context.Context, r portal.Resource) (int64, error)

	CreateClearance(ctx context.Context, c Clearance) (int64, error)
	ClearancesByUser(ctx context.Context, userID int64) ([]portal.Clearance, error)
	PendingClearances(ctx context.Context) ([]portal.Clearance, error)
	ActOnClearance(ctx context.Context, id int64, status, comment string) error

	News(ctx context.Context) ([]feed.NewsItem, error)
	AddNews(ctx context.Context, n feed.NewsItem) (int64, error)

	Close()
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// seedNews and seedResources are what a fresh store starts with.
var seedNews = []feed.NewsItem{
	{Title: "2025 Batch A Online Registration Starts Soon", Date: "Just now", Type: "Mobilization"},
	{Title: "DG NYSC Warns Against Fake News", Date: "1 hour ago", Type: "Official"},
	{Title: "Senate List Updates for Foreign Students", Date: "Today", Type: "Guide"},
}

var seedResources = []portal.Resource{
	{Title: "NYSC Bye-Laws (Revised 2011)", Category: "Bye-Laws", URL: "/static/bye-laws.pdf"},
	{Title: "Camp Registration Checklist", Category: "Orientation", URL: "/static/camp-checklist.pdf"},
	{Title: "SAED Handbook 2024", Category: "Orientation", URL: "/static/saed-handbook.pdf"},
}
