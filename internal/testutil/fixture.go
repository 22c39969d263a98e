package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/agent-cards/internal/store"
)

// Card ids in [Fixture], in insertion order.
const (
	CardLoginBug       int64 = 1 // Writebook, doing, Build, assigned kevin, #bug, created yesterday
	CardOnboarding     int64 = 2 // Writebook, considering, Design, assigned jz, #design, created today
	CardRefund         int64 = 3 // Help desk, considering, Inbox, unassigned, #billing, created last week
	CardReleaseNotes   int64 = 4 // Writebook, closed last week ("Done"), assigned david
	CardOldMigration   int64 = 5 // Writebook, considering, no stage, stalled
	CardSecretPlan     int64 = 6 // Secret, not visible to jz
	UserJZ             int64 = 1
	UserKevin          int64 = 2
	UserDavid          int64 = 3
	UserOutsider       int64 = 4
	StageProductDesign int64 = 2
	StageProductBuild  int64 = 3
	StageSupportInbox  int64 = 5
)

// Fixture is the seed document shared by store, command, dispatch and cli
// tests. Times are relative to [Now].
const Fixture = `{
	// people
	"users": [
		{"name": "jz", "full_name": "Jason Zimdars"},
		{"name": "kevin", "full_name": "Kevin McConnell"},
		{"name": "david", "full_name": "David Heinemeier Hansson"},
		{"name": "outsider", "full_name": "Olivia Outsider"},
	],
	"workflows": [
		{"name": "Product", "stages": ["Triage", "Design", "Build", "Ship"]},
		{"name": "Support", "stages": ["Inbox", "Waiting", "Resolved"]},
	],
	"collections": [
		{"name": "Writebook", "workflow": "Product", "members": ["jz", "kevin", "david"]},
		{"name": "Help desk", "workflow": "Support", "members": ["jz", "kevin"]},
		{"name": "Secret", "workflow": "Product", "members": ["outsider"]},
	],
	"cards": [
		{
			"title": "Fix login bug",
			"description": "Users get logged out after password reset.",
			"collection": "Writebook",
			"creator": "jz",
			"status": "doing",
			"stage": "Build",
			"assignees": ["kevin"],
			"tags": ["bug"],
			"created_at": "2026-10-20T10:00:00Z",
		},
		{
			"title": "Design onboarding",
			"collection": "Writebook",
			"creator": "kevin",
			"stage": "Design",
			"assignees": ["jz"],
			"tags": ["design"],
			"created_at": "2026-10-21T09:00:00Z",
		},
		{
			"title": "Refund request",
			"description": "Customer charged twice.",
			"collection": "Help desk",
			"creator": "jz",
			"stage": "Inbox",
			"tags": ["billing"],
			"created_at": "2026-10-14T12:00:00Z",
		},
		{
			"title": "Ship release notes",
			"collection": "Writebook",
			"creator": "david",
			"status": "closed",
			"assignees": ["david"],
			"created_at": "2026-09-01T08:00:00Z",
			"closed_at": "2026-10-15T16:00:00Z",
			"close_reason": "Done",
		},
		{
			"title": "Old migration",
			"collection": "Writebook",
			"creator": "jz",
			"created_at": "2026-07-01T08:00:00Z",
			"last_active_at": "2026-08-01T08:00:00Z",
		},
		{
			"title": "Secret plan",
			"collection": "Secret",
			"creator": "outsider",
			"created_at": "2026-10-21T08:00:00Z",
		},
	],
}`

// OpenStore opens a store in a temp dir, seeded with [Fixture] and running
// on clock (a fresh [NewClock] when nil).
func OpenStore(t *testing.T, clock *Clock) *store.Store {
	t.Helper()

	if clock == nil {
		clock = NewClock()
	}

	s, err := store.Open(t.Context(), t.TempDir(), store.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	data, err := store.ParseSeed([]byte(Fixture))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	_, err = s.Seed(t.Context(), data)
	if err != nil {
		t.Fatalf("seed fixture: %v", err)
	}

	return s
}

// Exec runs a statement straight against the store's database, for states
// no store operation produces (revoked access, deleted stages, triggers).
func Exec(t *testing.T, s *store.Store, query string, args ...any) {
	t.Helper()

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(s.Dir(), store.DBFileName)+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(t.Context(), query, args...)
	if err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
