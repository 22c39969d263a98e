package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/calvinalkan/agent-cards/internal/filter"
)

// Card workflow states.
const (
	StatusConsidering = "considering"
	StatusDoing       = "doing"
	StatusClosed      = "closed"
)

// StalledAfter is how long an open card may go without activity before it
// counts as stalled.
const StalledAfter = 30 * 24 * time.Hour

// User is a person who can see collections and act on cards.
type User struct {
	ID       int64
	Name     string // Name is the unique handle used in requests ("jz").
	FullName string
}

// FirstName returns the first word of FullName, falling back to Name.
func (u User) FirstName() string {
	first, _, _ := strings.Cut(strings.TrimSpace(u.FullName), " ")
	if first == "" {
		return u.Name
	}

	return first
}

// Stage is one step of a workflow.
type Stage struct {
	ID         int64
	WorkflowID int64
	Name       string
	Position   int
}

// Card is the store's view of a card, with its collection's workflow
// denormalized so callers can check stage compatibility without extra reads.
type Card struct {
	ID             int64
	Title          string
	Description    string
	Status         string
	CollectionID   int64
	CollectionName string
	WorkflowID     int64 // WorkflowID is 0 when the collection has no workflow.
	StageID        int64 // StageID is 0 when the card has no stage.
	StageName      string
	CreatorID      int64
	CreatorName    string
	CreatedAt      time.Time
	LastActiveAt   time.Time
	ClosedAt       *time.Time
	CloseReason    string
	Assignees      []string
	Tags           []string
}

// Closed reports whether the card is closed.
func (c Card) Closed() bool { return c.Status == StatusClosed }

// Doing reports whether the card is being worked on.
func (c Card) Doing() bool { return c.Status == StatusDoing }

// Considering reports whether the card is waiting to be picked up.
func (c Card) Considering() bool { return c.Status == StatusConsidering }

// Path is the card's location in the UI.
func (c Card) Path() string {
	return fmt.Sprintf("/cards/%d", c.ID)
}

// Prompt renders the card as plain text for a language-model context.
func (c Card) Prompt() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Card #%d: %s\n", c.ID, c.Title)
	fmt.Fprintf(&b, "Path: %s\n", c.Path())
	fmt.Fprintf(&b, "Collection: %s\n", c.CollectionName)
	fmt.Fprintf(&b, "Status: %s\n", c.Status)

	if c.StageName != "" {
		fmt.Fprintf(&b, "Stage: %s\n", c.StageName)
	}

	if len(c.Assignees) > 0 {
		fmt.Fprintf(&b, "Assigned to: %s\n", strings.Join(c.Assignees, ", "))
	}

	if len(c.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(c.Tags, ", "))
	}

	fmt.Fprintf(&b, "Created by %s at %s\n", c.CreatorName, c.CreatedAt.Format(time.RFC3339))

	if c.ClosedAt != nil {
		fmt.Fprintf(&b, "Closed at %s", c.ClosedAt.Format(time.RFC3339))

		if c.CloseReason != "" {
			fmt.Fprintf(&b, " (%s)", c.CloseReason)
		}

		b.WriteString("\n")
	}

	if c.Description != "" {
		b.WriteString(c.Description)
		b.WriteString("\n")
	}

	return b.String()
}

// CardQuery selects accessible cards. The zero value selects all of them.
type CardQuery struct {
	Filter filter.Context
	Limit  int // Limit caps the number of rows when > 0.
}

// NewCard holds the fields needed to create a card.
type NewCard struct {
	Title        string
	Description  string
	CollectionID int64
	CreatorID    int64
	Status       string // Status defaults to considering.
}
