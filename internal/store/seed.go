package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// SeedData describes users, workflows, collections and cards to load into an
// empty (or partially filled) store. Names are the keys that tie records
// together.
type SeedData struct {
	Users       []SeedUser       `json:"users"`
	Workflows   []SeedWorkflow   `json:"workflows"`
	Collections []SeedCollection `json:"collections"`
	Cards       []SeedCard       `json:"cards"`
}

// SeedUser is a user row.
type SeedUser struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// SeedWorkflow is a workflow with its stages in order.
type SeedWorkflow struct {
	Name   string   `json:"name"`
	Stages []string `json:"stages"`
}

// SeedCollection is a collection, the workflow it uses and the users with
// access to it.
type SeedCollection struct {
	Name     string   `json:"name"`
	Workflow string   `json:"workflow,omitempty"`
	Members  []string `json:"members"`
}

// SeedCard is a card. Times default to the store clock's now.
type SeedCard struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Collection   string     `json:"collection"`
	Creator      string     `json:"creator"`
	Status       string     `json:"status,omitempty"`
	Stage        string     `json:"stage,omitempty"`
	Assignees    []string   `json:"assignees,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CloseReason  string     `json:"close_reason,omitempty"`
}

// ParseSeed decodes a JSONC seed document. Unknown fields are rejected.
func ParseSeed(data []byte) (SeedData, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return SeedData{}, fmt.Errorf("%w: %w", ErrSeedInvalid, err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var seed SeedData

	err = dec.Decode(&seed)
	if err != nil {
		return SeedData{}, fmt.Errorf("%w: %w", ErrSeedInvalid, err)
	}

	if dec.Decode(&struct{}{}) != io.EOF {
		return SeedData{}, fmt.Errorf("%w: trailing data after document", ErrSeedInvalid)
	}

	return seed, nil
}

// SeedResult counts what [Store.Seed] inserted.
type SeedResult struct {
	Users       int
	Collections int
	Cards       int
}

// Seed loads data in a single write transaction. Users, workflows and
// collections that already exist by name are reused.
func (s *Store) Seed(ctx context.Context, data SeedData) (SeedResult, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	seeder := seeder{
		tx:          tx,
		users:       make(map[string]int64),
		workflows:   make(map[string]int64),
		collections: make(map[string]int64),
		stages:      make(map[string]int64),
	}

	res, err := seeder.run(ctx, data)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed: %w", err)
	}

	return res, nil
}

type seeder struct {
	tx          *Tx
	users       map[string]int64
	workflows   map[string]int64
	collections map[string]int64
	stages      map[string]int64 // stages is keyed by "workflow_id/lower(name)".
}

func (sd *seeder) run(ctx context.Context, data SeedData) (SeedResult, error) {
	var res SeedResult

	for _, u := range data.Users {
		name := strings.TrimSpace(u.Name)
		if name == "" {
			return res, fmt.Errorf("%w: user with empty name", ErrSeedInvalid)
		}

		fullName := strings.TrimSpace(u.FullName)
		if fullName == "" {
			fullName = name
		}

		id, err := sd.upsert(ctx, "users", "INSERT INTO users (name, full_name) VALUES (?, ?)", name, fullName)
		if err != nil {
			return res, err
		}

		sd.users[strings.ToLower(name)] = id
		res.Users++
	}

	for _, w := range data.Workflows {
		id, err := sd.upsert(ctx, "workflows", "INSERT INTO workflows (name) VALUES (?)", w.Name)
		if err != nil {
			return res, err
		}

		sd.workflows[strings.ToLower(w.Name)] = id

		for pos, stage := range w.Stages {
			stageID, err := sd.insertStage(ctx, id, stage, pos)
			if err != nil {
				return res, err
			}

			sd.stages[stageKey(id, stage)] = stageID
		}
	}

	for _, c := range data.Collections {
		var workflowID any

		if c.Workflow != "" {
			id, err := sd.lookup(ctx, sd.workflows, "workflows", c.Workflow)
			if err != nil {
				return res, err
			}

			workflowID = id
		}

		id, err := sd.upsert(ctx, "collections",
			"INSERT INTO collections (name, workflow_id) VALUES (?, ?)", c.Name, workflowID)
		if err != nil {
			return res, err
		}

		sd.collections[strings.ToLower(c.Name)] = id

		for _, member := range c.Members {
			userID, err := sd.lookup(ctx, sd.users, "users", member)
			if err != nil {
				return res, err
			}

			_, err = sd.tx.exec(ctx, "seed access",
				"INSERT OR IGNORE INTO accesses (user_id, collection_id) VALUES (?, ?)", userID, id)
			if err != nil {
				return res, err
			}
		}

		res.Collections++
	}

	for i, c := range data.Cards {
		err := sd.insertCard(ctx, c)
		if err != nil {
			return res, fmt.Errorf("card %d (%q): %w", i, c.Title, err)
		}

		res.Cards++
	}

	return res, nil
}

func (sd *seeder) insertCard(ctx context.Context, c SeedCard) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrSeedInvalid)
	}

	collectionID, err := sd.lookup(ctx, sd.collections, "collections", c.Collection)
	if err != nil {
		return err
	}

	creatorID, err := sd.lookup(ctx, sd.users, "users", c.Creator)
	if err != nil {
		return err
	}

	status := c.Status
	if status == "" {
		status = StatusConsidering
		if c.ClosedAt != nil {
			status = StatusClosed
		}
	}

	if status != StatusConsidering && status != StatusDoing && status != StatusClosed {
		return fmt.Errorf("%w: unknown status %q", ErrSeedInvalid, status)
	}

	now := sd.tx.now()
	createdAt := timeOr(c.CreatedAt, now)
	lastActiveAt := timeOr(c.LastActiveAt, createdAt)

	var closedAt, closeReason any

	if status == StatusClosed {
		closedAt = timeOr(c.ClosedAt, lastActiveAt).Unix()
		if c.CloseReason != "" {
			closeReason = c.CloseReason
		}
	}

	var stageID any

	if c.Stage != "" {
		var workflowID sql.NullInt64

		err = sd.tx.q.QueryRowContext(ctx,
			"SELECT workflow_id FROM collections WHERE id = ?", collectionID).Scan(&workflowID)
		if err != nil {
			return fmt.Errorf("read collection workflow: %w", err)
		}

		id, ok := sd.stages[stageKey(workflowID.Int64, c.Stage)]
		if !ok || !workflowID.Valid {
			return fmt.Errorf("%w: stage %q is not in the collection's workflow", ErrSeedInvalid, c.Stage)
		}

		stageID = id
	}

	res, err := sd.tx.sql.ExecContext(ctx, `
		INSERT INTO cards (collection_id, creator_id, title, description, status, stage_id,
			created_at, last_active_at, closed_at, close_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		collectionID, creatorID, c.Title, c.Description, status, stageID,
		createdAt.Unix(), lastActiveAt.Unix(), closedAt, closeReason)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}

	cardID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}

	for _, assignee := range c.Assignees {
		userID, err := sd.lookup(ctx, sd.users, "users", assignee)
		if err != nil {
			return err
		}

		_, err = sd.tx.exec(ctx, "seed assignment",
			"INSERT OR IGNORE INTO assignments (card_id, user_id) VALUES (?, ?)", cardID, userID)
		if err != nil {
			return err
		}
	}

	for _, tag := range c.Tags {
		_, err = sd.tx.exec(ctx, "seed tag", "INSERT OR IGNORE INTO tags (name) VALUES (?)", tag)
		if err != nil {
			return err
		}

		_, err = sd.tx.exec(ctx, "seed tagging", `
			INSERT OR IGNORE INTO taggings (card_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?`, cardID, tag)
		if err != nil {
			return err
		}
	}

	return nil
}

// upsert inserts a named row unless one with the same name exists, and
// returns its id either way.
func (sd *seeder) upsert(ctx context.Context, table, insert string, args ...any) (int64, error) {
	name, _ := args[0].(string)
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: %s row with empty name", ErrSeedInvalid, table)
	}

	id, err := sd.existing(ctx, table, name)
	if err == nil {
		return id, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := sd.tx.sql.ExecContext(ctx, insert, args...)
	if err != nil {
		return 0, fmt.Errorf("seed %s: %w", table, err)
	}

	return res.LastInsertId()
}

func (sd *seeder) insertStage(ctx context.Context, workflowID int64, name string, pos int) (int64, error) {
	var id int64

	err := sd.tx.q.QueryRowContext(ctx,
		"SELECT id FROM stages WHERE workflow_id = ? AND name = ?", workflowID, name).Scan(&id)
	if err == nil {
		return id, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("seed stages: %w", err)
	}

	res, err := sd.tx.sql.ExecContext(ctx,
		"INSERT INTO stages (workflow_id, name, position) VALUES (?, ?, ?)", workflowID, name, pos)
	if err != nil {
		return 0, fmt.Errorf("seed stages: %w", err)
	}

	return res.LastInsertId()
}

func (sd *seeder) lookup(ctx context.Context, cache map[string]int64, table, name string) (int64, error) {
	if id, ok := cache[strings.ToLower(name)]; ok {
		return id, nil
	}

	id, err := sd.existing(ctx, table, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: unknown %s entry %q", ErrSeedInvalid, strings.TrimSuffix(table, "s"), name)
	}

	if err != nil {
		return 0, err
	}

	cache[strings.ToLower(name)] = id

	return id, nil
}

// existing returns the id of the row named name, or sql.ErrNoRows.
// table is always one of the package's own table names.
func (sd *seeder) existing(ctx context.Context, table, name string) (int64, error) {
	var id int64

	err := sd.tx.q.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE name = ?", name).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}

		return 0, fmt.Errorf("seed %s: %w", table, err)
	}

	return id, nil
}

func stageKey(workflowID int64, name string) string {
	return fmt.Sprintf("%d/%s", workflowID, strings.ToLower(strings.TrimSpace(name)))
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}

	return *t
}
