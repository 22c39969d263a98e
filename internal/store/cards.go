package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/timewindow"
)

// reader holds the read operations shared by [Store] and [Tx].
// Every card read is scoped to the collections the user can access.
type reader struct {
	q   querier
	now func() time.Time
}

// AccessibleCards returns the cards in collections the user can access that
// match query.Filter, ordered by the filter's IndexedBy.
func (r reader) AccessibleCards(ctx context.Context, userID int64, query CardQuery) ([]Card, error) {
	return queryCards(ctx, r.q, userID, query, r.now())
}

// FindCard returns the card if it exists and the user can access it.
func (r reader) FindCard(ctx context.Context, userID, cardID int64) (Card, error) {
	cards, err := queryCards(ctx, r.q, userID, CardQuery{Filter: filter.Context{CardIDs: []int64{cardID}}}, r.now())
	if err != nil {
		return Card{}, err
	}

	if len(cards) == 0 {
		return Card{}, fmt.Errorf("%w: %d", ErrCardNotFound, cardID)
	}

	return cards[0], nil
}

// User returns the user with the given id.
func (r reader) User(ctx context.Context, id int64) (User, error) {
	row := r.q.QueryRowContext(ctx, "SELECT id, name, full_name FROM users WHERE id = ?", id)

	return scanUser(row, fmt.Sprint(id))
}

// UserByName looks a user up by handle, case-insensitively.
func (r reader) UserByName(ctx context.Context, name string) (User, error) {
	row := r.q.QueryRowContext(ctx, "SELECT id, name, full_name FROM users WHERE name = ?", strings.TrimSpace(name))

	return scanUser(row, name)
}

// Stage returns the stage with the given id.
func (r reader) Stage(ctx context.Context, id int64) (Stage, error) {
	row := r.q.QueryRowContext(ctx, "SELECT id, workflow_id, name, position FROM stages WHERE id = ?", id)

	var st Stage

	err := row.Scan(&st.ID, &st.WorkflowID, &st.Name, &st.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return Stage{}, fmt.Errorf("%w: %d", ErrStageNotFound, id)
	}

	if err != nil {
		return Stage{}, fmt.Errorf("read stage: %w", err)
	}

	return st, nil
}

// StageByName finds a stage by name among the workflows of collections the
// user can access. When several workflows share the name, the oldest stage wins.
func (r reader) StageByName(ctx context.Context, userID int64, name string) (Stage, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT s.id, s.workflow_id, s.name, s.position
		FROM stages s
		WHERE s.name = ?
			AND s.workflow_id IN (
				SELECT col.workflow_id
				FROM collections col
				JOIN accesses a ON a.collection_id = col.id
				WHERE a.user_id = ?
			)
		ORDER BY s.id
		LIMIT 1`, strings.TrimSpace(name), userID)

	var st Stage

	err := row.Scan(&st.ID, &st.WorkflowID, &st.Name, &st.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return Stage{}, fmt.Errorf("%w: %q", ErrStageNotFound, name)
	}

	if err != nil {
		return Stage{}, fmt.Errorf("read stage: %w", err)
	}

	return st, nil
}

// DefaultCollection returns the first collection (by id) the user can access.
func (r reader) DefaultCollection(ctx context.Context, userID int64) (int64, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT collection_id FROM accesses WHERE user_id = ? ORDER BY collection_id LIMIT 1`, userID)

	var id int64

	err := row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: user %d has no accessible collections", ErrCollectionNotFound, userID)
	}

	if err != nil {
		return 0, fmt.Errorf("read collection: %w", err)
	}

	return id, nil
}

// CollectionByName returns the id of the named collection if the user can
// access it.
func (r reader) CollectionByName(ctx context.Context, userID int64, name string) (int64, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT col.id
		FROM collections col
		JOIN accesses a ON a.collection_id = col.id
		WHERE a.user_id = ? AND col.name = ?`, userID, strings.TrimSpace(name))

	var id int64

	err := row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}

	if err != nil {
		return 0, fmt.Errorf("read collection: %w", err)
	}

	return id, nil
}

func scanUser(row *sql.Row, key string) (User, error) {
	var u User

	err := row.Scan(&u.ID, &u.Name, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, key)
	}

	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}

	return u, nil
}

func queryCards(ctx context.Context, q querier, userID int64, query CardQuery, now time.Time) ([]Card, error) {
	f := query.Filter

	clauses := []string{"c.collection_id IN (SELECT collection_id FROM accesses WHERE user_id = ?)"}
	args := []any{userID}

	for _, term := range f.Terms {
		pattern := "%" + escapeLike(term) + "%"
		clauses = append(clauses, `(c.title LIKE ? ESCAPE '\' OR c.description LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	if len(f.CardIDs) > 0 {
		clauses = append(clauses, "c.id IN ("+placeholders(len(f.CardIDs))+")")
		for _, id := range f.CardIDs {
			args = append(args, id)
		}
	}

	if len(f.AssigneeIDs) > 0 {
		clauses = append(clauses, `EXISTS (
			SELECT 1 FROM assignments a JOIN users au ON au.id = a.user_id
			WHERE a.card_id = c.id AND au.name IN (`+placeholders(len(f.AssigneeIDs))+`))`)
		args = appendStrings(args, f.AssigneeIDs)
	}

	if f.AssignmentStatus == filter.AssignmentUnassigned {
		clauses = append(clauses, "NOT EXISTS (SELECT 1 FROM assignments a WHERE a.card_id = c.id)")
	}

	if len(f.CreatorIDs) > 0 {
		clauses = append(clauses, "cu.name IN ("+placeholders(len(f.CreatorIDs))+")")
		args = appendStrings(args, f.CreatorIDs)
	}

	if len(f.CollectionIDs) > 0 {
		clauses = append(clauses, "col.name IN ("+placeholders(len(f.CollectionIDs))+")")
		args = appendStrings(args, f.CollectionIDs)
	}

	if len(f.TagIDs) > 0 {
		clauses = append(clauses, `EXISTS (
			SELECT 1 FROM taggings tg JOIN tags t ON t.id = tg.tag_id
			WHERE tg.card_id = c.id AND t.name IN (`+placeholders(len(f.TagIDs))+`))`)
		args = appendStrings(args, f.TagIDs)
	}

	if w, ok := timewindow.Parse(f.Creation, now); ok {
		clauses = append(clauses, "c.created_at >= ? AND c.created_at < ?")
		args = append(args, w.Start.Unix(), w.End.Unix())
	}

	if w, ok := timewindow.Parse(f.Closure, now); ok {
		clauses = append(clauses, "c.closed_at >= ? AND c.closed_at < ?")
		args = append(args, w.Start.Unix(), w.End.Unix())
	}

	order := "c.id"

	switch f.IndexedBy {
	case filter.IndexedByNewest:
		order = "c.created_at DESC, c.id DESC"
	case filter.IndexedByOldest:
		order = "c.created_at, c.id"
	case filter.IndexedByLatest:
		order = "c.last_active_at DESC, c.id DESC"
	case filter.IndexedByClosed:
		clauses = append(clauses, "c.status = ?")
		args = append(args, StatusClosed)
		order = "c.closed_at DESC, c.id DESC"
	case filter.IndexedByStalled:
		clauses = append(clauses, "c.status <> ? AND c.last_active_at < ?")
		args = append(args, StatusClosed, now.Add(-StalledAfter).Unix())
		order = "c.last_active_at, c.id"
	}

	var sqlText strings.Builder

	sqlText.WriteString(`
		SELECT c.id, c.title, c.description, c.status,
			c.collection_id, col.name, COALESCE(col.workflow_id, 0),
			COALESCE(c.stage_id, 0), COALESCE(s.name, ''),
			c.creator_id, cu.name,
			c.created_at, c.last_active_at, c.closed_at, COALESCE(c.close_reason, '')
		FROM cards c
		JOIN collections col ON col.id = c.collection_id
		JOIN users cu ON cu.id = c.creator_id
		LEFT JOIN stages s ON s.id = c.stage_id
		WHERE `)
	sqlText.WriteString(strings.Join(clauses, " AND "))
	sqlText.WriteString(" ORDER BY ")
	sqlText.WriteString(order)

	if query.Limit > 0 {
		sqlText.WriteString(" LIMIT ?")

		args = append(args, query.Limit)
	}

	rows, err := q.QueryContext(ctx, sqlText.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}

	defer func() { _ = rows.Close() }()

	cards := make([]Card, 0)
	indexByID := make(map[int64]int)

	for rows.Next() {
		var (
			card         Card
			createdAt    int64
			lastActiveAt int64
			closedAt     sql.NullInt64
		)

		scanErr := rows.Scan(
			&card.ID,
			&card.Title,
			&card.Description,
			&card.Status,
			&card.CollectionID,
			&card.CollectionName,
			&card.WorkflowID,
			&card.StageID,
			&card.StageName,
			&card.CreatorID,
			&card.CreatorName,
			&createdAt,
			&lastActiveAt,
			&closedAt,
			&card.CloseReason,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("query cards: scan: %w", scanErr)
		}

		card.CreatedAt = time.Unix(createdAt, 0).UTC()
		card.LastActiveAt = time.Unix(lastActiveAt, 0).UTC()
		card.ClosedAt = nullTimePtr(closedAt)

		indexByID[card.ID] = len(cards)
		cards = append(cards, card)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("query cards: rows: %w", err)
	}

	if len(cards) == 0 {
		return cards, nil
	}

	err = loadNames(ctx, q, `
		SELECT a.card_id, u.name FROM assignments a JOIN users u ON u.id = a.user_id
		WHERE a.card_id IN (%s) ORDER BY a.card_id, u.name`, indexByID, func(i int, name string) {
		cards[i].Assignees = append(cards[i].Assignees, name)
	})
	if err != nil {
		return nil, fmt.Errorf("query assignees: %w", err)
	}

	err = loadNames(ctx, q, `
		SELECT tg.card_id, t.name FROM taggings tg JOIN tags t ON t.id = tg.tag_id
		WHERE tg.card_id IN (%s) ORDER BY tg.card_id, t.name`, indexByID, func(i int, name string) {
		cards[i].Tags = append(cards[i].Tags, name)
	})
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}

	return cards, nil
}

// loadNames runs a (card_id, name) query for the cards in indexByID and hands
// each row to add with the card's slice index.
func loadNames(ctx context.Context, q querier, format string, indexByID map[int64]int, add func(int, string)) error {
	args := make([]any, 0, len(indexByID))
	for id := range indexByID {
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(format, placeholders(len(args))), args...)
	if err != nil {
		return err
	}

	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cardID int64
			name   string
		)

		err = rows.Scan(&cardID, &name)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		if idx, ok := indexByID[cardID]; ok {
			add(idx, name)
		}
	}

	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func appendStrings(args []any, values []string) []any {
	for _, v := range values {
		args = append(args, v)
	}

	return args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullTimePtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}

	parsed := time.Unix(value.Int64, 0).UTC()

	return &parsed
}
