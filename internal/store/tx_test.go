package store_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/agent-cards/internal/filter"
	"github.com/calvinalkan/agent-cards/internal/store"
	"github.com/calvinalkan/agent-cards/internal/testutil"
)

func beginTx(t *testing.T, s *store.Store) *store.Tx {
	t.Helper()

	tx, err := s.Begin(t.Context())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	t.Cleanup(func() { _ = tx.Rollback() })

	return tx
}

func mustFind(t *testing.T, s *store.Store, cardID int64) store.Card {
	t.Helper()

	card, err := s.FindCard(t.Context(), testutil.UserJZ, cardID)
	if err != nil {
		t.Fatalf("find card %d: %v", cardID, err)
	}

	return card
}

func Test_Tx_Applies_Status_Transitions_When_Committed(t *testing.T) {
	t.Parallel()

	clock := testutil.NewClock()
	s := testutil.OpenStore(t, clock)

	clock.Advance(time.Hour)

	tx := beginTx(t, s)

	err := tx.Close(t.Context(), testutil.CardLoginBug, "  Fixed in v2  ")
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	err = tx.Engage(t.Context(), testutil.CardOnboarding)
	if err != nil {
		t.Fatalf("engage: %v", err)
	}

	err = tx.Reconsider(t.Context(), testutil.CardReleaseNotes)
	if err != nil {
		t.Fatalf("reconsider: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	closed := mustFind(t, s, testutil.CardLoginBug)
	if !closed.Closed() || closed.CloseReason != "Fixed in v2" {
		t.Fatalf("closed card = %+v", closed)
	}

	if closed.ClosedAt == nil || !closed.ClosedAt.Equal(clock.Now()) {
		t.Fatalf("closed_at = %v, want %v", closed.ClosedAt, clock.Now())
	}

	if !closed.LastActiveAt.Equal(clock.Now()) {
		t.Fatalf("last_active_at = %v, want %v", closed.LastActiveAt, clock.Now())
	}

	if engaged := mustFind(t, s, testutil.CardOnboarding); !engaged.Doing() {
		t.Fatalf("status = %s, want doing", engaged.Status)
	}

	reopened := mustFind(t, s, testutil.CardReleaseNotes)
	if !reopened.Considering() || reopened.ClosedAt != nil || reopened.CloseReason != "" {
		t.Fatalf("reopened card = %+v", reopened)
	}
}

func Test_Tx_Discards_Changes_When_Rolled_Back(t *testing.T) {
	t.Parallel()

	s := testutil.OpenStore(t, nil)
	tx := beginTx(t, s)

	err := tx.Close(t.Context(), testutil.CardLoginBug, "")
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reads inside the tx see the write.
	inside, err := tx.FindCard(t.Context(), testutil.UserJZ, testutil.CardLoginBug)
	if err != nil {
		t.Fatalf("find in tx: %v", err)
	}

	if !inside.Closed() {
		t.Fatalf("status in tx = %s, want closed", inside.Status)
	}

	err = tx.Rollback()
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if card := mustFind(t, s, testutil.CardLoginBug); !card.Doing() {
		t.Fatalf("status after rollback = %s, want doing", card.Status)
	}
}

func Test_Tx_Rollback_Is_NoOp_When_Already_Committed(t *testing.T) {
	t.Parallel()

	s := testutil.OpenStore(t, nil)

	tx, err := s.Begin(t.Context())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	err = tx.Rollback()
	if err != nil {
		t.Fatalf("rollback after commit: %v", err)
	}

	err = tx.Commit()
	if !errors.Is(err, store.ErrTxClosed) {
		t.Fatalf("second commit error = %v, want ErrTxClosed", err)
	}

	err = tx.Engage(t.Context(), testutil.CardRefund)
	if !errors.Is(err, store.ErrTxClosed) {
		t.Fatalf("engage after commit error = %v, want ErrTxClosed", err)
	}
}

func Test_Tx_Returns_ErrCardNotFound_When_Card_Does_Not_Exist(t *testing.T) {
	t.Parallel()

	s := testutil.OpenStore(t, nil)
	tx := beginTx(t, s)

	err := tx.Engage(t.Context(), 999)
	if !errors.Is(err, store.ErrCardNotFound) {
		t.Fatalf("error = %v, want ErrCardNotFound", err)
	}
}

func Test_Begin_Times_Out_When_Another_Writer_Holds_The_Lock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first, err := store.Open(t.Context(), dir)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}

	defer func() { _ = first.Close() }()

	second, err := store.Open(t.Context(), dir, store.WithLockTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("open second: %v", err)
	}

	defer func() { _ = second.Close() }()

	held := beginTx(t, first)

	_, err = second.Begin(t.Context())
	if !errors.Is(err, store.ErrLockTimeout) {
		t.Fatalf("error = %v, want ErrLockTimeout", err)
	}

	err = held.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx, err := second.Begin(t.Context())
	if err != nil {
		t.Fatalf("begin after release: %v", err)
	}

	_ = tx.Rollback()
}

func Test_Begin_Serializes_Concurrent_Writers(t *testing.T) {
	t.Parallel()

	s := testutil.OpenStore(t, nil)

	const writers = 8

	var wg sync.WaitGroup

	errs := make(chan error, writers)

	for i := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			tx, err := s.Begin(t.Context())
			if err != nil {
				errs <- err

				return
			}

			defer func() { _ = tx.Rollback() }()

			_, err = tx.Tag(t.Context(), testutil.CardRefund, "batch-"+string(rune('a'+i)))
			if err != nil {
				errs <- err

				return
			}

			errs <- tx.Commit()
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("writer: %v", err)
		}
	}

	card := mustFind(t, s, testutil.CardRefund)
	if len(card.Tags) != writers+1 {
		t.Fatalf("tags = %v, want %d entries", card.Tags, writers+1)
	}
}

func Test_Tx_Reports_Whether_Assignment_And_Tagging_Changed_Anything(t *testing.T) {
	t.Parallel()

	s := testutil.OpenStore(t, nil)
	tx := beginTx(t, s)
	ctx := t.Context()

	added, err := tx.Assign(ctx, testutil.CardLoginBug, testutil.UserKevin)
	if err != nil || added {
		t.Fatalf("assign existing = %v, %v, want false", added, err)
	}

	added, err = tx.Assign(ctx, testutil.CardLoginBug, testutil.UserJZ)
	if err != nil || !added {
		t.Fatalf("assign new = %v, %v, want true", added, err)
	}

	added, err = tx.Tag(ctx, testutil.CardLoginBug, "#BUG")
	if err != nil || added {
		t.Fatalf("tag existing = %v, %v, want false", added, err)
	}

	added, err = tx.Tag(ctx, testutil.CardLoginBug, "#urgent")
	if err != nil || !added {
		t.Fatalf("tag new = %v, %v, want true", added, err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	card := mustFind(t, s, testutil.CardLoginBug)

	if diff := cmp.Diff([]string{"jz", "kevin"}, card.Assignees); diff != "" {
		t.Fatalf("assignees mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"bug", "urgent"}, card.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}

	tx = beginTx(t, s)

	err = tx.Unassign(ctx, testutil.CardLoginBug, testutil.UserJZ)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}

	err = tx.Untag(ctx, testutil.CardLoginBug, "#urgent")
	if err != nil {
		t.Fatalf("untag: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	card = mustFind(t, s, testutil.CardLoginBug)

	if diff := cmp.Diff([]string{"kevin"}, card.Assignees); diff != "" {
		t.Fatalf("assignees mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"bug"}, card.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
}

func Test_Tx_Changes_Stage(t *testing.T) {
	t.Parallel()

	s := testutil.OpenStore(t, nil)
	tx := beginTx(t, s)

	stage, err := tx.Stage(t.Context(), testutil.StageProductDesign)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	err = tx.ChangeStage(t.Context(), testutil.CardLoginBug, stage)
	if err != nil {
		t.Fatalf("change stage: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if card := mustFind(t, s, testutil.CardLoginBug); card.StageName != "Design" {
		t.Fatalf("stage = %q, want Design", card.StageName)
	}
}

func Test_Tx_Creates_And_Deletes_Cards(t *testing.T) {
	t.Parallel()

	s := testutil.OpenStore(t, nil)
	tx := beginTx(t, s)
	ctx := t.Context()

	id, err := tx.CreateCard(ctx, store.NewCard{
		Title:        "Write changelog",
		CollectionID: 1,
		CreatorID:    testutil.UserJZ,
	})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	card, err := tx.FindCard(ctx, testutil.UserJZ, id)
	if err != nil {
		t.Fatalf("find new card: %v", err)
	}

	if !card.Considering() || !card.CreatedAt.Equal(testutil.Now) {
		t.Fatalf("new card = %+v", card)
	}

	err = tx.DeleteCard(ctx, id)
	if err != nil {
		t.Fatalf("delete card: %v", err)
	}

	_, err = tx.FindCard(ctx, testutil.UserJZ, id)
	if !errors.Is(err, store.ErrCardNotFound) {
		t.Fatalf("error = %v, want ErrCardNotFound", err)
	}

	cards, err := tx.AccessibleCards(ctx, testutil.UserJZ, store.CardQuery{
		Filter: filter.Context{Terms: []string{"changelog"}},
	})
	if err != nil {
		t.Fatalf("accessible cards: %v", err)
	}

	if len(cards) != 0 {
		t.Fatalf("cards = %v, want none", cardIDs(cards))
	}
}

func Test_Command_Log_Loads_By_Prefix_And_Lists_Newest_First(t *testing.T) {
	t.Parallel()

	clock := testutil.NewClock()
	s := testutil.OpenStore(t, clock)
	ctx := t.Context()

	executed := clock.Now()
	recs := []store.CommandRecord{
		{ID: "0190aaaa-0000-7000-8000-000000000001", UserID: testutil.UserJZ, Kind: "close", State: "executed", Title: "Close 1 card", Data: []byte(`{"card_ids":[1]}`), CreatedAt: executed, ExecutedAt: &executed},
		{ID: "0190aaaa-0000-7000-8000-000000000002", UserID: testutil.UserJZ, Kind: "tag", State: "executed", Title: "Tag 1 card", Data: []byte(`{}`), CreatedAt: executed.Add(time.Second), ExecutedAt: &executed},
		{ID: "0190bbbb-0000-7000-8000-000000000003", UserID: testutil.UserKevin, Kind: "do", State: "executed", Title: "Move 1 card to doing", Data: []byte(`{}`), CreatedAt: executed.Add(2 * time.Second), ExecutedAt: &executed},
	}

	tx := beginTx(t, s)

	for _, rec := range recs {
		err := tx.SaveCommand(ctx, rec)
		if err != nil {
			t.Fatalf("save command: %v", err)
		}
	}

	err := tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := s.LoadCommand(ctx, "0190BBBB")
	if err != nil {
		t.Fatalf("load by prefix: %v", err)
	}

	if got.ID != recs[2].ID || got.Kind != "do" {
		t.Fatalf("loaded = %+v", got)
	}

	got, err = s.LoadCommand(ctx, recs[0].ID)
	if err != nil {
		t.Fatalf("load by id: %v", err)
	}

	if diff := cmp.Diff(recs[0], got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}

	_, err = s.LoadCommand(ctx, "0190aaaa")
	if !errors.Is(err, store.ErrAmbiguousCommand) {
		t.Fatalf("error = %v, want ErrAmbiguousCommand", err)
	}

	_, err = s.LoadCommand(ctx, "ffff")
	if !errors.Is(err, store.ErrCommandNotFound) {
		t.Fatalf("error = %v, want ErrCommandNotFound", err)
	}

	recent, err := s.RecentCommands(ctx, testutil.UserJZ, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}

	ids := make([]string, 0, len(recent))
	for _, rec := range recent {
		ids = append(ids, rec.ID)
	}

	if diff := cmp.Diff([]string{recs[1].ID, recs[0].ID}, ids); diff != "" {
		t.Fatalf("recent ids mismatch (-want +got):\n%s", diff)
	}

	// Saving again updates state in place.
	undone := executed.Add(time.Minute)
	rec := recs[0]
	rec.State = "undone"
	rec.UndoneAt = &undone

	tx = beginTx(t, s)

	err = tx.SaveCommand(ctx, rec)
	if err != nil {
		t.Fatalf("update command: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err = s.LoadCommand(ctx, rec.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got.State != "undone" || got.UndoneAt == nil || !got.UndoneAt.Equal(undone) {
		t.Fatalf("reloaded = %+v", got)
	}
}
