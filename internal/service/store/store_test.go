package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codeshare/internal/models"
	"codeshare/internal/storage"
)

func newTestStore(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A pool of connections would each see its own empty :memory: db.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seedUser(t, db, "user-1", "alice")
	seedUser(t, db, "user-2", "bob")
	return NewService(db, "sqlite3", nil)
}

func seedUser(t *testing.T, db *sql.DB, id, username string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, username, username+"@example.com", "x", time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
}

func strPtr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", "alice", "fizzbuzz", "warmup", models.LanguagePython)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated id")
	}
	if created.Code != "" {
		t.Fatalf("new session should start with empty code, got %q", created.Code)
	}
	if created.ParticipantCount != 1 || created.Participants[0].UserID != "user-1" {
		t.Fatalf("creator should be the sole participant, got %+v", created.Participants)
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "fizzbuzz" || got.Language != models.LanguagePython {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(got.Participants))
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "user-1", "alice", "   ", "", models.LanguagePython); err == nil {
		t.Fatal("blank title should be rejected")
	}
	if _, err := s.Create(ctx, "user-1", "alice", "ok", "", models.Language("cobol")); err == nil {
		t.Fatal("unknown language should be rejected")
	}
}

func TestGetUnknown(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateLastWriterWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", "alice", "race", "", models.LanguagePython)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.Update(ctx, created.ID, models.SessionUpdate{Code: strPtr("print(1)")}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	after, err := s.Update(ctx, created.ID, models.SessionUpdate{Code: strPtr("print(2)")})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if after.Code != "print(2)" {
		t.Fatalf("most recent write should win, got %q", after.Code)
	}
	if after.UpdatedAt.Before(created.UpdatedAt) {
		t.Fatal("updated_at must never move backwards")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Code != "print(2)" {
		t.Fatalf("stored code is %q", got.Code)
	}
}

func TestUpdatePartialFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", "alice", "orig", "desc", models.LanguagePython)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	lang := models.LanguageJavaScript
	got, err := s.Update(ctx, created.ID, models.SessionUpdate{Language: &lang})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Language != models.LanguageJavaScript {
		t.Fatalf("language not updated: %s", got.Language)
	}
	if got.Title != "orig" || got.Description != "desc" {
		t.Fatalf("untouched fields must survive, got %+v", got)
	}

	if _, err := s.Update(ctx, created.ID, models.SessionUpdate{}); err == nil {
		t.Fatal("empty update should be rejected")
	}
	if _, err := s.Update(ctx, created.ID, models.SessionUpdate{Title: strPtr("  ")}); err == nil {
		t.Fatal("blank title should be rejected")
	}
}

func TestUpdateUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update(context.Background(), "nope", models.SessionUpdate{Code: strPtr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", "alice", "doomed", "", models.LanguagePython)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should report ErrNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete should report ErrNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, created.ID, models.SessionUpdate{Code: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update after delete should report ErrNotFound, got %v", err)
	}
}

func TestAddParticipantIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", "alice", "shared", "", models.LanguagePython)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	beforeJoin, _ := s.Get(ctx, created.ID)

	for i := 0; i < 3; i++ {
		if err := s.AddParticipant(ctx, created.ID, "user-2", "bob"); err != nil {
			t.Fatalf("add participant (attempt %d): %v", i+1, err)
		}
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ParticipantCount != 2 {
		t.Fatalf("expected 2 participants after repeated joins, got %d", got.ParticipantCount)
	}
	if !got.UpdatedAt.Equal(beforeJoin.UpdatedAt) {
		t.Fatal("joining must not bump updated_at")
	}

	if err := s.AddParticipant(ctx, "nope", "user-2", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("joining an unknown session should report ErrNotFound, got %v", err)
	}
}

func TestParticipants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", "alice", "shared", "", models.LanguagePython)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.AddParticipant(ctx, created.ID, "user-2", "bob"); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	participants, err := s.Participants(ctx, created.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}
	if _, err := s.Participants(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Create(ctx, "user-1", "alice", fmt.Sprintf("session %d", i), "", models.LanguagePython); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	seen := make(map[string]bool)
	for offset := 0; offset < 5; offset += 2 {
		page, total, err := s.List(ctx, 2, offset)
		if err != nil {
			t.Fatalf("list offset %d: %v", offset, err)
		}
		if total != 5 {
			t.Fatalf("expected total 5, got %d", total)
		}
		for _, item := range page {
			if seen[item.ID] {
				t.Fatalf("session %s returned twice across pages", item.ID)
			}
			seen[item.ID] = true
		}
	}
	if len(seen) != 5 {
		t.Fatalf("pages must partition the directory, saw %d of 5", len(seen))
	}

	page, _, err := s.List(ctx, 0, -3)
	if err != nil {
		t.Fatalf("list with defaults: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("defaulted list should return everything, got %d", len(page))
	}
	for _, item := range page {
		if item.ParticipantCount != 1 {
			t.Fatalf("summary should carry participant count, got %+v", item)
		}
	}
}
