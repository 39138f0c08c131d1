// Package store holds the canonical, server-side session state.
// Writes are last-writer-wins: an update unconditionally overwrites
// whatever is stored, with no concurrency token. Two participants
// saving inside the same poll interval clobber each other silently;
// that is the accepted tradeoff of the polling model.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"codeshare/internal/models"
	"codeshare/internal/redis"

	"github.com/google/uuid"
)

// ErrNotFound reports an unknown or already-deleted session id.
var ErrNotFound = errors.New("session not found")

// Service provides CRUD over sessions and their participant sets.
type Service struct {
	db      *sql.DB
	dialect string
	cache   *sessionCache
}

// NewService builds a session store for the given sql dialect
// ("sqlite3" or "mysql"). cacheClient may be nil.
func NewService(db *sql.DB, dialect string, cacheClient *redis.Client) *Service {
	return &Service{
		db:      db,
		dialect: strings.ToLower(dialect),
		cache:   newSessionCache(cacheClient),
	}
}

// Create inserts a new session with empty code and the creator as the
// sole participant.
func (s *Service) Create(ctx context.Context, createdBy, creatorName, title, description string, language models.Language) (*models.Session, error) {
	if createdBy == "" {
		return nil, errors.New("created_by is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title cannot be empty")
	}
	if !language.Valid() {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, title, description, language, code, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?, ?)`,
		id, title, description, string(language), createdBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO participants (session_id, user_id, username, joined_at) VALUES (?, ?, ?, ?)`,
		id, createdBy, creatorName, now,
	)
	if err != nil {
		return nil, fmt.Errorf("add creator participant: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create session: %w", err)
	}

	return &models.Session{
		ID:               id,
		Title:            title,
		Description:      description,
		Language:         language,
		Code:             "",
		CreatedBy:        createdBy,
		CreatedAt:        now,
		UpdatedAt:        now,
		ParticipantCount: 1,
		Participants: []models.Participant{
			{UserID: createdBy, Username: creatorName, JoinedAt: now},
		},
	}, nil
}

// Get returns the full session including participants.
func (s *Service) Get(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	if cached, ok := s.cache.load(ctx, id); ok {
		return cached, nil
	}

	var session models.Session
	var language string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, language, code, created_by, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.Title, &session.Description, &language,
		&session.Code, &session.CreatedBy, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.Language = models.Language(language)

	participants, err := s.listParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Participants = participants
	session.ParticipantCount = len(participants)

	s.cache.save(ctx, &session)
	return &session, nil
}

// List returns a page of session summaries ordered by creation time
// descending (id as tiebreak, so pagination stays stable) and the
// total session count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.SessionSummary, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.title, s.description, s.language, s.created_by, s.created_at, s.updated_at,
		        (SELECT COUNT(*) FROM participants p WHERE p.session_id = s.id)
		 FROM sessions s
		 ORDER BY s.created_at DESC, s.id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.SessionSummary, 0, limit)
	for rows.Next() {
		var sum models.SessionSummary
		var language string
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Description, &language,
			&sum.CreatedBy, &sum.CreatedAt, &sum.UpdatedAt, &sum.ParticipantCount); err != nil {
			return nil, 0, fmt.Errorf("scan session summary: %w", err)
		}
		sum.Language = models.Language(language)
		summaries = append(summaries, sum)
	}
	return summaries, total, rows.Err()
}

// Update applies a partial overwrite and bumps updated_at. There is no
// version check on purpose: the most recent write wins.
func (s *Service) Update(ctx context.Context, id string, update models.SessionUpdate) (*models.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	if update.Empty() {
		return nil, errors.New("update carries no fields")
	}

	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, errors.New("title cannot be empty")
		}
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Language != nil {
		if !update.Language.Valid() {
			return nil, fmt.Errorf("unsupported language: %s", *update.Language)
		}
		sets = append(sets, "language = ?")
		args = append(args, string(*update.Language))
	}
	if update.Code != nil {
		sets = append(sets, "code = ?")
		args = append(args, *update.Code)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	s.cache.invalidate(ctx, id)
	return s.Get(ctx, id)
}

// Delete removes the session outright. Deletion is terminal: a second
// delete (or any later get) reports ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.cache.invalidate(ctx, id)
	return nil
}

// AddParticipant records a user as joined. Idempotent: re-adding a
// present user is a no-op. The session's updated_at is not touched.
func (s *Service) AddParticipant(ctx context.Context, id, userID, username string) error {
	if id == "" {
		return ErrNotFound
	}
	if userID == "" {
		return errors.New("user_id is required")
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("verify session: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	stmt := `INSERT OR IGNORE INTO participants (session_id, user_id, username, joined_at) VALUES (?, ?, ?, ?)`
	if s.dialect == "mysql" {
		stmt = `INSERT IGNORE INTO participants (session_id, user_id, username, joined_at) VALUES (?, ?, ?, ?)`
	}
	res, err := s.db.ExecContext(ctx, stmt, id, userID, username, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		s.cache.invalidate(ctx, id)
	}
	return nil
}

// Participants lists the session's participants in join order.
func (s *Service) Participants(ctx context.Context, id string) ([]models.Participant, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return s.listParticipants(ctx, id)
}

func (s *Service) listParticipants(ctx context.Context, id string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, joined_at FROM participants WHERE session_id = ? ORDER BY joined_at ASC, user_id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]models.Participant, 0, 4)
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.UserID, &p.Username, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}
