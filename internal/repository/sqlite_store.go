package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"chatsurvey/internal/model"
)

// fixed width so text columns sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps responses and stored surveys in an embedded SQLite file.
// It satisfies both ResponseRepo and SurveyRepo.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ ResponseRepo = (*SQLiteStore)(nil)
	_ SurveyRepo   = (*SQLiteStore)(nil)
)

// OpenSQLite opens (creating if needed) the database at path and migrates it
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// one connection keeps the pragmas below in effect for every statement
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS responses (
			id              TEXT PRIMARY KEY,
			session_id      TEXT NOT NULL UNIQUE,
			deployment_id   TEXT NOT NULL DEFAULT '',
			draft_id        TEXT NOT NULL DEFAULT '',
			respondent_name TEXT NOT NULL DEFAULT '',
			metadata        TEXT,
			answer_count    INTEGER NOT NULL DEFAULT 0,
			last_block_id   TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			completed_at    TEXT
		);

		CREATE TABLE IF NOT EXISTS answers (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			response_id TEXT NOT NULL REFERENCES responses(id) ON DELETE CASCADE,
			block_id    TEXT NOT NULL,
			answer      TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_answers_response ON answers(response_id, seq);

		CREATE TABLE IF NOT EXISTS surveys (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			definition TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Responses ───────────────────────────────────────────────────────────────

func (s *SQLiteStore) CreateResponse(ctx context.Context, p model.CreateResponseParams) (*model.Response, error) {
	meta, err := encodeJSON(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	ts := now()
	resp := &model.Response{
		ID:             uuid.NewString(),
		SessionID:      p.SessionID,
		DeploymentID:   p.DeploymentID,
		DraftID:        p.DraftID,
		RespondentName: p.RespondentName,
		Metadata:       p.Metadata,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (id, session_id, deployment_id, draft_id, respondent_name, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		resp.ID, resp.SessionID, resp.DeploymentID, resp.DraftID, resp.RespondentName, meta,
		ts.Format(timeLayout), ts.Format(timeLayout),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *SQLiteStore) SaveAnswer(ctx context.Context, p model.SaveAnswerParams) error {
	data, err := json.Marshal(p.Answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	ts := now().Format(timeLayout)
	res, err := tx.ExecContext(ctx,
		`UPDATE responses SET answer_count = answer_count + 1, last_block_id = ?, updated_at = ? WHERE id = ?`,
		p.QuestionID, ts, p.ResponseID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("response %s: %w", p.ResponseID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO answers (id, response_id, block_id, answer, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), p.ResponseID, p.QuestionID, string(data), ts,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) CompleteResponse(ctx context.Context, responseID string) error {
	ts := now().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`UPDATE responses SET completed_at = COALESCE(completed_at, ?), updated_at = ? WHERE id = ?`,
		ts, ts, responseID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("response %s: %w", responseID, ErrNotFound)
	}
	return nil
}

const responseColumns = `id, session_id, deployment_id, draft_id, respondent_name, metadata,
	answer_count, last_block_id, created_at, updated_at, completed_at`

func (s *SQLiteStore) GetResponseBySessionID(ctx context.Context, sessionID string) (*model.Response, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE session_id = ?`, sessionID)
	resp, err := scanResponse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.Answers, err = s.answersFor(ctx, resp.ID); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *SQLiteStore) answersFor(ctx context.Context, responseID string) ([]model.PersistedAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, block_id, answer, created_at FROM answers WHERE response_id = ? ORDER BY seq`, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.PersistedAnswer
	for rows.Next() {
		var (
			a         model.PersistedAnswer
			raw       string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.BlockID, &raw, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &a.Answer); err != nil {
			return nil, fmt.Errorf("answer %s: %w", a.ID, err)
		}
		a.CreatedAt = parseTime(createdAt)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *SQLiteStore) ListResponses(ctx context.Context, opts ListOptions) ([]*model.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM responses ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var out []*model.Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, resp)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// answers are read after the cursor closes, the pool holds one connection
	if opts.WithAnswers {
		for _, resp := range out {
			if resp.Answers, err = s.answersFor(ctx, resp.ID); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (s *SQLiteStore) CountResponses(ctx context.Context) (ResponseCounts, error) {
	var c ResponseCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(completed_at) FROM responses`,
	).Scan(&c.Total, &c.Completed)
	return c, err
}

func (s *SQLiteStore) DeleteAllResponses(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM responses`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResponse(row scanner) (*model.Response, error) {
	var (
		resp                 model.Response
		meta, completedAt    sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&resp.ID, &resp.SessionID, &resp.DeploymentID, &resp.DraftID, &resp.RespondentName,
		&meta, &resp.AnswerCount, &resp.LastBlockID, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &resp.Metadata); err != nil {
			return nil, fmt.Errorf("response %s metadata: %w", resp.ID, err)
		}
	}
	resp.CreatedAt = parseTime(createdAt)
	resp.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		resp.CompletedAt = &t
	}
	return &resp, nil
}

// ─── Surveys ─────────────────────────────────────────────────────────────────

func (s *SQLiteStore) Create(ctx context.Context, survey *model.StoredSurvey) (string, error) {
	survey.ID = uuid.NewString()
	survey.CreatedAt = now()
	survey.UpdatedAt = survey.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO surveys (id, name, definition, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		survey.ID, survey.Name, string(survey.Definition),
		survey.CreatedAt.Format(timeLayout), survey.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return "", err
	}
	return survey.ID, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.StoredSurvey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, definition, created_at, updated_at FROM surveys WHERE id = ?`, id)
	survey, err := scanSurvey(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return survey, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]*model.StoredSurvey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, definition, created_at, updated_at FROM surveys ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.StoredSurvey
	for rows.Next() {
		survey, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, survey)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, survey *model.StoredSurvey) error {
	survey.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE surveys SET name = ?, definition = ?, updated_at = ? WHERE id = ?`,
		survey.Name, string(survey.Definition), survey.UpdatedAt.Format(timeLayout), survey.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("survey %s: %w", survey.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM surveys WHERE id = ?`, id)
	return err
}

func scanSurvey(row scanner) (*model.StoredSurvey, error) {
	var (
		survey               model.StoredSurvey
		definition           string
		createdAt, updatedAt string
	)
	if err := row.Scan(&survey.ID, &survey.Name, &definition, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	survey.Definition = json.RawMessage(definition)
	survey.CreatedAt = parseTime(createdAt)
	survey.UpdatedAt = parseTime(updatedAt)
	return &survey, nil
}

func encodeJSON(v map[string]any) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
