package lecture

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studymate/backend/internal/models"
)

// Repository persists lecture sessions and highlights for later review. The
// in-memory registry stays authoritative during the session; rows here are
// write-behind.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lecture repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertSession records a started session.
func (r *Repository) InsertSession(ctx context.Context, s *models.LectureSession) error {
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return err
	}
	const query = `INSERT INTO lecture_sessions (id, user_id, course_id, material_ids, metadata, started_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)`
	_, err = r.pool.Exec(ctx, query, s.ID, s.UserID, s.CourseID, s.MaterialIDs, metadata, s.StartedAt)
	return err
}

// CloseSession marks a session inactive with its end time.
func (r *Repository) CloseSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	const query = `UPDATE lecture_sessions SET active = FALSE, ended_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, endedAt)
	return err
}

// GetSession returns a persisted session by id, or nil when absent.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.LectureSession, error) {
	const query = `SELECT id, user_id, course_id, material_ids, metadata, started_at, ended_at, active
		FROM lecture_sessions WHERE id = $1`
	var (
		s        models.LectureSession
		metadata []byte
	)
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&s.ID, &s.UserID, &s.CourseID, &s.MaterialIDs, &metadata, &s.StartedAt, &s.EndedAt, &s.Active)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &s.Metadata)
	}
	return &s, nil
}

// InsertHighlight records an emitted highlight.
func (r *Repository) InsertHighlight(ctx context.Context, ev *models.HighlightEvent) error {
	const query = `INSERT INTO lecture_highlights (lecture_id, chunk_id, type, text, confidence, ts_start, ts_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, ev.LectureID, ev.ChunkID, ev.Type, ev.Text, ev.Confidence, ev.TimestampStart, ev.TimestampEnd)
	return err
}

// ListHighlights returns a lecture's highlights in emission order.
func (r *Repository) ListHighlights(ctx context.Context, lectureID uuid.UUID) ([]models.HighlightEvent, error) {
	const query = `SELECT lecture_id, chunk_id, type, text, confidence, ts_start, ts_end
		FROM lecture_highlights WHERE lecture_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, lectureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.HighlightEvent
	for rows.Next() {
		ev := models.HighlightEvent{Highlight: true}
		if err := rows.Scan(&ev.LectureID, &ev.ChunkID, &ev.Type, &ev.Text, &ev.Confidence, &ev.TimestampStart, &ev.TimestampEnd); err != nil {
			return nil, err
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}
