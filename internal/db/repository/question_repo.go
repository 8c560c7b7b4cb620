package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/dsa-logbook/internal/question"
)

const uniqueViolation = "23505"

const questionColumns = "id, question_number, title, status, created_at, updated_at"

// dbtx is the subset of pgxpool.Pool used by the repository.
type dbtx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// QuestionRepository stores questions in Postgres.
type QuestionRepository struct {
	db dbtx
}

var _ question.Store = (*QuestionRepository)(nil)

func NewQuestionRepository(db dbtx) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) Count(ctx context.Context, filter question.Filter) (int64, error) {
	where, args := buildWhere(filter)
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM questions"+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *QuestionRepository) Find(ctx context.Context, filter question.Filter, skip, limit int) ([]question.Question, error) {
	query, args := buildFindQuery(filter, skip, limit)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]question.Question, 0, limit)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QuestionRepository) ExistsByNumber(ctx context.Context, number int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM questions WHERE question_number = $1)", number).Scan(&exists)
	return exists, err
}

// Insert relies on the unique index on question_number to reject concurrent duplicates.
func (r *QuestionRepository) Insert(ctx context.Context, q question.Question) (question.Question, error) {
	const query = `
	INSERT INTO questions (id, question_number, title, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + questionColumns

	id := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	out, err := scanQuestion(r.db.QueryRow(ctx, query, id, q.QuestionNumber, q.Title, string(q.Status), q.CreatedAt, q.UpdatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return question.Question{}, fmt.Errorf("%w: number %d", question.ErrConflict, q.QuestionNumber)
		}
		return question.Question{}, err
	}
	return out, nil
}

func (r *QuestionRepository) UpdateStatus(ctx context.Context, id string, status question.Status, at time.Time) (question.Question, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return question.Question{}, fmt.Errorf("%w: invalid question id", question.ErrInvalidInput)
	}

	const query = `
	UPDATE questions SET status = $1, updated_at = $2
	WHERE id = $3
	RETURNING ` + questionColumns

	out, err := scanQuestion(r.db.QueryRow(ctx, query, string(status), at, pgtype.UUID{Bytes: parsed, Valid: true}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return question.Question{}, question.ErrNotFound
		}
		return question.Question{}, err
	}
	return out, nil
}

func (r *QuestionRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// buildWhere renders the filter as a WHERE clause with positional arguments.
func buildWhere(filter question.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != nil {
		args = append(args, filter.Search.Number, filter.Search.Text)
		clauses = append(clauses, fmt.Sprintf("(question_number = $%d OR strpos(lower(title), lower($%d)) > 0)", len(args)-1, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildFindQuery(filter question.Filter, skip, limit int) (string, []any) {
	where, args := buildWhere(filter)
	args = append(args, limit, skip)
	query := fmt.Sprintf("SELECT %s FROM questions%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		questionColumns, where, len(args)-1, len(args))
	return query, args
}

func scanQuestion(row pgx.Row) (question.Question, error) {
	var (
		id     pgtype.UUID
		q      question.Question
		status string
	)
	if err := row.Scan(&id, &q.QuestionNumber, &q.Title, &status, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return question.Question{}, err
	}
	q.ID = uuidString(id)
	q.Status = question.Status(status)
	q.CreatedAt = q.CreatedAt.UTC()
	q.UpdatedAt = q.UpdatedAt.UTC()
	return q, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
