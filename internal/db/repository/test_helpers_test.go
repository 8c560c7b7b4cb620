package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/mock"
)

func uuidFromByte(b byte) pgtype.UUID {
	var arr [16]byte
	arr[15] = b
	return pgtype.UUID{Bytes: arr, Valid: true}
}

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	called := m.Called(ctx, sql, args)
	rows, _ := called.Get(0).(pgx.Rows)
	return rows, called.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.Called(ctx, sql, args).Get(0).(pgx.Row)
}

func (m *mockDB) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// questionRow is a canned pgx.Row for the questions column set.
type questionRow struct {
	id        pgtype.UUID
	number    int
	title     string
	status    string
	createdAt time.Time
	updatedAt time.Time
	err       error
}

func (r questionRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 6 {
		return fmt.Errorf("expected 6 scan targets, got %d", len(dest))
	}
	*dest[0].(*pgtype.UUID) = r.id
	*dest[1].(*int) = r.number
	*dest[2].(*string) = r.title
	*dest[3].(*string) = r.status
	*dest[4].(*time.Time) = r.createdAt
	*dest[5].(*time.Time) = r.updatedAt
	return nil
}

type scalarRow struct {
	value any
	err   error
}

func (r scalarRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *int64:
		*d = r.value.(int64)
	case *bool:
		*d = r.value.(bool)
	default:
		return fmt.Errorf("unsupported scan target %T", dest[0])
	}
	return nil
}
