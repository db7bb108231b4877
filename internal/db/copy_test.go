package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var holdingCols = []string{"filing_id", "shares"}

func TestCopyRows_EmptyIsNoop(t *testing.T) {
	n, err := CopyRows(context.Background(), nil, "holdings_normalized", holdingCols, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyRows_Pool(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"holdings_normalized"}, holdingCols).WillReturnResult(3)

	n, err := CopyRows(context.Background(), mock, "holdings_normalized", holdingCols,
		[][]any{{int64(1), "10"}, {int64(1), "20"}, {int64(2), "30"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyRows_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"holdings_normalized"}, holdingCols).WillReturnError(errors.New("copy failed"))

	_, err = CopyRows(context.Background(), mock, "holdings_normalized", holdingCols, [][]any{{int64(1), "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO holdings_normalized")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyRows_InsideTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"holdings_normalized"}, holdingCols).WillReturnResult(2)
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	n, err := CopyRows(ctx, tx, "holdings_normalized", holdingCols, [][]any{{int64(1), "1"}, {int64(1), "2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
