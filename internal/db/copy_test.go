package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "benchmark_records", []string{"id", "provider"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"benchmark_records"}, []string{"id", "provider"}).WillReturnResult(3)

	rows := [][]any{{"r1", "claude"}, {"r2", "perplexity"}, {"r3", "openrouter"}}
	n, err := CopyFrom(context.Background(), mock, "benchmark_records", []string{"id", "provider"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"benchmark_records"}, []string{"id", "provider"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"r1", "claude"}}
	_, err = CopyFrom(context.Background(), mock, "benchmark_records", []string{"id", "provider"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO benchmark_records")
	assert.NoError(t, mock.ExpectationsWereMet())
}
