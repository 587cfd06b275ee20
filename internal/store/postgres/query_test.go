package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

func TestWhereWindow(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	w := newWhere()
	w.add("lower(maker) = ?", "0xabc")
	got := w.window(domain.ListOpts{Since: &since, Limit: 10, Offset: 20})

	assert.Equal(t, " WHERE lower(maker) = $1 AND created_at >= $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4", got)
	assert.Equal(t, []any{"0xabc", since, 10, 20}, w.args)
}

func TestWhereWindowEmpty(t *testing.T) {
	w := newWhere()
	assert.Equal(t, " ORDER BY created_at DESC", w.window(domain.ListOpts{}))
	assert.Empty(t, w.args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/polytrade?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "polytrade"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestMigrationFilesOrdered(t *testing.T) {
	names, err := migrationFiles()
	assert.NoError(t, err)
	assert.Equal(t, []string{"001_signed_orders.sql", "002_audit_log.sql"}, names)
}
