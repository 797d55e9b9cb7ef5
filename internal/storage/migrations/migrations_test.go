package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var (
	createWaypoints = Migration{
		Version:     1,
		Description: "create waypoints",
		Up:          `CREATE TABLE waypoints (name TEXT PRIMARY KEY, planet TEXT NOT NULL)`,
	}
	addZone = Migration{
		Version:     2,
		Description: "add zone to waypoints",
		Up:          `ALTER TABLE waypoints ADD COLUMN zone TEXT NOT NULL DEFAULT ''`,
	}
)

func TestApplyInOrderAndIdempotent(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	// Registered out of order on purpose.
	m := NewManager(addZone, createWaypoints)
	assert.Equal(t, 2, m.Latest())

	applied, err := m.Apply(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	v, err := Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = db.Exec(`INSERT INTO waypoints (name, planet, zone) VALUES ('theed_palace', 'naboo', 'theed')`)
	require.NoError(t, err)

	applied, err = m.Apply(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestApplyFailedMigrationRollsBack(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	broken := Migration{Version: 2, Description: "broken", Up: `ALTER TABLE nowhere ADD COLUMN x TEXT`}
	applied, err := NewManager(createWaypoints, broken).Apply(ctx, db)
	require.Error(t, err)
	assert.Equal(t, 1, applied)

	v, err := Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestApplyRejectsNewerDatabase(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	_, err := NewManager(createWaypoints, addZone).Apply(ctx, db)
	require.NoError(t, err)

	_, err = NewManager(createWaypoints).Apply(ctx, db)
	assert.ErrorContains(t, err, "newer than this build")
}
