package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/tollgate/pkg/tps"
)

func sampleRule(maxCount int64) *tps.ControlRule {
	return tps.NewControlRule().
		SetPointRule(tps.MustRule(maxCount, time.Second, "SUM", "intercept")).
		SetMonitorKeyRule("testKey:a*b", tps.MustRule(500, time.Second, "EACH", "intercept")).
		SetMonitorKeyRule("testKey:*", tps.MustRule(2000000, time.Second, "SUM", "monitor"))
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	modernc, err := NewSQLiteBackend(SQLiteConfig{Path: filepath.Join(dir, "modernc.db")})
	require.NoError(t, err)
	mattn, err := NewSQLiteBackend(SQLiteConfig{Path: filepath.Join(dir, "mattn.db"), Driver: DriverMattn})
	require.NoError(t, err)

	out := map[string]Backend{
		"memory":         NewMemoryBackend(),
		"sqlite/modernc": modernc,
		"sqlite/mattn":   mattn,
	}
	t.Cleanup(func() {
		for _, b := range out {
			b.Close()
		}
	})
	return out
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Ping(ctx))

			rec, err := b.Load(ctx, "configPublish")
			require.NoError(t, err)
			assert.Nil(t, rec, "missing point should load nil")

			require.NoError(t, b.Save(ctx, &Record{Point: "configPublish", Rule: sampleRule(5000), Source: "file"}))
			require.NoError(t, b.Save(ctx, &Record{Point: "alpha", Rule: sampleRule(10), Source: "api"}))

			rec, err = b.Load(ctx, "configPublish")
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, "file", rec.Source)
			assert.False(t, rec.UpdatedAt.IsZero())
			require.NotNil(t, rec.Rule.PointRule)
			assert.EqualValues(t, 5000, rec.Rule.PointRule.MaxCount)

			patterns := rec.Rule.MonitorKeyRules()
			require.Len(t, patterns, 2)
			assert.Equal(t, "testKey:a*b", patterns[0].Pattern)
			assert.Equal(t, tps.ModeEach, patterns[0].Rule.Mode)
			assert.Equal(t, "testKey:*", patterns[1].Pattern)
			assert.Equal(t, tps.ActionMonitor, patterns[1].Rule.Action)

			// Overwrite
			require.NoError(t, b.Save(ctx, &Record{Point: "configPublish", Rule: sampleRule(7), Source: "api"}))
			rec, err = b.Load(ctx, "configPublish")
			require.NoError(t, err)
			assert.EqualValues(t, 7, rec.Rule.PointRule.MaxCount)
			assert.Equal(t, "api", rec.Source)

			list, err := b.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "alpha", list[0].Point)
			assert.Equal(t, "configPublish", list[1].Point)

			require.NoError(t, b.Delete(ctx, "alpha"))
			require.NoError(t, b.Delete(ctx, "alpha"), "deleting twice is a no-op")
			list, err = b.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestBackendValidation(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, b.Save(ctx, nil))
			assert.Error(t, b.Save(ctx, &Record{Rule: sampleRule(1)}))
			assert.Error(t, b.Save(ctx, &Record{Point: "p"}))
			_, err := b.Load(ctx, "")
			assert.Error(t, err)
			assert.Error(t, b.Delete(ctx, ""))
		})
	}
}

func TestMemoryBackendIsolation(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	rule := sampleRule(5)
	require.NoError(t, b.Save(ctx, &Record{Point: "p", Rule: rule}))
	rule.PointRule.MaxCount = 99

	rec, err := b.Load(ctx, "p")
	require.NoError(t, err)
	assert.EqualValues(t, 5, rec.Rule.PointRule.MaxCount)

	rec.Rule.PointRule.MaxCount = 42
	again, _ := b.Load(ctx, "p")
	assert.EqualValues(t, 5, again.Rule.PointRule.MaxCount)

	require.NoError(t, b.Close())
	assert.True(t, errors.Is(b.Ping(ctx), ErrClosed))
	assert.ErrorIs(t, b.Save(ctx, &Record{Point: "p", Rule: rule}), ErrClosed)
}

func TestSQLiteBackendPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rules.db")

	b, err := NewSQLiteBackend(SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, &Record{Point: "p", Rule: sampleRule(3)}))
	require.NoError(t, b.Close())

	reopened, err := NewSQLiteBackend(SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.Load(ctx, "p")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.EqualValues(t, 3, rec.Rule.PointRule.MaxCount)
}

func TestSQLiteBackendConfig(t *testing.T) {
	_, err := NewSQLiteBackend(SQLiteConfig{})
	assert.Error(t, err)

	_, err = NewSQLiteBackend(SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db"), Driver: "postgres"})
	assert.Error(t, err)
}

func TestSQLiteBackendListKeepsUndecodableRows(t *testing.T) {
	ctx := context.Background()

	for _, driver := range []string{DriverModernc, DriverMattn} {
		t.Run(driver, func(t *testing.T) {
			b, err := NewSQLiteBackend(SQLiteConfig{Path: filepath.Join(t.TempDir(), "rules.db"), Driver: driver})
			require.NoError(t, err)
			defer b.Close()

			require.NoError(t, b.Save(ctx, &Record{Point: "good", Rule: sampleRule(3)}))
			require.NoError(t, b.Save(ctx, &Record{Point: "a-bad", Rule: sampleRule(4)}))
			_, err = b.db.ExecContext(ctx, `UPDATE tps_rules SET rule = ? WHERE point = ?`,
				`{"point_rule":{"max_count":-1}}`, "a-bad")
			require.NoError(t, err)

			records, err := b.List(ctx)
			require.NoError(t, err)
			require.Len(t, records, 2)

			assert.Equal(t, "a-bad", records[0].Point)
			assert.Nil(t, records[0].Rule)
			assert.ErrorIs(t, records[0].Err, tps.ErrInvalidRule)

			assert.Equal(t, "good", records[1].Point)
			require.NoError(t, records[1].Err)
			assert.EqualValues(t, 3, records[1].Rule.PointRule.MaxCount)

			_, err = b.Load(ctx, "a-bad")
			assert.ErrorIs(t, err, tps.ErrInvalidRule)
		})
	}
}
