package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinsim/twinsim/internal/config"
	"github.com/twinsim/twinsim/internal/geom"
)

func TestKwargsAccessors(t *testing.T) {
	kw := Kwargs{
		"pos":    []any{1.0, 2},
		"pair":   []float64{3, 4},
		"len":    60,
		"speed":  1.5,
		"layer":  1.0,
		"frac":   1.5,
		"flag":   true,
		"name":   "belt",
		"dir":    "South",
		"vecdir": []any{-1, 0},
		"diag":   []any{1, 1},
		"items":  []any{map[string]any{"color": "red"}},
	}

	v, err := kw.Vector("pos")
	require.NoError(t, err)
	assert.Equal(t, geom.V(1, 2), v)
	v, err = kw.Vector("pair")
	require.NoError(t, err)
	assert.Equal(t, geom.V(3, 4), v)
	_, err = kw.Vector("missing")
	assert.Error(t, err)
	v, err = kw.VectorOr("missing", geom.V(9, 9))
	require.NoError(t, err)
	assert.Equal(t, geom.V(9, 9), v)

	f, err := kw.Float("len", 0)
	require.NoError(t, err)
	assert.Equal(t, 60.0, f)
	f, err = kw.Float("other", 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)
	_, err = kw.Float("name", 0)
	assert.Error(t, err)

	n, err := kw.Int("layer", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = kw.Int("frac", 0)
	assert.Error(t, err)

	b, err := kw.Bool("flag", false)
	require.NoError(t, err)
	assert.True(t, b)
	_, err = kw.Bool("name", false)
	assert.Error(t, err)

	s, err := kw.String("name", "")
	require.NoError(t, err)
	assert.Equal(t, "belt", s)

	o, err := kw.Orientation("dir", geom.East)
	require.NoError(t, err)
	assert.Equal(t, geom.South, o)
	o, err = kw.Orientation("vecdir", geom.East)
	require.NoError(t, err)
	assert.Equal(t, geom.West, o)
	_, err = kw.Orientation("diag", geom.East)
	assert.Error(t, err)
	o, err = kw.Orientation("missing", geom.North)
	require.NoError(t, err)
	assert.Equal(t, geom.North, o)

	maps, ok, err := kw.Maps("items")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "red", maps[0]["color"])
	_, ok, err = kw.Maps("missing")
	assert.NoError(t, err)
	assert.False(t, ok)
	_, _, err = kw.Maps("name")
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	for ext, want := range map[string]Format{".json": FormatJSON, ".yaml": FormatYAML, ".YML": FormatYAML} {
		f, err := FormatOf("layout" + ext)
		require.NoError(t, err, ext)
		assert.Equal(t, want, f, ext)
	}
	_, err := FormatOf("layout.toml")
	assert.Error(t, err)
}

func sampleRecord() Record {
	return Record{Type: WorldTag, Children: []Record{
		{Type: "Wall", Kwargs: Kwargs{"pos": []float64{0, 0}, "size": []float64{5, 5}}, Children: []Record{}},
		{Type: "Module", Kwargs: Kwargs{"name": "m1"}, Children: []Record{
			{Type: "Conveyor", Kwargs: Kwargs{"length": 100.0}, Children: []Record{}},
		}},
	}}
}

func TestFileRoundTrip(t *testing.T) {
	rec := sampleRecord()
	assert.Equal(t, 4, rec.Count())

	for _, name := range []string{"plant.json", "plant.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteFile(path, rec))
			_, err := os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err), "temp file renamed away")

			back, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, rec.Count(), back.Count())
			assert.Equal(t, "Module", back.Children[1].Type)
			assert.Equal(t, "m1", back.Children[1].Kwargs["name"])
			length, err := back.Children[1].Children[0].Kwargs.Float("length", 0)
			require.NoError(t, err)
			assert.Equal(t, 100.0, length)
		})
	}
}

func TestDecodeErrorsAreDeserialize(t *testing.T) {
	_, err := Unmarshal(FormatJSON, []byte(`{"type": `))
	assert.ErrorIs(t, err, ErrDeserialize)
	_, err = Unmarshal(FormatYAML, []byte("type: [unclosed"))
	assert.ErrorIs(t, err, ErrDeserialize)
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "twin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	_, err := s.LatestSnapshot(ctx, "plant")
	require.ErrorIs(t, err, ErrNotFound)

	first := NewSnapshot("plant", 10, sampleRecord())
	require.NoError(t, s.SaveSnapshot(ctx, first))
	second := NewSnapshot("plant", 20, Record{Type: WorldTag, Children: []Record{}})
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, s.SaveSnapshot(ctx, second))
	require.NoError(t, s.SaveSnapshot(ctx, NewSnapshot("other", 5, sampleRecord())))

	got, err := s.LatestSnapshot(ctx, "plant")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, uint64(20), got.Tick)
	assert.Equal(t, 0, got.Entities)
	assert.Equal(t, WorldTag, got.Layout.Type)

	list, err := s.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 3, first.Entities)
}

func TestSQLiteJournal(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	now := time.Now().UTC()

	require.NoError(t, s.AppendJournal(ctx, nil))
	entries := []JournalEntry{
		NewJournalEntry("m1", 3, "idle", "order_latched", 7, 0, now),
		NewJournalEntry("m1", 9, "order_latched", "releasing", 7, 0, now.Add(time.Millisecond)),
		NewJournalEntry("m2", 9, "idle", "order_latched", 1, 0, now),
	}
	require.NoError(t, s.AppendJournal(ctx, entries))

	got, err := s.Journal(ctx, "m1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "releasing", got[0].To)
	assert.Equal(t, uint64(9), got[0].Tick)
	assert.Equal(t, int32(7), got[1].Order)
	assert.Equal(t, entries[0].ID, got[1].ID)
}

func TestOpenNone(t *testing.T) {
	s, err := Open(context.Background(), testDBConfig("none"), nil)
	require.NoError(t, err)
	assert.Nil(t, s)
	_, err = Open(context.Background(), testDBConfig("oracle"), nil)
	assert.Error(t, err)
}

func testDBConfig(driver string) config.DatabaseConfig {
	return config.DatabaseConfig{Driver: driver}
}
