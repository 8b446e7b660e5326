package processor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
)

func TestSnapshotStore_SaveLoad(t *testing.T) {
	store := NewSnapshotStore(filepath.Join(t.TempDir(), "nested", "sheet.bin"))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	sheet := &models.RawSheet{
		SpreadsheetID: "sheet-1",
		SheetName:     "Schedule",
		Range:         "Schedule!A:U",
		Rows:          [][]string{{"2024-01-07", "", "李 明"}, {"2024-01-14"}},
		FetchedAt:     time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		Source:        "sheets",
	}
	require.NoError(t, store.Save(sheet))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sheet.Rows, loaded.Rows)
	assert.Equal(t, sheet.SpreadsheetID, loaded.SpreadsheetID)
	assert.True(t, sheet.FetchedAt.Equal(loaded.FetchedAt))
}

func TestDecodeSheet_RejectsForeignData(t *testing.T) {
	_, err := DecodeSheet([]byte("plain text"))
	assert.Error(t, err)

	_, err = DecodeSheet(append(append([]byte{}, snapshotMagic...), 0xff, 0x00))
	assert.Error(t, err)
}

func TestCompressSnapshot(t *testing.T) {
	data := []byte("2024-01-07,Alice,Alice,2024-01-07,Alice,Alice")
	out, err := DecompressSnapshot(CompressSnapshot(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
