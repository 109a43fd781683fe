package recovery

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/pagebuffer"
)

func TestDefaultBtreeRootStatsUpdaterWritesCounters(t *testing.T) {
	updater := NewDefaultBtreeRootStatsUpdater()
	page := &pagebuffer.Page{Bytes: make([]byte, 24)}
	stats := logrecord.UniqueStats{Keys: 10, OIDs: 11, Nulls: 2}

	require.NoError(t, updater.UpdateStats(page, stats))

	require.Equal(t, uint64(10), binary.BigEndian.Uint64(page.Bytes[0:]))
	require.Equal(t, uint64(11), binary.BigEndian.Uint64(page.Bytes[8:]))
	require.Equal(t, uint64(2), binary.BigEndian.Uint64(page.Bytes[16:]))
}

func TestDefaultBtreeRootStatsUpdaterRejectsUndersizedPage(t *testing.T) {
	updater := NewDefaultBtreeRootStatsUpdater()
	page := &pagebuffer.Page{Bytes: make([]byte, 4)}

	require.NoError(t, updater.UpdateStats(page, logrecord.UniqueStats{Keys: 1}))
	require.Equal(t, []byte{0, 0, 0, 0}, page.Bytes)
}
