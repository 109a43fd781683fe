package recovery

import (
	"encoding/binary"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/pagebuffer"
)

// BtreeRootStatsUpdater applies decoded unique-statistics counters to a
// pinned B-tree root page, mirroring btree_root_update_stats. The default
// implementation encodes the counters as the page's entire content,
// since this module owns no richer B-tree root layout.
type BtreeRootStatsUpdater interface {
	UpdateStats(page *pagebuffer.Page, stats logrecord.UniqueStats) error
}

type defaultBtreeRootStatsUpdater struct{}

// NewDefaultBtreeRootStatsUpdater returns the stock updater used unless
// the host process supplies a richer one.
func NewDefaultBtreeRootStatsUpdater() BtreeRootStatsUpdater {
	return defaultBtreeRootStatsUpdater{}
}

func (defaultBtreeRootStatsUpdater) UpdateStats(page *pagebuffer.Page, stats logrecord.UniqueStats) error {
	if len(page.Bytes) < 24 {
		return nil
	}
	binary.BigEndian.PutUint64(page.Bytes[0:], uint64(stats.Keys))
	binary.BigEndian.PutUint64(page.Bytes[8:], uint64(stats.OIDs))
	binary.BigEndian.PutUint64(page.Bytes[16:], uint64(stats.Nulls))
	return nil
}
