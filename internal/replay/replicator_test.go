package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/pagebuffer"
	"github.com/Greenminalee/cubrid/internal/recovery"
	"github.com/Greenminalee/cubrid/pkg/telemetry"
	"github.com/Greenminalee/cubrid/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testRecoveryIndex types.RecoveryIndex = 1

func newTestDeps(t *testing.T) (Deps, *logrecord.Segment, *pagebuffer.Buffer, *telemetry.Recording) {
	t.Helper()
	seg := logrecord.NewSegment()
	buf, err := pagebuffer.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Close() })

	table := recovery.NewTable()
	table.Register(testRecoveryIndex, recovery.DefaultRedo)

	sink := telemetry.NewRecording()

	deps := Deps{
		Frontier:   seg.Frontier(),
		NewReader:  func() *logrecord.Reader { return logrecord.NewReader(seg) },
		PageBuffer: buf,
		Table:      table,
		Sink:       sink,
	}
	return deps, seg, buf, sink
}

func appendRedo(seg *logrecord.Segment, lsn, forward types.LSN, pid types.PID, body []byte) {
	hdr := logrecord.Header{
		Type:          logrecord.TypeRedo,
		LSN:           lsn,
		ForwardLSN:    forward,
		RecoveryIndex: testRecoveryIndex,
		TargetPID:     pid,
	}
	seg.Append(lsn, forward, logrecord.EncodeHeader(hdr, body))
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestSingleRedoRecord(t *testing.T) {
	deps, seg, buf, _ := newTestDeps(t)
	pid := types.PID{VolumeID: 1, PageNumber: 7}
	appendRedo(seg, 100, 120, pid, []byte("hello"))

	r, err := New(100, deps)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WaitPastTargetLSN(100))
	require.Equal(t, types.LSN(120), r.ReplayLSN())
	require.Equal(t, types.LSN(100), buf.LSN(pid))
	require.True(t, buf.IsDirty(pid))
}

func TestParallelPerPageOrdering(t *testing.T) {
	deps, seg, buf, _ := newTestDeps(t)

	pidA := types.PID{VolumeID: 1, PageNumber: 1}
	pidB := types.PID{VolumeID: 1, PageNumber: 2}

	lsn := types.LSN(1)
	for i := 0; i < 500; i++ {
		appendRedo(seg, lsn, lsn+1, pidA, []byte{byte(i)})
		lsn++
		appendRedo(seg, lsn, lsn+1, pidB, []byte{byte(i)})
		lsn++
	}

	r, err := New(1, deps, WithParallelCount(4))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WaitPastTargetLSN(lsn-1))
	require.NoError(t, r.WaitReplicationFinishDuringShutdown())

	require.Equal(t, types.LSN(999), buf.LSN(pidA))
	require.Equal(t, types.LSN(1000), buf.LSN(pidB))
	require.True(t, buf.IsDirty(pidA))
	require.True(t, buf.IsDirty(pidB))
}

func TestCommitDelayMeasurement(t *testing.T) {
	deps, seg, _, sink := newTestDeps(t)

	fakeNow := int64(1_000_000)
	deps.NowMS = func() int64 { return fakeNow }

	hdr := logrecord.Header{Type: logrecord.TypeCommit, LSN: 10, ForwardLSN: 20}
	seg.Append(10, 20, logrecord.EncodeHeader(hdr, logrecord.EncodeDelayBody(fakeNow-50)))

	r, err := New(10, deps)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WaitPastTargetLSN(10))
	waitForCondition(t, time.Second, func() bool { return len(sink.Delays()) == 1 })
	require.Equal(t, []int64{50}, sink.Delays())
}

func TestBogusCommitTimeSkipped(t *testing.T) {
	deps, seg, _, sink := newTestDeps(t)

	hdr := logrecord.Header{Type: logrecord.TypeCommit, LSN: 10, ForwardLSN: 20}
	seg.Append(10, 20, logrecord.EncodeHeader(hdr, logrecord.EncodeDelayBody(-1)))

	r, err := New(10, deps)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WaitPastTargetLSN(10))
	waitForCondition(t, time.Second, func() bool { return len(sink.Skipped()) == 1 })
	require.Empty(t, sink.Delays())
	require.Equal(t, types.LSN(20), r.ReplayLSN())
}

func TestWaitForTargetOrdering(t *testing.T) {
	deps, seg, _, _ := newTestDeps(t)

	r, err := New(1, deps, WithParallelCount(2))
	require.NoError(t, err)
	defer r.Close()

	firstDone := make(chan struct{})
	secondDone := make(chan struct{})
	go func() {
		require.NoError(t, r.WaitPastTargetLSN(10))
		close(firstDone)
	}()
	go func() {
		require.NoError(t, r.WaitPastTargetLSN(20))
		close(secondDone)
	}()

	pid := types.PID{VolumeID: 1, PageNumber: 1}
	appendRedo(seg, 1, 10, pid, []byte("a"))
	appendRedo(seg, 10, 11, pid, []byte("b"))

	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("first waiter never unblocked")
	}
	select {
	case <-secondDone:
		t.Fatal("second waiter unblocked before its target was crossed")
	case <-time.After(50 * time.Millisecond):
	}

	appendRedo(seg, 11, 21, pid, []byte("c"))
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second waiter never unblocked")
	}
}

func TestMixedRecordKindsRoundTrip(t *testing.T) {
	deps, seg, buf, sink := newTestDeps(t)

	redoPID := types.PID{VolumeID: 1, PageNumber: 1}
	mvccPID := types.PID{VolumeID: 1, PageNumber: 2}
	rootPID := types.PID{VolumeID: 1, PageNumber: 3}

	fakeNow := int64(5_000_000)
	deps.NowMS = func() int64 { return fakeNow }

	seg.Append(1, 2, logrecord.EncodeHeader(logrecord.Header{
		Type:          logrecord.TypeRedo,
		LSN:           1,
		ForwardLSN:    2,
		RecoveryIndex: testRecoveryIndex,
		TargetPID:     redoPID,
	}, []byte("page-one")))

	seg.Append(2, 3, logrecord.EncodeHeader(logrecord.Header{
		Type:          logrecord.TypeMVCCRedo,
		LSN:           2,
		ForwardLSN:    3,
		MVCCID:        types.MVCCID(42),
		RecoveryIndex: testRecoveryIndex,
		TargetPID:     mvccPID,
	}, []byte("page-two")))

	btreeID := logrecord.BtreeID{VolumeID: rootPID.VolumeID, RootPageID: rootPID.PageNumber}
	stats := logrecord.UniqueStats{Keys: 10, OIDs: 20, Nulls: 1}
	seg.Append(3, 4, logrecord.EncodeHeader(logrecord.Header{
		Type:          logrecord.TypeRedo,
		LSN:           3,
		ForwardLSN:    4,
		RecoveryIndex: recovery.GlobalUniqueStatsCommit,
	}, logrecord.EncodeBtreeStatsBody(btreeID, stats)))

	seg.Append(4, 5, logrecord.EncodeHeader(logrecord.Header{
		Type:       logrecord.TypeCommit,
		LSN:        4,
		ForwardLSN: 5,
	}, logrecord.EncodeDelayBody(fakeNow-30)))

	r, err := New(1, deps)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WaitPastTargetLSN(4))
	waitForCondition(t, time.Second, func() bool { return len(sink.Delays()) == 1 })

	require.Equal(t, types.LSN(1), buf.LSN(redoPID))
	page, err := buf.Pin(redoPID, pagebuffer.PurposeRedo)
	require.NoError(t, err)
	require.Equal(t, []byte("page-one"), page.Bytes[:len("page-one")])
	require.NoError(t, buf.Unpin(page))

	require.Equal(t, types.LSN(2), buf.LSN(mvccPID))
	require.Equal(t, types.MVCCID(42), r.MVCCNextID())

	rootPage, err := buf.Pin(rootPID, pagebuffer.PurposeBtreeStats)
	require.NoError(t, err)
	require.Equal(t, types.LSN(3), rootPage.LSN)
	require.NoError(t, buf.Unpin(rootPage))

	require.Equal(t, []int64{30}, sink.Delays())
	require.Equal(t, types.LSN(5), r.ReplayLSN())
}

func TestParallelDelayThroughSentinelQueue(t *testing.T) {
	deps, seg, _, sink := newTestDeps(t)

	fakeNow := int64(2_000_000)
	deps.NowMS = func() int64 { return fakeNow }

	hdr := logrecord.Header{Type: logrecord.TypeCommit, LSN: 10, ForwardLSN: 20}
	seg.Append(10, 20, logrecord.EncodeHeader(hdr, logrecord.EncodeDelayBody(fakeNow-75)))

	r, err := New(10, deps, WithParallelCount(2))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WaitPastTargetLSN(10))
	waitForCondition(t, time.Second, func() bool { return len(sink.Delays()) == 1 })
	require.Equal(t, []int64{75}, sink.Delays())
}

const externRecoveryIndex types.RecoveryIndex = 2

func TestDBExternRedoInvokesRecoveryFunctionWithNilPage(t *testing.T) {
	deps, seg, _, _ := newTestDeps(t)

	var gotPage *pagebuffer.Page
	var gotBytes []byte
	called := make(chan struct{})
	deps.Table.Register(externRecoveryIndex, func(ctx context.Context, page *pagebuffer.Page, payload logrecord.GenericPayload) error {
		gotPage = page
		gotBytes = payload.Bytes
		close(called)
		return nil
	})

	hdr := logrecord.Header{
		Type:          logrecord.TypeDBExternRedo,
		LSN:           1,
		ForwardLSN:    2,
		RecoveryIndex: externRecoveryIndex,
	}
	seg.Append(1, 2, logrecord.EncodeHeader(hdr, []byte("extern-descriptor")))

	r, err := New(1, deps)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WaitPastTargetLSN(1))
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("extern recovery function never invoked")
	}
	require.Nil(t, gotPage)
	require.Equal(t, []byte("extern-descriptor"), gotBytes)
}

func TestShutdownDrainIsIdempotent(t *testing.T) {
	deps, seg, _, _ := newTestDeps(t)

	pid := types.PID{VolumeID: 1, PageNumber: 1}
	lsn := types.LSN(1)
	for i := 0; i < 200; i++ {
		appendRedo(seg, lsn, lsn+1, pid, []byte{byte(i)})
		lsn++
	}

	r, err := New(1, deps, WithParallelCount(2))
	require.NoError(t, err)

	require.NoError(t, r.WaitReplicationFinishDuringShutdown())
	require.NoError(t, r.WaitReplicationFinishDuringShutdown())
	require.NoError(t, r.Close())
}
