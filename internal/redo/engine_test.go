package redo

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingJob struct {
	key types.PID
	lsn types.LSN
	out *[]types.LSN
	mu  *sync.Mutex
}

func (j recordingJob) Key() PageKey   { return KeyForPID(j.key) }
func (j recordingJob) LSN() types.LSN { return j.lsn }
func (j recordingJob) Execute(wctx *WorkerContext) error {
	j.mu.Lock()
	*j.out = append(*j.out, j.lsn)
	j.mu.Unlock()
	return nil
}

func newTestEngine(t *testing.T, workers int) *Engine {
	t.Helper()
	seg := logrecord.NewSegment()
	eng, err := New(nil, func() *logrecord.Reader { return logrecord.NewReader(seg) }, WithWorkerCount(workers))
	require.NoError(t, err)
	eng.Start()
	return eng
}

func TestEnginePerPageOrdering(t *testing.T) {
	eng := newTestEngine(t, 4)

	pids := []types.PID{{VolumeID: 1, PageNumber: 1}, {VolumeID: 1, PageNumber: 2}}
	results := map[types.PID]*[]types.LSN{}
	var mu sync.Mutex
	for _, p := range pids {
		out := []types.LSN{}
		results[p] = &out
	}

	const perPage = 500
	for i := 0; i < perPage; i++ {
		for _, p := range pids {
			lsn := types.LSN(i + 1)
			require.NoError(t, eng.Add(recordingJob{key: p, lsn: lsn, out: results[p], mu: &mu}))
		}
	}

	eng.SetAddingFinished()
	require.NoError(t, eng.WaitForTerminationAndStopExecution())

	for _, p := range pids {
		out := *results[p]
		require.Len(t, out, perPage)
		for i := 1; i < len(out); i++ {
			require.Less(t, out[i-1], out[i])
		}
	}
}

func TestEngineWatermarkAdvancesAndBlocksWaiters(t *testing.T) {
	eng := newTestEngine(t, 2)
	defer func() {
		eng.SetAddingFinished()
		require.NoError(t, eng.WaitForTerminationAndStopExecution())
	}()

	eng.PublishOuterBound(10)
	require.Equal(t, types.LSN(10), eng.MinimumLogLSN())

	done := make(chan struct{})
	go func() {
		require.NoError(t, eng.WaitPastTargetLSN(10))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waiter returned before watermark advanced")
	case <-time.After(50 * time.Millisecond):
	}

	eng.PublishOuterBound(11)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter did not wake after watermark advanced")
	}
}

func TestEngineWaitForIdle(t *testing.T) {
	eng := newTestEngine(t, 2)
	defer func() {
		eng.SetAddingFinished()
		require.NoError(t, eng.WaitForTerminationAndStopExecution())
	}()

	out := []types.LSN{}
	var mu sync.Mutex
	for i := 0; i < 100; i++ {
		require.NoError(t, eng.Add(recordingJob{key: types.PID{VolumeID: 1, PageNumber: types.PageNumber(i % 3)}, lsn: types.LSN(i + 1), out: &out, mu: &mu}))
	}
	require.NoError(t, eng.WaitForIdle())
	mu.Lock()
	require.Len(t, out, 100)
	mu.Unlock()
}

func TestEngineAddAfterFinishedRejected(t *testing.T) {
	eng := newTestEngine(t, 1)
	eng.SetAddingFinished()
	out := []types.LSN{}
	var mu sync.Mutex
	err := eng.Add(recordingJob{key: types.PID{VolumeID: 1, PageNumber: 1}, lsn: 1, out: &out, mu: &mu})
	require.Error(t, err)
	require.NoError(t, eng.WaitForTerminationAndStopExecution())
}

type failingJob struct {
	key types.PID
	lsn types.LSN
	err error
}

func (j failingJob) Key() PageKey    { return KeyForPID(j.key) }
func (j failingJob) LSN() types.LSN  { return j.lsn }
func (j failingJob) Execute(wctx *WorkerContext) error { return j.err }

func TestEngineJobFailureStopsPoolAndIsReported(t *testing.T) {
	seg := logrecord.NewSegment()
	var reported error
	var mu sync.Mutex
	eng, err := New(nil, func() *logrecord.Reader { return logrecord.NewReader(seg) },
		WithWorkerCount(2),
		WithOnJobError(func(jobErr error) {
			mu.Lock()
			reported = jobErr
			mu.Unlock()
		}),
	)
	require.NoError(t, err)
	eng.Start()

	wantErr := errors.New("recovery function blew up")
	require.NoError(t, eng.Add(failingJob{key: types.PID{VolumeID: 1, PageNumber: 1}, lsn: 1, err: wantErr}))

	eng.SetAddingFinished()
	err = eng.WaitForTerminationAndStopExecution()
	require.ErrorIs(t, err, wantErr)

	mu.Lock()
	require.ErrorIs(t, reported, wantErr)
	mu.Unlock()
}

func TestEngineWaitForIdleReturnsErrorAfterJobFailure(t *testing.T) {
	seg := logrecord.NewSegment()
	eng, err := New(nil, func() *logrecord.Reader { return logrecord.NewReader(seg) }, WithWorkerCount(1))
	require.NoError(t, err)
	eng.Start()
	defer func() {
		eng.SetAddingFinished()
		_ = eng.WaitForTerminationAndStopExecution()
	}()

	wantErr := errors.New("recovery function blew up")
	require.NoError(t, eng.Add(failingJob{key: types.PID{VolumeID: 1, PageNumber: 1}, lsn: 1, err: wantErr}))

	require.Eventually(t, func() bool {
		return eng.WaitForIdle() != nil
	}, time.Second, time.Millisecond)
}
