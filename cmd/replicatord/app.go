package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Greenminalee/cubrid/internal/flags"
	"github.com/Greenminalee/cubrid/internal/logfeed"
	"github.com/Greenminalee/cubrid/internal/logrecord"
	"github.com/Greenminalee/cubrid/internal/pagebuffer"
	"github.com/Greenminalee/cubrid/internal/recovery"
	"github.com/Greenminalee/cubrid/internal/replay"
	"github.com/Greenminalee/cubrid/internal/stopchannel"
	"github.com/Greenminalee/cubrid/pkg/telemetry"
	"github.com/Greenminalee/cubrid/pkg/types"
	"github.com/Greenminalee/cubrid/pkg/util/loggerutil"
	"github.com/Greenminalee/cubrid/pkg/util/units"
)

var (
	logFileFlag = &cli.StringFlag{
		Name:     "log-file",
		Required: true,
		Usage:    "path to a length-framed log file to replay",
	}
	pageDirFlag = &cli.StringFlag{
		Name:  "page-dir",
		Usage: "on-disk directory for the page buffer; empty runs in memory",
	}
	pageCacheSizeFlag = &cli.StringFlag{
		Name:  "page-size",
		Value: "16KiB",
		Usage: "fixed page size, e.g. 16KiB",
	}
	startLSNFlag = &cli.Uint64Flag{
		Name:  "start-lsn",
		Value: 1,
		Usage: "LSN to begin replay from",
	}
	parallelCountFlag = &cli.IntFlag{
		Name:  "replication-parallel-count",
		Value: 0,
		Usage: "REPLICATION_PARALLEL_COUNT: 0 for synchronous replay, N for an N-worker parallel redo engine",
	}
	logCalcReplDelayFlag = &cli.BoolFlag{
		Name:  "log-calc-repl-delay",
		Value: false,
		Usage: "LOG_CALC_REPL_DELAY: log a debug line for every replication-delay measurement",
	}
	logPathFlag = &cli.StringFlag{
		Name:  "log-output",
		Usage: "path to write rotated logs to; empty logs to stderr only",
	}
	debugLogFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "enable development-mode console logging",
	}
)

func appFlags() []cli.Flag {
	f := []cli.Flag{
		logFileFlag,
		pageDirFlag,
		pageCacheSizeFlag,
		startLSNFlag,
		parallelCountFlag,
		logCalcReplDelayFlag,
		logPathFlag,
		debugLogFlag,
	}
	return append(f, flags.TelemetryFlags()...)
}

func runApp(c *cli.Context) (err error) {
	logger, err := loggerutil.New(loggerutil.Options{
		Path:  c.String(logPathFlag.Name),
		Debug: c.Bool(debugLogFlag.Name),
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, logger.Sync()) }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	meterProvider, err := flags.NewMeterProvider(ctx, c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, meterProvider.Shutdown(context.Background())) }()

	pageSize, err := units.FromByteSizeString(c.String(pageCacheSizeFlag.Name))
	if err != nil {
		return err
	}

	pageBuf, err := pagebuffer.New(logger.Named("pagebuffer"),
		pagebuffer.WithDir(c.String(pageDirFlag.Name)),
		pagebuffer.WithPageSize(int(pageSize)),
	)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pageBuf.Close()) }()

	table := recovery.NewTable()
	table.Register(types.RecoveryIndex(1), recovery.DefaultRedo)

	sink, err := telemetry.New(meterProvider.Meter("replicatord"), logger.Named("telemetry"), c.Bool(logCalcReplDelayFlag.Name))
	if err != nil {
		return err
	}

	seg := logrecord.NewSegment()
	stopFeed := stopchannel.New()
	feedErrCh := make(chan error, 1)
	go func() {
		feedErrCh <- logfeed.Tail(c.String(logFileFlag.Name), seg, stopFeed.StopC(), logger.Named("logfeed"))
	}()

	r, err := replay.New(types.LSN(c.Uint64(startLSNFlag.Name)), replay.Deps{
		Frontier:   seg.Frontier(),
		NewReader:  func() *logrecord.Reader { return logrecord.NewReader(seg) },
		PageBuffer: pageBuf,
		Table:      table,
		Sink:       sink,
		Logger:     logger,
	},
		replay.WithParallelCount(c.Int(parallelCountFlag.Name)),
	)
	if err != nil {
		return err
	}

	logger.Info("replicatord started", zap.Uint64("start_lsn", c.Uint64(startLSNFlag.Name)))
	<-ctx.Done()
	logger.Info("shutting down, draining replay")

	stopFeed.Stop()
	feedErr := <-feedErrCh

	drainErr := r.WaitReplicationFinishDuringShutdown()
	if drainErr != nil {
		logger.Error("drain failed", zap.Error(drainErr))
	}
	return multierr.Combine(feedErr, drainErr, r.Close())
}
