// Package flags collects the CLI flag definitions shared by
// cmd/replicatord, grounded on the teacher's own internal/flags package:
// telemetry exporter selection plus optional host/runtime instrumentation.
package flags

import (
	"context"

	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	TelemetryExporterNoop = "noop"
	TelemetryExporterStdout = "stdout"
	TelemetryExporterOTLP = "otlp"
)

var (
	TelemetryExporterFlag = &cli.StringFlag{
		Name:  "telemetry-exporter",
		Value: TelemetryExporterNoop,
		Usage: "metrics exporter: noop, stdout, or otlp",
	}
	TelemetryOTLPEndpointFlag = &cli.StringFlag{
		Name:  "telemetry-otlp-endpoint",
		Value: "127.0.0.1:4317",
		Usage: "OTLP gRPC collector endpoint",
	}
	TelemetryOTLPInsecureFlag = &cli.BoolFlag{
		Name:  "telemetry-otlp-insecure",
		Value: true,
		Usage: "disable TLS when dialing the OTLP collector",
	}
	TelemetryHostFlag = &cli.BoolFlag{
		Name:  "telemetry-host",
		Value: false,
		Usage: "emit host resource-utilization metrics",
	}
	TelemetryRuntimeFlag = &cli.BoolFlag{
		Name:  "telemetry-runtime",
		Value: false,
		Usage: "emit Go runtime metrics",
	}
)

// TelemetryFlags is the flag set cmd/replicatord registers.
func TelemetryFlags() []cli.Flag {
	return []cli.Flag{
		TelemetryExporterFlag,
		TelemetryOTLPEndpointFlag,
		TelemetryOTLPInsecureFlag,
		TelemetryHostFlag,
		TelemetryRuntimeFlag,
	}
}

// NewMeterProvider builds an SDK meter provider from the parsed
// telemetry flags, optionally starting the host/runtime instrumentation
// packages against it.
func NewMeterProvider(ctx context.Context, c *cli.Context) (*metric.MeterProvider, error) {
	var reader metric.Reader
	switch c.String(TelemetryExporterFlag.Name) {
	case TelemetryExporterStdout:
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		reader = metric.NewPeriodicReader(exp)
	case TelemetryExporterOTLP:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(c.String(TelemetryOTLPEndpointFlag.Name))}
		if c.Bool(TelemetryOTLPInsecureFlag.Name) {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		reader = metric.NewPeriodicReader(exp)
	default:
		reader = nil
	}

	res, err := resource.New(ctx, resource.WithAttributes())
	if err != nil {
		return nil, err
	}

	var mpOpts []metric.Option
	mpOpts = append(mpOpts, metric.WithResource(res))
	if reader != nil {
		mpOpts = append(mpOpts, metric.WithReader(reader))
	}
	mp := metric.NewMeterProvider(mpOpts...)

	if c.Bool(TelemetryHostFlag.Name) {
		if err := host.Start(host.WithMeterProvider(mp)); err != nil {
			return nil, err
		}
	}
	if c.Bool(TelemetryRuntimeFlag.Name) {
		if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
			return nil, err
		}
	}
	return mp, nil
}
