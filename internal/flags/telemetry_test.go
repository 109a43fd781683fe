package flags

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestNewMeterProviderDefaultsToNoop(t *testing.T) {
	app := &cli.App{
		Writer:    io.Discard,
		ErrWriter: io.Discard,
		Flags:     TelemetryFlags(),
		Action: func(c *cli.Context) error {
			mp, err := NewMeterProvider(context.Background(), c)
			require.NoError(t, err)
			require.NotNil(t, mp)
			return mp.Shutdown(context.Background())
		},
	}
	require.NoError(t, app.Run([]string{"app"}))
}

func TestNewMeterProviderStdoutExporter(t *testing.T) {
	app := &cli.App{
		Writer:    io.Discard,
		ErrWriter: io.Discard,
		Flags:     TelemetryFlags(),
		Action: func(c *cli.Context) error {
			mp, err := NewMeterProvider(context.Background(), c)
			require.NoError(t, err)
			return mp.Shutdown(context.Background())
		},
	}
	require.NoError(t, app.Run([]string{"app", "--telemetry-exporter=stdout"}))
}
