package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestAppFlagsIncludesRequiredLogFile(t *testing.T) {
	names := map[string]bool{}
	for _, f := range appFlags() {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	require.True(t, names[logFileFlag.Name])
	require.True(t, names[parallelCountFlag.Name])
	require.True(t, names[logCalcReplDelayFlag.Name])
}

func TestAppRequiresLogFileFlag(t *testing.T) {
	app := &cli.App{
		Name:   "replicatord",
		Flags:  appFlags(),
		Action: func(c *cli.Context) error { return nil },
	}
	err := app.Run([]string{"replicatord"})
	require.Error(t, err)
}
