package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventsCmd_Empty(t *testing.T) {
	app := newTestApp(t)
	ctx := withCLIContext(app, OutputFlags{})

	cmd := newEventsCmd()
	cmd.SetContext(ctx)

	require.NoError(t, cmd.RunE(cmd, nil))
}

func TestEventsCmd_WithEventsAndJSON(t *testing.T) {
	app := newTestApp(t)
	app.Events.SendReady()
	app.Events.SendShutdown("test")

	ctx := withCLIContext(app, OutputFlags{JSON: true})

	cmd := newEventsCmd()
	cmd.SetContext(ctx)

	require.NoError(t, cmd.RunE(cmd, nil))
}
