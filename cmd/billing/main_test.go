package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rightupnext/billing/internal/app"
	_ "github.com/rightupnext/billing/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
