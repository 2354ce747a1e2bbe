package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rightupnext/billing/internal/app"
	_ "github.com/rightupnext/billing/testing"
)

func TestWorkerSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.NotPanics(t, main)
}
