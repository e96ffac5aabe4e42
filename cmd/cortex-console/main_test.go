// ABOUTME: Shared test setup for the cortex-console command package
// ABOUTME: Disables ANSI colors so rendered output can be compared as plain text

package main

import (
	"os"
	"testing"

	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}
