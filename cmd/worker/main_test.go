package main

import (
	"testing"

	"github.com/corezen/corezen/internal/app"
	_ "github.com/corezen/corezen/internal/testing/guard"
)

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode to be enabled by the guard import")
	}
	main()
}
