package main

import (
	"embed"
	"io/fs"

	"github.com/memoraos/neuralmap/internal/server"
)

// The ui directory holds the thin canvas renderer. It draws frames as sent
// and forwards input; every layout decision is made server-side.
//
//go:embed all:ui
var uiDist embed.FS

func init() {
	sub, err := fs.Sub(uiDist, "ui")
	if err != nil {
		return
	}
	server.SetUI(sub)
}
