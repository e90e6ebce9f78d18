package main

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"emotext/internal/vision"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	dist, err := fs.Sub(assets, "frontend/dist")
	if err != nil {
		log.Fatalf("emotext: embedded assets: %v", err)
	}

	app := NewApp()
	err = wails.Run(&options.App{
		Title:     "emotext",
		Width:     960,
		Height:    640,
		MinWidth:  480,
		MinHeight: 360,
		AssetServer: &assetserver.Options{
			Assets:  dist,
			Handler: modelAssets{app: app},
		},
		BackgroundColour: &options.RGBA{R: 250, G: 250, B: 250, A: 255},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind:             []interface{}{app},
	})
	if err != nil {
		log.Fatalf("emotext: %v", err)
	}
}

// modelAssets serves detection model artifacts once the services are up.
type modelAssets struct {
	app *App
}

func (m modelAssets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, vision.URLPrefix) {
		http.NotFound(w, r)
		return
	}
	services, err := m.app.ready()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	services.Models.Handler().ServeHTTP(w, r)
}
