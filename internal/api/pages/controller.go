package pages

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	assets fs.FS
}

// Pages maps the routes of the UI to the HTML documents which serve them.
var Pages = map[string]string{
	"/":          "index.html",
	"/youtube":   "youtube.html",
	"/instagram": "instagram.html",
	"/facebook":  "facebook.html",
	"/tiktok":    "tiktok.html",
}

// New constructs a pages controller serving the assets provided. If
// overrideDir is not empty the assets are instead served from that
// directory, which must exist.
func New(assets fs.FS, overrideDir string) (*Controller, error) {
	if overrideDir != "" {
		info, err := os.Stat(overrideDir)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("web directory %s is not a readable directory", overrideDir)
		}
		assets = os.DirFS(overrideDir)
	}

	return &Controller{assets: assets}, nil
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	for route, document := range Pages {
		eg.FileFS(route, document, controller.assets)
	}

	for _, dir := range []string{"css", "js"} {
		if sub, err := fs.Sub(controller.assets, dir); err == nil {
			eg.StaticFS("/"+dir, sub)
		}
	}
}
