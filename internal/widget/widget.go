// Package widget serves the browser upload page. The page resizes the picked
// image client-side and posts it to /upload with the key taken from the URL.
package widget

import (
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/photoslot/service/internal/response"
)

//go:embed upload.html
var uploadPage string

var uploadTemplate = template.Must(template.New("upload").Parse(uploadPage))

// Client-side resize parameters.
const (
	maxEdge = 200
	quality = 0.85
)

type pageData struct {
	Key     string
	MaxEdge int
	Quality float64
}

// Handler serves the upload page with the path after the leading slash as
// the upload key. An empty path is rejected.
func Handler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if key == "" {
			key = strings.TrimPrefix(r.URL.Path, "/")
		}
		if key == "" {
			response.Forbidden(w, "Access denied")
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := uploadTemplate.Execute(w, pageData{Key: key, MaxEdge: maxEdge, Quality: quality}); err != nil {
			logger.Error("render upload page", "error", err)
		}
	}
}
