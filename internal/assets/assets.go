// Package assets serves the embedded chat frontend: three HTML pages plus
// their scripts and stylesheets, compiled into the binary via go:embed.
package assets

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed public
var publicFS embed.FS

// pages maps clean URLs to embedded HTML files.
var pages = map[string]string{
	"/":         "index.html",
	"/register": "register.html",
	"/chat":     "chat.html",
}

// mimeFromExt returns the MIME type for a file extension, falling back to
// the standard library's database, then to application/octet-stream.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// RegisterRoutes mounts the frontend pages and static files on the mux.
// API routes are registered separately and take precedence via their
// longer patterns.
func RegisterRoutes(mux *http.ServeMux) {
	sub, err := fs.Sub(publicFS, "public")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	static := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ext := strings.ToLower(path.Ext(r.URL.Path)); ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		w.Header().Set("Cache-Control", "no-cache")
		fileServer.ServeHTTP(w, r)
	})

	mux.Handle("GET /css/", static)
	mux.Handle("GET /js/", static)

	// "/{$}" matches the root exactly; the other patterns have no
	// trailing slash so they already match exactly.
	mux.HandleFunc("GET /{$}", servePage(sub, pages["/"]))
	for route, file := range pages {
		if route == "/" {
			continue
		}
		mux.HandleFunc("GET "+route, servePage(sub, file))
	}
}

func servePage(root fs.FS, file string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(root, file)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	}
}
