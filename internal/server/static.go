package server

import (
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// serveSPA serves the web client, falling back to index.html for client-side routes.
func (s *Server) serveSPA() {
	root := os.DirFS(s.staticDir)
	fileServer := http.FileServer(http.FS(root))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			http.NotFound(w, r)
			return
		}
		// Try serving the file directly; fall back to index.html for SPA routing
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" || !fs.ValidPath(name) {
			r.URL.Path = "/"
		} else if f, err := root.Open(name); err != nil {
			r.URL.Path = "/"
		} else {
			f.Close()
		}
		fileServer.ServeHTTP(w, r)
	})
}
