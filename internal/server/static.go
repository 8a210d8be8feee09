package server

import (
	"net/http"
	"os"
	"path/filepath"
)

// spaHandler serves the bundled frontend. Paths that do not map to a real
// file fall back to index.html so client-side routing keeps working after a
// hard refresh.
type spaHandler struct {
	staticDir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.staticDir, filepath.Clean("/"+r.URL.Path))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
		return
	}
	http.FileServer(http.Dir(h.staticDir)).ServeHTTP(w, r)
}
