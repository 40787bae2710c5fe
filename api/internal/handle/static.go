package handle

import (
	"net/http"
	"os"
	"path/filepath"
)

func (h *Handle) indexPath() string { return filepath.Join(h.staticDir, "index.html") }

func (h *Handle) indexExists() bool {
	st, err := os.Stat(h.indexPath())
	return err == nil && !st.IsDir()
}

// Index отдаёт static/index.html. Других статических путей нет.
func (h *Handle) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	if !h.indexExists() {
		writeError(w, http.StatusNotFound, "static/index.html does not exist")
		return
	}
	http.ServeFile(w, r, h.indexPath())
}
