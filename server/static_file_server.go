package server

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const spaIndex = "index.html"

// FileServerHandler serves the built frontend from publicDir. It returns nil when no
// directory is configured.
func FileServerHandler(publicDir string) http.Handler {
	if publicDir == "" {
		return nil
	}
	return http.FileServer(http.Dir(publicDir))
}

// serveFileHandler serves frontend assets. Paths that match no file get index.html so the
// frontend router can resolve them; API paths never fall back.
func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, RouteAPIPrefix) {
			writeJSONError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "405 - Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.fileServer == nil {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}

		publicDir := s.config.GetPublicDir()
		if !fileExists(publicDir, r.URL.Path) {
			index := filepath.Join(publicDir, spaIndex)
			if !fileExists(publicDir, "/"+spaIndex) {
				logError(r.Method, r.URL.Path, "no such file and no "+spaIndex+" to fall back to")
				http.Error(w, "404 - Page Not Found", http.StatusNotFound)
				return
			}
			http.ServeFile(w, r, index)
			return
		}
		s.fileServer.ServeHTTP(w, r)
	}
}

// fileExists reports whether name resolves inside dir. Directories count, the file server
// answers them with their index.
func fileExists(dir, name string) bool {
	f, err := http.Dir(dir).Open(path.Clean("/" + name))
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func logError(method, path, error string) {
	log.Warn().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}
