// Package web serves a read-only status page over the run journal.
package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/ralphtool/ralph/internal/db"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Server renders the run journal.
type Server struct {
	store *db.Store
	tmpl  *template.Template
}

// NewServer creates a web server over the given journal store.
func NewServer(store *db.Store) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{store: store, tmpl: tmpl}, nil
}

// Routes returns the handler for the status page.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.tmpl.ExecuteTemplate(w, "index.html", runs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
