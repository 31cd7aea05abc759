package httpapi

import (
	"net/http"
)

type listResponse struct {
	Items []string `json:"items"`
}

func (s *Server) handleBoards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Items: s.catalog.Boards()})
}

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, listResponse{Items: s.catalog.Grades(q.Get("board"))})
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, listResponse{Items: s.catalog.Subjects(q.Get("board"), q.Get("grade"))})
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, listResponse{
		Items: s.catalog.Chapters(q.Get("board"), q.Get("grade"), q.Get("subject")),
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, listResponse{
		Items: s.catalog.Topics(q.Get("board"), q.Get("grade"), q.Get("subject"), q.Get("chapter")),
	})
}
