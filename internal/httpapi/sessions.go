package httpapi

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/p-n-ai/taleem/internal/activity"
	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/history"
	"github.com/p-n-ai/taleem/internal/learner"
	"github.com/p-n-ai/taleem/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
}

type loginResponse struct {
	SessionID string           `json:"session_id"`
	Learner   learner.Learner  `json:"learner"`
	Returning bool             `json:"returning"`
	Session   *session.Session `json:"session"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	l, created, err := s.learners.Login(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	sess := session.New(l.ID, l.DisplayName)
	if !created {
		// Returning learners land on the class they studied last.
		class, ok, err := history.MostRecentClass(r.Context(), s.history, l.ID)
		if err != nil {
			slog.Warn("could not load last class", "user_id", l.ID, "error", err)
		} else if ok {
			_ = sess.SelectClass(class)
		}
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("learner logged in", "user_id", l.ID, "new", created)
	s.record(r, sess, activity.TypeLogin, map[string]any{"new": created})
	writeJSON(w, http.StatusCreated, loginResponse{
		SessionID: sess.ID,
		Learner:   l,
		Returning: !created,
		Session:   sess,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), sess.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type classRequest struct {
	Board string `json:"board"`
	Grade string `json:"grade"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type studyRequest struct {
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
}

func (s *Server) handleBeginClassPrep(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !slices.Contains(s.catalog.Grades(req.Board), req.Grade) {
		writeError(w, badRequest("unknown class %q / %q", req.Board, req.Grade))
		return
	}
	s.mutate(w, r, func(sess *session.Session) error {
		return sess.BeginClassPrep(curriculum.Class{Board: req.Board, Grade: req.Grade})
	})
}

func (s *Server) handleChooseSubject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mutate(w, r, func(sess *session.Session) error {
		if err := sess.ChooseSubject(req.Name); err != nil {
			return err
		}
		if !slices.Contains(s.catalog.Subjects(sess.Class.Board, sess.Class.Grade), req.Name) {
			return badRequest("unknown subject %q", req.Name)
		}
		return nil
	})
}

func (s *Server) handleChooseChapter(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mutate(w, r, func(sess *session.Session) error {
		if err := sess.ChooseChapter(req.Name); err != nil {
			return err
		}
		if !slices.Contains(s.catalog.Chapters(sess.Class.Board, sess.Class.Grade, sess.Subject), req.Name) {
			return badRequest("unknown chapter %q", req.Name)
		}
		return nil
	})
}

func (s *Server) handleChooseTopic(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mutate(w, r, func(sess *session.Session) error {
		if err := sess.ChooseTopic(req.Name); err != nil {
			return err
		}
		if !slices.Contains(s.catalog.Topics(sess.Class.Board, sess.Class.Grade, sess.Subject, sess.Chapter), req.Name) {
			return badRequest("unknown topic %q", req.Name)
		}
		return nil
	})
}

// handleStudyTopic opens a topic straight from the dashboard. The topic is
// not checked against the curriculum: weak topics come from history and may
// predate a curriculum change.
func (s *Server) handleStudyTopic(w http.ResponseWriter, r *http.Request) {
	var req studyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Topic == "" {
		writeError(w, badRequest("topic is required"))
		return
	}
	s.mutate(w, r, func(sess *session.Session) error {
		path := curriculum.SubjectPath{Board: sess.Class.Board, Grade: sess.Class.Grade, Subject: req.Subject}
		if err := sess.StudyTopic(path, req.Topic); err != nil {
			return err
		}
		if !s.catalog.HasSubject(path) {
			return badRequest("unknown subject %q", req.Subject)
		}
		return nil
	})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, (*session.Session).Back)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *session.Session) error {
		sess.Finish()
		return nil
	})
}
