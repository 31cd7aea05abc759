package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/p-n-ai/taleem/internal/activity"
	"github.com/p-n-ai/taleem/internal/analytics"
	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/history"
	"github.com/p-n-ai/taleem/internal/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportFor builds the progress report for the class named in the query,
// else the session's class, else the class the learner studied last.
func (s *Server) reportFor(r *http.Request) (*session.Session, analytics.Report, error) {
	sess, err := s.currentSession(r)
	if err != nil {
		return nil, analytics.Report{}, err
	}

	q := r.URL.Query()
	class := curriculum.Class{Board: q.Get("board"), Grade: q.Get("grade")}
	switch {
	case class.Board != "" || class.Grade != "":
		if class.Board == "" || class.Grade == "" {
			return nil, analytics.Report{}, badRequest("board and grade must be given together")
		}
	case sess.Class.Board != "":
		class = sess.Class
	default:
		last, ok, err := history.MostRecentClass(r.Context(), s.history, sess.UserID)
		if err != nil {
			return nil, analytics.Report{}, err
		}
		if ok {
			class = last
		}
	}

	report, err := s.analytics.ProgressReport(r.Context(), sess.UserID, class)
	if err != nil {
		return nil, analytics.Report{}, err
	}
	return sess, report, nil
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	_, report, err := s.reportFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, report, err := s.reportFor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := analytics.WriteWorkbook(&buf, report); err != nil {
		writeError(w, err)
		return
	}

	name := strings.NewReplacer(" ", "-", "/", "-").Replace(fmt.Sprintf("progress-%s-%s.xlsx", sess.UserID, report.Class.Grade))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())

	s.record(r, sess, activity.TypeProgressExported, map[string]any{"board": report.Class.Board, "grade": report.Class.Grade})
}
