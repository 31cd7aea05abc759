package httpapi

import (
	"cmp"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/p-n-ai/taleem/internal/activity"
	"github.com/p-n-ai/taleem/internal/history"
	"github.com/p-n-ai/taleem/internal/quiz"
	"github.com/p-n-ai/taleem/internal/session"
)

const maxQuizQuestions = 30

type startQuizRequest struct {
	Questions int `json:"questions"`
}

// questionView is a question as shown to the learner, without its answer.
type questionView struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type quizResponse struct {
	Topic     string         `json:"topic"`
	Questions []questionView `json:"questions"`
}

func newQuizResponse(topic string, qs []quiz.Question) quizResponse {
	views := make([]questionView, len(qs))
	for i, q := range qs {
		views[i] = questionView{Question: q.Text, Options: q.Options}
	}
	return quizResponse{Topic: topic, Questions: views}
}

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	s.generateQuiz(w, r, session.StepLearning, (*session.Session).StartQuiz)
}

func (s *Server) handleRetake(w http.ResponseWriter, r *http.Request) {
	s.generateQuiz(w, r, session.StepResults, (*session.Session).Retake)
}

// generateQuiz asks the AI for a new quiz on the open topic and moves the
// session into the quiz step with start.
func (s *Server) generateQuiz(w http.ResponseWriter, r *http.Request, from session.Step, start func(*session.Session, []quiz.Question) error) {
	var req startQuizRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Questions < 0 || req.Questions > maxQuizQuestions {
		writeError(w, badRequest("questions must be between 1 and %d", maxQuizQuestions))
		return
	}

	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.Step != from || sess.Lesson == nil {
		writeError(w, fmtTransition("quiz", sess.Step))
		return
	}

	questions, err := s.quizzes.Generate(r.Context(), sess.UserID, sess.Lesson.Path, sess.Lesson.Topic, req.Questions)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := start(sess, questions); err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}

	s.record(r, sess, activity.TypeQuizStarted, map[string]any{"topic": sess.Lesson.Topic, "questions": len(questions)})
	writeJSON(w, http.StatusOK, newQuizResponse(sess.Lesson.Topic, questions))
}

type answersRequest struct {
	Answers []string `json:"answers"`
}

type answersResponse struct {
	quiz.Result
	QuizID  string `json:"quiz_id,omitempty"`
	Saved   bool   `json:"saved"`
	Warning string `json:"warning,omitempty"`
}

// handleAnswers scores the quiz and records it. The score is returned even
// when recording fails; the response then says the results were not saved.
func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := sess.Answer(req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}

	resp := answersResponse{Result: result}
	lesson := sess.Lesson
	// Sessions saved before quizzes carried an ID get a fresh one.
	quizID := cmp.Or(sess.Quiz.ID, uuid.NewString())
	quizID, err = s.analytics.RecordQuizCompletionWithID(r.Context(), quizID, sess.UserID, lesson.Path, lesson.Topic, sess.Quiz.Questions, req.Answers)
	switch {
	case errors.Is(err, history.ErrDuplicateQuiz):
		// A concurrent submission of the same quiz already recorded it.
		slog.Info("quiz already recorded", "user_id", sess.UserID, "quiz_id", quizID)
		resp.QuizID = quizID
		resp.Saved = true
	case err != nil:
		slog.Error("quiz results not saved", "user_id", sess.UserID, "topic", lesson.Topic, "error", err)
		resp.Warning = "results not saved"
		s.record(r, sess, activity.TypeResultsNotSaved, map[string]any{"topic": lesson.Topic})
	default:
		resp.QuizID = quizID
		resp.Saved = true
		s.record(r, sess, activity.TypeQuizCompleted, map[string]any{
			"topic":   lesson.Topic,
			"score":   result.Score,
			"total":   result.Total,
			"quiz_id": quizID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
