package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/taleem/internal/activity"
	"github.com/p-n-ai/taleem/internal/session"
	"github.com/p-n-ai/taleem/internal/tutor"
)

type explainRequest struct {
	Depth    string `json:"depth"`
	Language string `json:"language"`
}

type explainResponse struct {
	Topic       string `json:"topic"`
	Depth       string `json:"depth"`
	Language    string `json:"language"`
	Explanation string `json:"explanation"`
}

// lesson resolves the current learning step into a tutor request.
func (s *Server) lesson(r *http.Request, depth, language string) (*session.Session, tutor.Request, error) {
	sess, err := s.currentSession(r)
	if err != nil {
		return nil, tutor.Request{}, err
	}
	if sess.Step != session.StepLearning || sess.Lesson == nil {
		return nil, tutor.Request{}, fmtTransition("learning request", sess.Step)
	}

	d, err := tutor.ParseDepth(depth)
	if err != nil {
		return nil, tutor.Request{}, badRequest("%v", err)
	}
	lang := tutor.MatchLanguage(r.Header.Get("Accept-Language"))
	if strings.TrimSpace(language) != "" {
		if lang, err = tutor.ParseLanguage(language); err != nil {
			return nil, tutor.Request{}, badRequest("%v", err)
		}
	}

	return sess, tutor.Request{
		UserID:   sess.UserID,
		Path:     sess.Lesson.Path,
		Topic:    sess.Lesson.Topic,
		Depth:    d,
		Language: lang,
	}, nil
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, treq, err := s.lesson(r, req.Depth, req.Language)
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := s.tutor.Explain(r.Context(), treq)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.saveExplanation(r.Context(), sess, treq, text); err != nil {
		writeError(w, err)
		return
	}

	s.record(r, sess, activity.TypeExplanation, map[string]any{"topic": treq.Topic, "depth": string(treq.Depth)})
	writeJSON(w, http.StatusOK, explainResponse{
		Topic:       treq.Topic,
		Depth:       string(treq.Depth),
		Language:    string(treq.Language),
		Explanation: text,
	})
}

func (s *Server) saveExplanation(ctx context.Context, sess *session.Session, req tutor.Request, text string) error {
	if err := sess.SetExplanation(text, string(req.Depth), string(req.Language)); err != nil {
		return err
	}
	return s.sessions.Save(ctx, sess)
}

// streamMessage is one websocket frame of a streamed explanation.
type streamMessage struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleExplainStream streams an explanation over a websocket. Errors found
// before the upgrade are returned as plain HTTP errors.
func (s *Server) handleExplainStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess, treq, err := s.lesson(r, q.Get("depth"), q.Get("language"))
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	chunks, err := s.tutor.StreamExplain(ctx, treq)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			slog.Error("explanation stream failed", "user_id", sess.UserID, "error", chunk.Error)
			_ = wsjson.Write(ctx, conn, streamMessage{Error: "explanation failed"})
			conn.Close(websocket.StatusInternalError, "explanation failed")
			return
		}
		if chunk.Content == "" {
			continue
		}
		text.WriteString(chunk.Content)
		if err := wsjson.Write(ctx, conn, streamMessage{Delta: chunk.Content}); err != nil {
			slog.Debug("explanation stream client gone", "user_id", sess.UserID, "error", err)
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := s.saveExplanation(ctx, sess, treq, text.String()); err != nil {
		slog.Warn("saving streamed explanation failed", "session_id", sess.ID, "error", err)
	}
	s.record(r, sess, activity.TypeExplanation, map[string]any{"topic": treq.Topic, "depth": string(treq.Depth), "stream": true})

	if err := wsjson.Write(ctx, conn, streamMessage{Done: true}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

type exampleResponse struct {
	Topic   string `json:"topic"`
	Example string `json:"example"`
}

func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, treq, err := s.lesson(r, "", req.Language)
	if err != nil {
		writeError(w, err)
		return
	}

	example, err := s.tutor.Example(r.Context(), treq)
	if err != nil {
		writeError(w, err)
		return
	}
	s.record(r, sess, activity.TypeExample, map[string]any{"topic": treq.Topic})
	writeJSON(w, http.StatusOK, exampleResponse{Topic: treq.Topic, Example: example})
}

type followUpRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
}

type followUpResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	var req followUpRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, treq, err := s.lesson(r, "", req.Language)
	if err != nil {
		writeError(w, err)
		return
	}

	answer, err := s.tutor.FollowUp(r.Context(), treq, sess.Lesson.Explanation, req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	s.record(r, sess, activity.TypeFollowUp, map[string]any{"topic": treq.Topic})
	writeJSON(w, http.StatusOK, followUpResponse{Question: req.Question, Answer: answer})
}
