// Package session is the per-learner navigation state machine behind the
// study wizard: dashboard, subject/chapter/topic selection, learning, quiz
// and results. Each step carries only the data it needs.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/quiz"
)

// Step is a position in the wizard.
type Step string

const (
	StepDashboard     Step = "dashboard"
	StepChooseSubject Step = "choose_subject"
	StepChooseChapter Step = "choose_chapter"
	StepChooseTopic   Step = "choose_topic"
	StepLearning      Step = "learning"
	StepQuiz          Step = "quiz"
	StepResults       Step = "results"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNotFound          = errors.New("session not found")
)

// Lesson is the topic being studied and its current explanation.
type Lesson struct {
	Path        curriculum.SubjectPath `json:"path"`
	Chapter     string                 `json:"chapter,omitempty"`
	Topic       string                 `json:"topic"`
	Explanation string                 `json:"explanation,omitempty"`
	Depth       string                 `json:"depth,omitempty"`
	Language    string                 `json:"language,omitempty"`
}

// Quiz holds the questions of a quiz in progress. ID names this attempt at
// the quiz; a retake gets a new one.
type Quiz struct {
	ID        string          `json:"id"`
	Questions []quiz.Question `json:"questions"`
}

// Session is one learner's wizard state.
type Session struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	DisplayName string           `json:"display_name"`
	Step        Step             `json:"step"`
	Class       curriculum.Class `json:"class"`
	Subject     string           `json:"subject,omitempty"`
	Chapter     string           `json:"chapter,omitempty"`
	Lesson      *Lesson          `json:"lesson,omitempty"`
	Quiz        *Quiz            `json:"quiz,omitempty"`
	Result      *quiz.Result     `json:"result,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// New starts a session on the dashboard.
func New(userID, displayName string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		Step:        StepDashboard,
		UpdatedAt:   time.Now(),
	}
}

func (s *Session) expect(op string, steps ...Step) error {
	for _, st := range steps {
		if s.Step == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, s.Step)
}

func (s *Session) moveTo(step Step) {
	s.Step = step
	s.UpdatedAt = time.Now()
}

// Path returns the selected subject path.
func (s *Session) Path() curriculum.SubjectPath {
	return curriculum.SubjectPath{Board: s.Class.Board, Grade: s.Class.Grade, Subject: s.Subject}
}

// SelectClass picks the board and grade shown on the dashboard.
func (s *Session) SelectClass(class curriculum.Class) error {
	if err := s.expect("select class", StepDashboard); err != nil {
		return err
	}
	s.Class = class
	s.UpdatedAt = time.Now()
	return nil
}

// BeginClassPrep starts the wizard for class.
func (s *Session) BeginClassPrep(class curriculum.Class) error {
	if err := s.expect("begin class prep", StepDashboard); err != nil {
		return err
	}
	s.Class = class
	s.reset()
	s.moveTo(StepChooseSubject)
	return nil
}

func (s *Session) ChooseSubject(subject string) error {
	if err := s.expect("choose subject", StepChooseSubject); err != nil {
		return err
	}
	s.Subject = subject
	s.moveTo(StepChooseChapter)
	return nil
}

func (s *Session) ChooseChapter(chapter string) error {
	if err := s.expect("choose chapter", StepChooseChapter); err != nil {
		return err
	}
	s.Chapter = chapter
	s.moveTo(StepChooseTopic)
	return nil
}

func (s *Session) ChooseTopic(topic string) error {
	if err := s.expect("choose topic", StepChooseTopic); err != nil {
		return err
	}
	s.Lesson = &Lesson{Path: s.Path(), Chapter: s.Chapter, Topic: topic}
	s.moveTo(StepLearning)
	return nil
}

// StudyTopic jumps from the dashboard straight to a topic, as when a
// learner picks one of their weak topics.
func (s *Session) StudyTopic(path curriculum.SubjectPath, topic string) error {
	if err := s.expect("study topic", StepDashboard); err != nil {
		return err
	}
	s.Class = path.Class()
	s.reset()
	s.Subject = path.Subject
	s.Lesson = &Lesson{Path: path, Topic: topic}
	s.moveTo(StepLearning)
	return nil
}

// SetExplanation records the explanation currently shown for the lesson.
func (s *Session) SetExplanation(text, depth, language string) error {
	if err := s.expect("set explanation", StepLearning); err != nil {
		return err
	}
	s.Lesson.Explanation = text
	s.Lesson.Depth = depth
	s.Lesson.Language = language
	s.UpdatedAt = time.Now()
	return nil
}

// StartQuiz moves from learning to a quiz with the given questions.
func (s *Session) StartQuiz(questions []quiz.Question) error {
	if err := s.expect("start quiz", StepLearning); err != nil {
		return err
	}
	return s.startQuiz(questions)
}

// Retake replaces a finished quiz with a fresh one on the same topic.
func (s *Session) Retake(questions []quiz.Question) error {
	if err := s.expect("retake", StepResults); err != nil {
		return err
	}
	return s.startQuiz(questions)
}

func (s *Session) startQuiz(questions []quiz.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: quiz has no questions", ErrInvalidTransition)
	}
	s.Quiz = &Quiz{ID: uuid.NewString(), Questions: questions}
	s.Result = nil
	s.moveTo(StepQuiz)
	return nil
}

// Answer scores the quiz in progress and moves to the results step.
func (s *Session) Answer(answers []string) (quiz.Result, error) {
	if err := s.expect("answer", StepQuiz); err != nil {
		return quiz.Result{}, err
	}
	res, err := quiz.Score(s.Quiz.Questions, answers)
	if err != nil {
		return quiz.Result{}, err
	}
	s.Result = &res
	s.moveTo(StepResults)
	return res, nil
}

// Back returns to the previous step.
func (s *Session) Back() error {
	switch s.Step {
	case StepChooseSubject:
		s.reset()
		s.moveTo(StepDashboard)
	case StepChooseChapter:
		s.Subject = ""
		s.moveTo(StepChooseSubject)
	case StepChooseTopic:
		s.Chapter = ""
		s.moveTo(StepChooseChapter)
	case StepLearning:
		s.Lesson = nil
		if s.Chapter == "" {
			s.reset()
			s.moveTo(StepDashboard)
		} else {
			s.moveTo(StepChooseTopic)
		}
	case StepQuiz, StepResults:
		s.Quiz = nil
		s.Result = nil
		s.moveTo(StepLearning)
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, s.Step)
	}
	return nil
}

// Finish returns to the dashboard, keeping the selected class.
func (s *Session) Finish() {
	s.reset()
	s.moveTo(StepDashboard)
}

func (s *Session) reset() {
	s.Subject = ""
	s.Chapter = ""
	s.Lesson = nil
	s.Quiz = nil
	s.Result = nil
}
