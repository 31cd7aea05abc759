// Package quiz defines the multiple-choice question contract, validates
// generated quizzes at the boundary and scores submissions.
package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Unanswered is recorded for questions the learner skipped.
const Unanswered = "unanswered"

// ErrAnswerCountMismatch is returned when answers and questions differ in length.
var ErrAnswerCountMismatch = errors.New("number of answers does not match number of questions")

// Question is one multiple-choice question.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// InvalidQuestionsError lists every way a generated quiz breaks the
// question contract.
type InvalidQuestionsError struct {
	Violations []string
}

func (e *InvalidQuestionsError) Error() string {
	return "invalid quiz questions: " + strings.Join(e.Violations, "; ")
}

const questionsSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["question", "options", "correct_answer"],
		"properties": {
			"question": {"type": "string", "minLength": 1},
			"options": {
				"type": "array",
				"minItems": 2,
				"items": {"type": "string", "minLength": 1}
			},
			"correct_answer": {"type": "string", "minLength": 1},
			"explanation": {"type": "string"}
		}
	}
}`

var schema = mustSchema(questionsSchema)

func mustSchema(s string) *gojsonschema.Schema {
	sch, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile quiz schema: %v", err))
	}
	return sch
}

// ParseQuestions decodes a generated quiz. It accepts either
// {"questions": [...]} or a bare array, optionally inside a Markdown code
// fence, and returns *InvalidQuestionsError when the shape is wrong.
func ParseQuestions(raw []byte) ([]Question, error) {
	body := stripFence(bytes.TrimSpace(raw))

	switch {
	case len(body) > 0 && body[0] == '{':
		var wrapper struct {
			Questions json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, invalid("response is not valid JSON: %v", err)
		}
		if len(wrapper.Questions) == 0 {
			return nil, invalid(`response has no "questions" key`)
		}
		body = wrapper.Questions
	case len(body) > 0 && body[0] == '[':
	default:
		return nil, invalid("response is not a JSON object or array")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, invalid("response is not valid JSON: %v", err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			violations = append(violations, e.String())
		}
		return nil, &InvalidQuestionsError{Violations: violations}
	}

	var questions []Question
	if err := json.Unmarshal(body, &questions); err != nil {
		return nil, invalid("decoding questions: %v", err)
	}

	var violations []string
	for i, q := range questions {
		if !slices.Contains(q.Options, q.CorrectAnswer) {
			violations = append(violations, fmt.Sprintf("question %d: correct_answer %q is not one of the options", i+1, q.CorrectAnswer))
		}
	}
	if len(violations) > 0 {
		return nil, &InvalidQuestionsError{Violations: violations}
	}

	return questions, nil
}

func invalid(format string, args ...any) *InvalidQuestionsError {
	return &InvalidQuestionsError{Violations: []string{fmt.Sprintf(format, args...)}}
}

func stripFence(b []byte) []byte {
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = b[3:]
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	b = bytes.TrimSpace(b)
	b = bytes.TrimSuffix(b, []byte("```"))
	return bytes.TrimSpace(b)
}
