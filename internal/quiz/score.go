package quiz

// Review is the per-question breakdown shown after a quiz.
type Review struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
	IsCorrect     bool   `json:"is_correct"`
}

// Result is a scored quiz.
type Result struct {
	Score   int      `json:"score"`
	Total   int      `json:"total"`
	Percent float64  `json:"percent"`
	Review  []Review `json:"review"`
}

// Score grades answers against questions by exact match. It needs no
// storage, so a result is available even when recording it fails.
func Score(questions []Question, answers []string) (Result, error) {
	if len(answers) != len(questions) {
		return Result{}, ErrAnswerCountMismatch
	}

	res := Result{
		Total:  len(questions),
		Review: make([]Review, len(questions)),
	}
	for i, q := range questions {
		correct := answers[i] == q.CorrectAnswer
		if correct {
			res.Score++
		}
		res.Review[i] = Review{
			Question:      q.Text,
			UserAnswer:    answers[i],
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			IsCorrect:     correct,
		}
	}
	if res.Total > 0 {
		res.Percent = float64(res.Score) / float64(res.Total) * 100
	}
	return res, nil
}
