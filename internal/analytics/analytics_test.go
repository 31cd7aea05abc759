package analytics_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/taleem/internal/analytics"
	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/history"
	"github.com/p-n-ai/taleem/internal/quiz"
)

var (
	class9  = curriculum.Class{Board: "Punjab Board", Grade: "Class 9"}
	physics = curriculum.SubjectPath{Board: "Punjab Board", Grade: "Class 9", Subject: "Physics"}
	fixedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

// testCatalog has Physics with 10 topics over 2 chapters, Chemistry with 2
// topics and Urdu with none.
func testCatalog() *curriculum.Catalog {
	c, err := curriculum.New(curriculum.Board{
		Name: "Punjab Board",
		Grades: []curriculum.Grade{{
			Name: "Class 9",
			Subjects: []curriculum.Subject{
				{Name: "Physics", Chapters: []curriculum.Chapter{
					{Name: "Kinematics", Topics: []string{"Motion", "Speed", "Velocity", "Acceleration", "Graphs"}},
					{Name: "Dynamics", Topics: []string{"Force", "Inertia", "Momentum", "Friction", "Circular Motion"}},
				}},
				{Name: "Chemistry", Chapters: []curriculum.Chapter{
					{Name: "Matter", Topics: []string{"States of Matter", "Elements"}},
				}},
				{Name: "Urdu"},
			},
		}},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func newService(store history.Store, c analytics.Cache) *analytics.Service {
	return analytics.New(analytics.Config{
		Catalog: testCatalog(),
		Store:   store,
		Cache:   c,
		Now:     func() time.Time { return fixedAt },
	})
}

// quizOf builds n questions whose correct answer is "right".
func quizOf(n int) []quiz.Question {
	qs := make([]quiz.Question, n)
	for i := range qs {
		qs[i] = quiz.Question{Text: "q", Options: []string{"right", "wrong"}, CorrectAnswer: "right"}
	}
	return qs
}

// answers returns correct answers followed by wrong ones.
func answers(correct, wrong int) []string {
	out := make([]string, 0, correct+wrong)
	for range correct {
		out = append(out, "right")
	}
	for range wrong {
		out = append(out, "wrong")
	}
	return out
}

func record(t *testing.T, svc *analytics.Service, path curriculum.SubjectPath, topic string, correct, wrong int) {
	t.Helper()
	if _, err := svc.RecordQuizCompletion(context.Background(), "ayesha", path, topic, quizOf(correct+wrong), answers(correct, wrong)); err != nil {
		t.Fatalf("RecordQuizCompletion(%s) error = %v", topic, err)
	}
}

func physicsMastery(t *testing.T, svc *analytics.Service) float64 {
	t.Helper()
	m, err := svc.ComputeSubjectMastery(context.Background(), "ayesha", class9)
	if err != nil {
		t.Fatalf("ComputeSubjectMastery() error = %v", err)
	}
	p, ok := m.Percent("Physics")
	if !ok {
		t.Fatal("Physics missing from mastery")
	}
	return p
}

func TestComputeSubjectMastery_MotionScenario(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)

	record(t, svc, physics, "Motion", 3, 0)
	if got := physicsMastery(t, svc); got != 10.0 {
		t.Fatalf("after 3/3 on Motion, Physics = %v, want 10", got)
	}

	// Motion now has 4 of 7 correct overall.
	record(t, svc, physics, "Motion", 1, 3)
	if got := physicsMastery(t, svc); got != 0.0 {
		t.Fatalf("after 1/4 on Motion, Physics = %v, want 0", got)
	}
}

func TestComputeSubjectMastery_Threshold(t *testing.T) {
	tests := []struct {
		name           string
		correct, wrong int
		want           float64
	}{
		{"two of three is not mastered", 2, 1, 0},
		{"three of four is mastered", 3, 1, 10},
		{"exactly seventy percent is mastered", 7, 3, 10},
		{"sixty nine percent is not", 69, 31, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(history.NewMemoryStore(), nil)
			record(t, svc, physics, "Speed", tt.correct, tt.wrong)
			if got := physicsMastery(t, svc); got != tt.want {
				t.Errorf("Physics = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeSubjectMastery_OrderAndZeroTopics(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)
	record(t, svc, curriculum.SubjectPath{Board: "Punjab Board", Grade: "Class 9", Subject: "Urdu"}, "Ghazal", 5, 0)
	record(t, svc, curriculum.SubjectPath{Board: "Punjab Board", Grade: "Class 9", Subject: "Chemistry"}, "Elements", 1, 0)

	m, err := svc.ComputeSubjectMastery(context.Background(), "ayesha", class9)
	if err != nil {
		t.Fatal(err)
	}
	want := analytics.Mastery{
		{Subject: "Physics", Percent: 0},
		{Subject: "Chemistry", Percent: 50},
		{Subject: "Urdu", Percent: 0},
	}
	if !slices.Equal(m, want) {
		t.Errorf("mastery = %+v, want %+v", m, want)
	}
	if got := m.Map()["Chemistry"]; got != 50 {
		t.Errorf("Map()[Chemistry] = %v", got)
	}
}

func TestComputeSubjectMastery_NoAttemptsAndUnknownClass(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)

	m, err := svc.ComputeSubjectMastery(context.Background(), "nobody", class9)
	if err != nil {
		t.Fatal(err)
	}
	for _, sm := range m {
		if sm.Percent != 0 {
			t.Errorf("%s = %v, want 0", sm.Subject, sm.Percent)
		}
	}

	m, err = svc.ComputeSubjectMastery(context.Background(), "ayesha", curriculum.Class{Board: "Nowhere", Grade: "Class 1"})
	if err != nil || len(m) != 0 {
		t.Errorf("unknown class = %+v, %v; want empty", m, err)
	}
}

func TestComputeSubjectMastery_NotClamped(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)
	chemistry := curriculum.SubjectPath{Board: "Punjab Board", Grade: "Class 9", Subject: "Chemistry"}
	for _, topic := range []string{"States of Matter", "Elements", "Compounds"} {
		record(t, svc, chemistry, topic, 1, 0)
	}

	m, err := svc.ComputeSubjectMastery(context.Background(), "ayesha", class9)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Percent("Chemistry"); got != 150 {
		t.Errorf("Chemistry = %v, want 150 (topic no longer in curriculum still counts)", got)
	}
}

func TestComputeSubjectMastery_Idempotent(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)
	record(t, svc, physics, "Force", 4, 1)

	first := physicsMastery(t, svc)
	second := physicsMastery(t, svc)
	if first != second {
		t.Errorf("repeated computation differs: %v vs %v", first, second)
	}
}

func TestComputeSubjectMastery_Monotonic(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)
	record(t, svc, physics, "Force", 0, 3)

	prev := physicsMastery(t, svc)
	for range 10 {
		record(t, svc, physics, "Force", 1, 0)
		got := physicsMastery(t, svc)
		if got < prev {
			t.Fatalf("mastery dropped from %v to %v after a correct answer", prev, got)
		}
		prev = got
	}
	if prev != 10 {
		t.Errorf("Force should end up mastered, Physics = %v", prev)
	}
}

func TestComputeSubjectMastery_StoreDown(t *testing.T) {
	store := history.NewMemoryStore()
	store.Err = errors.New("connection refused")
	svc := newService(store, nil)

	_, err := svc.ComputeSubjectMastery(context.Background(), "ayesha", class9)
	if !history.IsPersistence(err) {
		t.Fatalf("error = %v, want PersistenceError", err)
	}
}

func TestWeakestTopics(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)
	for topic, wrong := range map[string]int{"A": 5, "B": 3, "C": 3, "D": 1, "E": 0} {
		record(t, svc, physics, topic, 2, wrong)
	}

	got, err := svc.WeakestTopics(context.Background(), "ayesha", physics, 3)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"A", "B", "C"}; !slices.Equal(got, want) {
		t.Errorf("WeakestTopics(3) = %v, want %v", got, want)
	}

	all, _ := svc.WeakestTopics(context.Background(), "ayesha", physics, 10)
	if slices.Contains(all, "E") {
		t.Errorf("topic without wrong answers listed as weak: %v", all)
	}
	if len(all) != 4 {
		t.Errorf("WeakestTopics(10) = %v, want 4 topics", all)
	}
}

func TestWeakestTopics_DefaultLimit(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)
	for _, topic := range []string{"A", "B", "C", "D"} {
		record(t, svc, physics, topic, 0, 1)
	}
	got, err := svc.WeakestTopics(context.Background(), "ayesha", physics, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != analytics.DefaultWeakTopicLimit {
		t.Errorf("len = %d, want %d", len(got), analytics.DefaultWeakTopicLimit)
	}
}

func TestWeakestTopics_NoAttempts(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)
	got, err := svc.WeakestTopics(context.Background(), "ayesha", physics, 3)
	if err != nil || len(got) != 0 {
		t.Errorf("WeakestTopics() = %v, %v; want empty", got, err)
	}
}

func TestRecordQuizCompletion(t *testing.T) {
	store := history.NewMemoryStore()
	svc := newService(store, nil)

	qs := []quiz.Question{
		{Text: "Unit of force?", Options: []string{"Newton", "Joule"}, CorrectAnswer: "Newton"},
		{Text: "Unit of work?", Options: []string{"Newton", "Joule"}, CorrectAnswer: "Joule"},
	}
	id, err := svc.RecordQuizCompletion(context.Background(), "ayesha", physics, "Force", qs, []string{"Newton", quiz.Unanswered})
	if err != nil {
		t.Fatalf("RecordQuizCompletion() error = %v", err)
	}
	if id == "" {
		t.Error("quiz id should be set")
	}

	rows, err := store.Recent(context.Background(), "ayesha", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("recorded %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r.QuizID != id || !r.CreatedAt.Equal(fixedAt) || r.Topic != "Force" {
			t.Errorf("row = %+v", r)
		}
		if r.Question == "Unit of force?" && !r.IsCorrect {
			t.Error("Newton should be graded correct")
		}
		if r.Question == "Unit of work?" && (r.IsCorrect || r.UserAnswer != quiz.Unanswered) {
			t.Errorf("unanswered row = %+v", r)
		}
	}
}

func TestRecordQuizCompletion_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		path    curriculum.SubjectPath
		topic   string
		qs      []quiz.Question
		answers []string
	}{
		{"answer count mismatch", "ayesha", physics, "Force", quizOf(2), answers(1, 0)},
		{"no user", "", physics, "Force", quizOf(1), answers(1, 0)},
		{"no subject", "ayesha", curriculum.SubjectPath{Board: "Punjab Board", Grade: "Class 9"}, "Force", quizOf(1), answers(1, 0)},
		{"no topic", "ayesha", physics, "", quizOf(1), answers(1, 0)},
		{"no correct answer", "ayesha", physics, "Force", []quiz.Question{{Text: "q", Options: []string{"a", "b"}}}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := history.NewMemoryStore()
			svc := newService(store, nil)
			_, err := svc.RecordQuizCompletion(context.Background(), tt.user, tt.path, tt.topic, tt.qs, tt.answers)
			if !errors.Is(err, analytics.ErrInvalidCompletion) {
				t.Errorf("error = %v, want ErrInvalidCompletion", err)
			}
			if store.Len() != 0 {
				t.Errorf("stored %d rows for an invalid completion", store.Len())
			}
		})
	}
}

func TestRecordQuizCompletion_MismatchIsAnswerCountError(t *testing.T) {
	svc := newService(history.NewMemoryStore(), nil)
	_, err := svc.RecordQuizCompletion(context.Background(), "ayesha", physics, "Force", quizOf(3), answers(1, 0))
	if !errors.Is(err, quiz.ErrAnswerCountMismatch) {
		t.Errorf("error = %v, want ErrAnswerCountMismatch", err)
	}
}

func TestRecordQuizCompletion_StoreDown(t *testing.T) {
	store := history.NewMemoryStore()
	store.Err = errors.New("disk full")
	svc := newService(store, nil)

	qs := quizOf(2)
	ans := answers(2, 0)
	_, err := svc.RecordQuizCompletion(context.Background(), "ayesha", physics, "Force", qs, ans)
	if !history.IsPersistence(err) {
		t.Fatalf("error = %v, want PersistenceError", err)
	}

	// The score is still computable without the store.
	res, err := quiz.Score(qs, ans)
	if err != nil || res.Score != 2 {
		t.Errorf("Score() = %+v, %v", res, err)
	}
}

func TestRecordQuizCompletion_EmptyQuiz(t *testing.T) {
	store := history.NewMemoryStore()
	svc := newService(store, nil)
	id, err := svc.RecordQuizCompletion(context.Background(), "ayesha", physics, "Force", nil, nil)
	if err != nil || id != "" || store.Len() != 0 {
		t.Errorf("empty quiz = %q, %v, %d rows", id, err, store.Len())
	}
}

func TestRecordQuizCompletionWithID_RecordsOnce(t *testing.T) {
	store := history.NewMemoryStore()
	c := newMemCache()
	svc := newService(store, c)
	ctx := context.Background()

	id, err := svc.RecordQuizCompletionWithID(ctx, "quiz-1", "ayesha", physics, "Motion", quizOf(3), answers(3, 0))
	if err != nil || id != "quiz-1" {
		t.Fatalf("first recording = %q, %v", id, err)
	}
	id, err = svc.RecordQuizCompletionWithID(ctx, "quiz-1", "ayesha", physics, "Motion", quizOf(3), answers(0, 3))
	if !errors.Is(err, history.ErrDuplicateQuiz) || id != "quiz-1" {
		t.Errorf("second recording = %q, %v; want quiz-1 and ErrDuplicateQuiz", id, err)
	}
	if store.Len() != 3 {
		t.Errorf("stored %d rows, want 3", store.Len())
	}
	if c.incrs != 1 {
		t.Errorf("generation bumps = %d, want 1", c.incrs)
	}
	if got := physicsMastery(t, svc); got != 10 {
		t.Errorf("Physics = %v, want the first recording's 10", got)
	}

	if _, err := svc.RecordQuizCompletionWithID(ctx, "", "ayesha", physics, "Motion", quizOf(1), answers(1, 0)); !errors.Is(err, analytics.ErrInvalidCompletion) {
		t.Errorf("empty quiz id error = %v, want ErrInvalidCompletion", err)
	}
}

// memCache is an in-process analytics.Cache.
type memCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	err   error
	gets  int
	incrs int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return false, c.err
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incrs++
	if c.err != nil {
		return 0, c.err
	}
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (c *memCache) masteryEntries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, "mastery:") {
			n++
		}
	}
	return n
}

func TestMasteryCache_ReadThroughAndInvalidate(t *testing.T) {
	store := history.NewMemoryStore()
	c := newMemCache()
	svc := newService(store, c)

	record(t, svc, physics, "Motion", 3, 0)
	if got := physicsMastery(t, svc); got != 10 {
		t.Fatalf("Physics = %v, want 10", got)
	}
	if n := c.masteryEntries(); n != 1 {
		t.Fatalf("cache entries = %d, want 1", n)
	}

	// A cached value survives the store going away.
	store.Err = errors.New("down")
	if got := physicsMastery(t, svc); got != 10 {
		t.Errorf("cached Physics = %v, want 10", got)
	}
	store.Err = nil

	record(t, svc, physics, "Speed", 3, 0)
	if c.incrs != 2 {
		t.Errorf("generation bumps = %d, want one per recorded quiz", c.incrs)
	}
	if got := physicsMastery(t, svc); got != 20 {
		t.Errorf("Physics after second topic = %v, want 20", got)
	}
}

func TestMasteryCache_ErrorsAreBypassed(t *testing.T) {
	c := newMemCache()
	c.err = errors.New("redis unavailable")
	svc := newService(history.NewMemoryStore(), c)

	record(t, svc, physics, "Motion", 3, 0)
	if got := physicsMastery(t, svc); got != 10 {
		t.Errorf("Physics = %v, want 10 with a broken cache", got)
	}
	if c.incrs == 0 {
		t.Error("invalidation should still be attempted")
	}
}

// racingStore runs onStats once, right after the first TopicStats read
// returns, so a write commits while a reader still holds old stats.
type racingStore struct {
	history.Store
	once    sync.Once
	onStats func()
}

func (s *racingStore) TopicStats(ctx context.Context, userID string, path curriculum.SubjectPath) ([]history.TopicStat, error) {
	stats, err := s.Store.TopicStats(ctx, userID, path)
	s.once.Do(s.onStats)
	return stats, err
}

func TestMasteryCache_WriteDuringFillIsNotHidden(t *testing.T) {
	store := &racingStore{Store: history.NewMemoryStore()}
	c := newMemCache()
	svc := newService(store, c)
	store.onStats = func() { record(t, svc, physics, "Motion", 3, 0) }

	if got := physicsMastery(t, svc); got != 0 {
		t.Fatalf("first read = %v, want 0 (computed before the write)", got)
	}
	if got := physicsMastery(t, svc); got != 10 {
		t.Errorf("read after committed write = %v, want 10", got)
	}
}

func TestMasteryCache_KeysDoNotCollide(t *testing.T) {
	subject := func(board string) curriculum.Board {
		return curriculum.Board{Name: board, Grades: []curriculum.Grade{{
			Name: "g",
			Subjects: []curriculum.Subject{{Name: "Physics", Chapters: []curriculum.Chapter{
				{Name: "Kinematics", Topics: []string{"Motion"}},
			}}},
		}}}
	}
	catalog, err := curriculum.New(subject("c"), subject("b:c"))
	if err != nil {
		t.Fatal(err)
	}
	svc := analytics.New(analytics.Config{
		Catalog: catalog,
		Store:   history.NewMemoryStore(),
		Cache:   newMemCache(),
	})
	ctx := context.Background()

	// "a:b" in board "c" and "a" in board "b:c" read the same if joined naively.
	first := curriculum.SubjectPath{Board: "c", Grade: "g", Subject: "Physics"}
	second := curriculum.SubjectPath{Board: "b:c", Grade: "g", Subject: "Physics"}
	if _, err := svc.RecordQuizCompletion(ctx, "a:b", first, "Motion", quizOf(3), answers(3, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordQuizCompletion(ctx, "a", second, "Motion", quizOf(3), answers(0, 3)); err != nil {
		t.Fatal(err)
	}

	m, err := svc.ComputeSubjectMastery(ctx, "a:b", first.Class())
	if err != nil || m.Map()["Physics"] != 100 {
		t.Fatalf("a:b mastery = %v, %v; want 100", m, err)
	}
	m, err = svc.ComputeSubjectMastery(ctx, "a", second.Class())
	if err != nil || m.Map()["Physics"] != 0 {
		t.Errorf("a mastery = %v, %v; want 0", m, err)
	}
}
