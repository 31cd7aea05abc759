package curriculum_test

import (
	"reflect"
	"testing"

	"github.com/p-n-ai/taleem/internal/curriculum"
)

func testCatalog(t *testing.T) *curriculum.Catalog {
	t.Helper()
	c, err := curriculum.New(curriculum.Board{
		Name: "Punjab Board",
		Grades: []curriculum.Grade{{
			Name: "Class 9",
			Subjects: []curriculum.Subject{
				{
					Name: "Physics",
					Chapters: []curriculum.Chapter{
						{Name: "Kinematics", Topics: []string{"Motion", "Speed", "Velocity", "Acceleration", "Graphs"}},
						{Name: "Dynamics", Topics: []string{"Force", "Inertia", "Momentum", "Friction", "Circular Motion"}},
					},
				},
				{
					Name:     "Chemistry",
					Chapters: []curriculum.Chapter{{Name: "Empty Chapter", Topics: nil}},
				},
			},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCatalog_Boards(t *testing.T) {
	got := testCatalog(t).Boards()
	if !reflect.DeepEqual(got, []string{"Punjab Board"}) {
		t.Errorf("Boards() = %v", got)
	}
}

func TestCatalog_Lookups(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"grades", c.Grades("Punjab Board"), []string{"Class 9"}},
		{"subjects", c.Subjects("Punjab Board", "Class 9"), []string{"Physics", "Chemistry"}},
		{"chapters", c.Chapters("Punjab Board", "Class 9", "Physics"), []string{"Kinematics", "Dynamics"}},
		{"topics", c.Topics("Punjab Board", "Class 9", "Physics", "Dynamics"), []string{"Force", "Inertia", "Momentum", "Friction", "Circular Motion"}},
		{"unknown board", c.Grades("Sindh Board"), []string{}},
		{"unknown grade", c.Subjects("Punjab Board", "Class 10"), []string{}},
		{"unknown subject", c.Chapters("Punjab Board", "Class 9", "Biology"), []string{}},
		{"unknown chapter", c.Topics("Punjab Board", "Class 9", "Physics", "Optics"), []string{}},
		{"empty chapter", c.Topics("Punjab Board", "Class 9", "Chemistry", "Empty Chapter"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == nil {
				t.Fatal("lookup returned nil, want non-nil slice")
			}
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestCatalog_CountTopics(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name                  string
		board, grade, subject string
		want                  int
	}{
		{"sums chapters", "Punjab Board", "Class 9", "Physics", 10},
		{"empty chapters", "Punjab Board", "Class 9", "Chemistry", 0},
		{"unknown subject", "Punjab Board", "Class 9", "Biology", 0},
		{"unknown board", "Federal Board", "Class 9", "Physics", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.CountTopics(tt.board, tt.grade, tt.subject); got != tt.want {
				t.Errorf("CountTopics() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCatalog_ResultsAreCopies(t *testing.T) {
	c := testCatalog(t)

	topics := c.Topics("Punjab Board", "Class 9", "Physics", "Kinematics")
	topics[0] = "Mutated"

	again := c.Topics("Punjab Board", "Class 9", "Physics", "Kinematics")
	if again[0] != "Motion" {
		t.Errorf("catalog was mutated through a returned slice: %v", again)
	}
}

func TestCatalog_HasSubject(t *testing.T) {
	c := testCatalog(t)

	if !c.HasSubject(curriculum.SubjectPath{Board: "Punjab Board", Grade: "Class 9", Subject: "Physics"}) {
		t.Error("HasSubject(Physics) = false, want true")
	}
	if c.HasSubject(curriculum.SubjectPath{Board: "Punjab Board", Grade: "Class 9", Subject: "Urdu"}) {
		t.Error("HasSubject(Urdu) = true, want false")
	}
}

func TestNew_MergesRepeatedNames(t *testing.T) {
	physics := curriculum.Board{Name: "Punjab Board", Grades: []curriculum.Grade{{
		Name: "Class 9",
		Subjects: []curriculum.Subject{{Name: "Physics", Chapters: []curriculum.Chapter{
			{Name: "Kinematics", Topics: []string{"Motion", "Speed"}},
		}}},
	}}}
	more := curriculum.Board{Name: "Punjab Board", Grades: []curriculum.Grade{{
		Name: "Class 9",
		Subjects: []curriculum.Subject{{Name: "Physics", Chapters: []curriculum.Chapter{
			{Name: "Dynamics", Topics: []string{"Force"}},
		}}},
	}}}

	c, err := curriculum.New(physics, more)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Boards(); !reflect.DeepEqual(got, []string{"Punjab Board"}) {
		t.Errorf("Boards() = %v, want the name once", got)
	}
	if got := c.Chapters("Punjab Board", "Class 9", "Physics"); !reflect.DeepEqual(got, []string{"Kinematics", "Dynamics"}) {
		t.Errorf("Chapters() = %v", got)
	}
	if got := c.CountTopics("Punjab Board", "Class 9", "Physics"); got != 3 {
		t.Errorf("CountTopics() = %d, want 3", got)
	}
}

func TestNew_RejectsRepeats(t *testing.T) {
	board := func(chapters ...curriculum.Chapter) curriculum.Board {
		return curriculum.Board{Name: "Punjab Board", Grades: []curriculum.Grade{{
			Name:     "Class 9",
			Subjects: []curriculum.Subject{{Name: "Physics", Chapters: chapters}},
		}}}
	}

	tests := []struct {
		name   string
		boards []curriculum.Board
	}{
		{"topic twice in a chapter", []curriculum.Board{
			board(curriculum.Chapter{Name: "Kinematics", Topics: []string{"Motion", "Speed", "Motion"}}),
		}},
		{"chapter in two boards", []curriculum.Board{
			board(curriculum.Chapter{Name: "Kinematics", Topics: []string{"Motion"}}),
			board(curriculum.Chapter{Name: "Kinematics", Topics: []string{"Speed"}}),
		}},
		{"chapter twice in a subject", []curriculum.Board{
			board(
				curriculum.Chapter{Name: "Kinematics", Topics: []string{"Motion"}},
				curriculum.Chapter{Name: "Kinematics", Topics: []string{"Speed"}},
			),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := curriculum.New(tt.boards...); err == nil {
				t.Error("New() error = nil, want an error")
			}
		})
	}
}
