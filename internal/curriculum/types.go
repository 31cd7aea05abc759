package curriculum

// Class identifies a board and grade pair (e.g. "Punjab Board" / "Class 9").
type Class struct {
	Board string `json:"board"`
	Grade string `json:"grade"`
}

// String renders the class the way the dashboard labels it.
func (c Class) String() string {
	return c.Board + " - " + c.Grade
}

// SubjectPath identifies a subject within a class.
type SubjectPath struct {
	Board   string `json:"board"`
	Grade   string `json:"grade"`
	Subject string `json:"subject"`
}

// Class returns the board/grade part of the path.
func (p SubjectPath) Class() Class {
	return Class{Board: p.Board, Grade: p.Grade}
}

// Board is the root of one curriculum tree.
type Board struct {
	Name   string
	Grades []Grade
}

// Grade groups the subjects taught in one class of a board.
type Grade struct {
	Name     string
	Subjects []Subject
}

// Subject groups textbook chapters.
type Subject struct {
	Name     string
	Chapters []Chapter
}

// Chapter holds the ordered topic names of one textbook chapter.
type Chapter struct {
	Name   string
	Topics []string
}

// TopicCount returns the number of topics across all chapters.
func (s Subject) TopicCount() int {
	n := 0
	for _, ch := range s.Chapters {
		n += len(ch.Topics)
	}
	return n
}
