// Package curriculum provides the static Board → Grade → Subject → Chapter → Topic
// lookup tree. Lookups never fail: unknown paths yield empty results.
package curriculum

// Catalog is an immutable view over a set of curriculum trees.
// It is safe for concurrent use once constructed.
type Catalog struct {
	boards []Board
	index  map[string]int
}

// New builds a catalog. Boards, grades and subjects with the same name are
// combined in order of first appearance. A chapter defined twice, or a topic
// listed twice in one chapter, is an error since it would skew topic counts.
// The input is deep-copied so later mutation by the caller cannot leak in.
func New(boards ...Board) (*Catalog, error) {
	var merged []Board
	for _, b := range boards {
		var err error
		if merged, err = merge(merged, []Board{cloneBoard(b)}); err != nil {
			return nil, err
		}
	}

	c := &Catalog{
		boards: merged,
		index:  make(map[string]int, len(merged)),
	}
	for i, b := range merged {
		c.index[b.Name] = i
	}
	return c, nil
}

// Boards returns all board names in definition order.
func (c *Catalog) Boards() []string {
	names := make([]string, 0, len(c.boards))
	for _, b := range c.boards {
		names = append(names, b.Name)
	}
	return names
}

// Grades returns the grade names under board.
func (c *Catalog) Grades(board string) []string {
	b, ok := c.board(board)
	if !ok {
		return []string{}
	}
	names := make([]string, 0, len(b.Grades))
	for _, g := range b.Grades {
		names = append(names, g.Name)
	}
	return names
}

// Subjects returns the subject names taught in board/grade.
func (c *Catalog) Subjects(board, grade string) []string {
	g, ok := c.grade(board, grade)
	if !ok {
		return []string{}
	}
	names := make([]string, 0, len(g.Subjects))
	for _, s := range g.Subjects {
		names = append(names, s.Name)
	}
	return names
}

// Chapters returns the chapter names of a subject.
func (c *Catalog) Chapters(board, grade, subject string) []string {
	s, ok := c.subject(board, grade, subject)
	if !ok {
		return []string{}
	}
	names := make([]string, 0, len(s.Chapters))
	for _, ch := range s.Chapters {
		names = append(names, ch.Name)
	}
	return names
}

// Topics returns the ordered topic names of a chapter.
func (c *Catalog) Topics(board, grade, subject, chapter string) []string {
	s, ok := c.subject(board, grade, subject)
	if !ok {
		return []string{}
	}
	for _, ch := range s.Chapters {
		if ch.Name == chapter {
			return append([]string{}, ch.Topics...)
		}
	}
	return []string{}
}

// CountTopics returns the total topic count of a subject across all of its
// chapters, or 0 when the path does not exist. This is the mastery denominator.
func (c *Catalog) CountTopics(board, grade, subject string) int {
	s, ok := c.subject(board, grade, subject)
	if !ok {
		return 0
	}
	return s.TopicCount()
}

// HasSubject reports whether the path names a subject in the catalog.
func (c *Catalog) HasSubject(p SubjectPath) bool {
	_, ok := c.subject(p.Board, p.Grade, p.Subject)
	return ok
}

func (c *Catalog) board(name string) (*Board, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return &c.boards[i], true
}

func (c *Catalog) grade(board, grade string) (*Grade, bool) {
	b, ok := c.board(board)
	if !ok {
		return nil, false
	}
	for i := range b.Grades {
		if b.Grades[i].Name == grade {
			return &b.Grades[i], true
		}
	}
	return nil, false
}

func (c *Catalog) subject(board, grade, subject string) (*Subject, bool) {
	g, ok := c.grade(board, grade)
	if !ok {
		return nil, false
	}
	for i := range g.Subjects {
		if g.Subjects[i].Name == subject {
			return &g.Subjects[i], true
		}
	}
	return nil, false
}

func cloneBoard(b Board) Board {
	out := Board{Name: b.Name, Grades: make([]Grade, len(b.Grades))}
	for i, g := range b.Grades {
		out.Grades[i] = Grade{Name: g.Name, Subjects: make([]Subject, len(g.Subjects))}
		for j, s := range g.Subjects {
			out.Grades[i].Subjects[j] = Subject{Name: s.Name, Chapters: make([]Chapter, len(s.Chapters))}
			for k, ch := range s.Chapters {
				out.Grades[i].Subjects[j].Chapters[k] = Chapter{
					Name:   ch.Name,
					Topics: append([]string{}, ch.Topics...),
				}
			}
		}
	}
	return out
}
