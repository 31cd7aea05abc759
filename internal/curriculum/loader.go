package curriculum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads every curriculum definition (.yaml, .yml or .json) under root and
// merges them into one catalog. root may also name a single file.
//
// A definition is a nested mapping board → grade → subject → chapter → list of
// topics. Mapping order is kept, so the catalog lists things the way the
// definition file does.
func Load(root string) (*Catalog, error) {
	var boards []Board

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isDefinition(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		parsed, err := Parse(data)
		if err != nil {
			slog.Warn("skipping invalid curriculum file", "path", path, "error", err)
			return nil
		}

		boards, err = merge(boards, parsed)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	catalog, err := New(boards...)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	slog.Info("curriculum loaded", "boards", len(boards), "topics", catalog.totalTopics())
	return catalog, nil
}

// Parse decodes a single curriculum definition.
func Parse(data []byte) ([]Board, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	boardPairs, err := pairs(doc.Content[0], "curriculum")
	if err != nil {
		return nil, err
	}

	boards := make([]Board, 0, len(boardPairs))
	for _, bp := range boardPairs {
		board := Board{Name: bp.key}
		gradePairs, err := pairs(bp.value, "board "+bp.key)
		if err != nil {
			return nil, err
		}
		for _, gp := range gradePairs {
			grade := Grade{Name: gp.key}
			subjectPairs, err := pairs(gp.value, "grade "+gp.key)
			if err != nil {
				return nil, err
			}
			for _, sp := range subjectPairs {
				subject := Subject{Name: sp.key}
				chapterPairs, err := pairs(sp.value, "subject "+sp.key)
				if err != nil {
					return nil, err
				}
				for _, cp := range chapterPairs {
					topics, err := topicList(cp.value, cp.key)
					if err != nil {
						return nil, err
					}
					subject.Chapters = append(subject.Chapters, Chapter{Name: cp.key, Topics: topics})
				}
				grade.Subjects = append(grade.Subjects, subject)
			}
			board.Grades = append(board.Grades, grade)
		}
		boards = append(boards, board)
	}
	return boards, nil
}

type pair struct {
	key   string
	value *yaml.Node
}

// pairs returns the key/value pairs of a mapping node in document order.
// A null node is an empty mapping. Duplicate keys are rejected.
func pairs(n *yaml.Node, what string) ([]pair, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: %s must be a mapping", n.Line, what)
	}

	out := make([]pair, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if k.Kind != yaml.ScalarNode || strings.TrimSpace(k.Value) == "" {
			return nil, fmt.Errorf("line %d: %s has an empty or non-scalar key", k.Line, what)
		}
		if seen[k.Value] {
			return nil, fmt.Errorf("line %d: %s defines %q twice", k.Line, what, k.Value)
		}
		seen[k.Value] = true
		out = append(out, pair{key: k.Value, value: n.Content[i+1]})
	}
	return out, nil
}

func topicList(n *yaml.Node, chapter string) ([]string, error) {
	if isNull(n) {
		return []string{}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: chapter %q must list its topics", n.Line, chapter)
	}
	topics := make([]string, 0, len(n.Content))
	seen := make(map[string]bool, len(n.Content))
	for _, item := range n.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: topic in chapter %q must be a string", item.Line, chapter)
		}
		if seen[item.Value] {
			return nil, fmt.Errorf("line %d: chapter %q lists %q twice", item.Line, chapter, item.Value)
		}
		seen[item.Value] = true
		topics = append(topics, item.Value)
	}
	return topics, nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func isDefinition(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// merge folds src into dst. Boards, grades and subjects with the same name are
// combined; a chapter may only be defined once and lists each topic once.
func merge(dst, src []Board) ([]Board, error) {
	for _, sb := range src {
		bi := indexOf(len(dst), func(i int) bool { return dst[i].Name == sb.Name })
		if bi < 0 {
			dst = append(dst, Board{Name: sb.Name})
			bi = len(dst) - 1
		}
		b := &dst[bi]
		for _, sg := range sb.Grades {
			gi := indexOf(len(b.Grades), func(i int) bool { return b.Grades[i].Name == sg.Name })
			if gi < 0 {
				b.Grades = append(b.Grades, Grade{Name: sg.Name})
				gi = len(b.Grades) - 1
			}
			g := &b.Grades[gi]
			for _, ss := range sg.Subjects {
				si := indexOf(len(g.Subjects), func(i int) bool { return g.Subjects[i].Name == ss.Name })
				if si < 0 {
					g.Subjects = append(g.Subjects, Subject{Name: ss.Name})
					si = len(g.Subjects) - 1
				}
				s := &g.Subjects[si]
				for _, sc := range ss.Chapters {
					where := fmt.Sprintf("%s/%s/%s", sb.Name, sg.Name, ss.Name)
					if indexOf(len(s.Chapters), func(i int) bool { return s.Chapters[i].Name == sc.Name }) >= 0 {
						return nil, fmt.Errorf("chapter %q of %s defined twice", sc.Name, where)
					}
					if t, ok := repeated(sc.Topics); ok {
						return nil, fmt.Errorf("topic %q listed twice in chapter %q of %s", t, sc.Name, where)
					}
					s.Chapters = append(s.Chapters, sc)
				}
			}
		}
	}
	return dst, nil
}

func repeated(items []string) (string, bool) {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it] {
			return it, true
		}
		seen[it] = true
	}
	return "", false
}

func indexOf(n int, match func(int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}

func (c *Catalog) totalTopics() int {
	total := 0
	for _, b := range c.boards {
		for _, g := range b.Grades {
			for _, s := range g.Subjects {
				total += s.TopicCount()
			}
		}
	}
	return total
}
