package engine

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed levels.yaml
var defaultLevelsYAML []byte

type LevelDefinition struct {
	Level int    `yaml:"level"`
	Name  string `yaml:"name"`
	MinXP int    `yaml:"min_xp"`
	Color string `yaml:"color"`
}

// LevelTable is ordered by level, starting at 1. Level 0 means the backend
// has not ranked the user yet and displays as level 1.
type LevelTable struct {
	defs []LevelDefinition
}

var defaultLevels = mustParseLevels(defaultLevelsYAML)

func DefaultLevels() *LevelTable { return defaultLevels }

func mustParseLevels(raw []byte) *LevelTable {
	t, err := ParseLevelTable(raw)
	if err != nil {
		panic(fmt.Sprintf("embedded level table: %v", err))
	}
	return t
}

// LoadLevelTable reads a level table override. An empty path yields the
// built-in table.
func LoadLevelTable(path string) (*LevelTable, error) {
	if path == "" {
		return DefaultLevels(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read level table: %w", err)
	}
	t, err := ParseLevelTable(raw)
	if err != nil {
		return nil, fmt.Errorf("level table %s: %w", path, err)
	}
	return t, nil
}

func ParseLevelTable(raw []byte) (*LevelTable, error) {
	var doc struct {
		Levels []LevelDefinition `yaml:"levels"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse levels: %w", err)
	}
	if len(doc.Levels) == 0 {
		return nil, fmt.Errorf("no levels defined")
	}
	defs := append([]LevelDefinition(nil), doc.Levels...)
	sort.Slice(defs, func(i, j int) bool { return defs[i].Level < defs[j].Level })
	for i, d := range defs {
		if d.Level != i+1 {
			return nil, fmt.Errorf("levels must run 1..N without gaps, got %d at position %d", d.Level, i+1)
		}
		if d.Name == "" {
			return nil, fmt.Errorf("level %d has no name", d.Level)
		}
		if i == 0 && d.MinXP != 0 {
			return nil, fmt.Errorf("level 1 must start at 0 XP")
		}
		if i > 0 && d.MinXP < defs[i-1].MinXP {
			return nil, fmt.Errorf("level %d min_xp %d is below level %d", d.Level, d.MinXP, defs[i-1].Level)
		}
	}
	return &LevelTable{defs: defs}, nil
}

func (t *LevelTable) Max() int { return len(t.defs) }

// Get returns the definition for level, treating level 0 as level 1.
func (t *LevelTable) Get(level int) (LevelDefinition, bool) {
	if level <= 0 {
		level = 1
	}
	if level > len(t.defs) {
		return LevelDefinition{}, false
	}
	return t.defs[level-1], true
}

func (t *LevelTable) Name(level int) string {
	if d, ok := t.Get(level); ok {
		return d.Name
	}
	return fmt.Sprintf("Level %d", level)
}

// MinXP is the XP threshold of level. Levels past the table clamp to the top.
func (t *LevelTable) MinXP(level int) int {
	if d, ok := t.Get(level); ok {
		return d.MinXP
	}
	return t.defs[len(t.defs)-1].MinXP
}

// LevelForTotalXP returns the highest level whose threshold totalXP meets.
// The backend is authoritative for the real level; this is for display and
// offline fallbacks.
func (t *LevelTable) LevelForTotalXP(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	i := sort.Search(len(t.defs), func(i int) bool { return t.defs[i].MinXP > totalXP })
	return i
}

// LevelProgress describes how far a user is through their current level.
type LevelProgress struct {
	Current     LevelDefinition
	Next        *LevelDefinition
	XPIntoLevel int
	XPToNext    int
	Percent     float64
}

// Progress computes progress for a user at level with totalXP. At the top
// level Next is nil and Percent is 100.
func (t *LevelTable) Progress(level, totalXP int) LevelProgress {
	cur, ok := t.Get(level)
	if !ok {
		cur = t.defs[len(t.defs)-1]
	}
	p := LevelProgress{Current: cur, XPIntoLevel: max(0, totalXP-cur.MinXP)}
	next, ok := t.Get(cur.Level + 1)
	if !ok {
		p.Percent = 100
		return p
	}
	p.Next = &next
	span := next.MinXP - cur.MinXP
	p.XPToNext = max(0, next.MinXP-totalXP)
	if span <= 0 {
		p.Percent = 100
		return p
	}
	p.Percent = min(100, float64(p.XPIntoLevel)/float64(span)*100)
	return p
}
