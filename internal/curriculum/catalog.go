package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Course is a pre-authored roadmap with its own question banks, loaded from YAML.
type Course struct {
	ID         string     `yaml:"id"`
	Topic      string     `yaml:"topic"`
	Aliases    []string   `yaml:"aliases"`
	Difficulty Difficulty `yaml:"difficulty"`
	Modules    []Module   `yaml:"modules"`
	// Quizzes maps week number to its question bank.
	Quizzes map[int][]Question `yaml:"quizzes"`
	Final   []Question         `yaml:"final"`
}

// Catalog serves curricula from course files on disk. It works offline and
// acts as the fallback when no AI provider can answer.
type Catalog struct {
	rootDir string
	courses map[string]Course
	mu      sync.RWMutex
}

// NewCatalog creates a catalog and loads every course under rootDir.
// A missing directory yields an empty catalog.
func NewCatalog(rootDir string) (*Catalog, error) {
	c := &Catalog{
		rootDir: rootDir,
		courses: make(map[string]Course),
	}

	if _, err := os.Stat(rootDir); os.IsNotExist(err) {
		slog.Warn("course catalog directory missing", "path", rootDir)
		return c, nil
	}
	if err := c.loadAll(); err != nil {
		return nil, fmt.Errorf("loading course catalog: %w", err)
	}

	slog.Info("course catalog loaded", "courses", len(c.courses))
	return c, nil
}

// Course returns a course by ID.
func (c *Catalog) Course(id string) (Course, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[id]
	return course, ok
}

// Len returns the number of loaded courses.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.courses)
}

// Find returns the course for a topic. An exact difficulty match wins,
// otherwise the nearest tier. Ties go to the lowest course ID.
func (c *Catalog) Find(topic string, difficulty Difficulty) (Course, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := normalizeTopic(topic)
	var (
		best     Course
		bestDist = -1
	)
	for _, course := range c.courses {
		if !course.matches(key) {
			continue
		}
		dist := 0
		if course.Difficulty != difficulty {
			dist = 1 + abs(course.Difficulty.rank()-difficulty.rank())
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && course.ID < best.ID) {
			best, bestDist = course, dist
		}
	}
	return best, bestDist >= 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (c *Catalog) GenerateCurriculum(_ context.Context, req CurriculumRequest) ([]Module, error) {
	course, ok := c.Find(req.Topic, req.Difficulty)
	if !ok {
		return nil, fmt.Errorf("%w: no catalog course for topic %q", ErrGeneration, req.Topic)
	}
	modules, err := normalizeModules(course.Modules)
	if err != nil {
		return nil, fmt.Errorf("%w: course %s: %w", ErrGeneration, course.ID, err)
	}
	return modules, nil
}

func (c *Catalog) GenerateAssessment(_ context.Context, scope Scope) ([]Question, error) {
	course, ok := c.Find(scope.Topic, scope.Difficulty)
	if !ok {
		return nil, fmt.Errorf("%w: no catalog course for topic %q", ErrGeneration, scope.Topic)
	}

	var bank []Question
	switch scope.Kind {
	case KindFinal:
		bank = course.Final
	default:
		for _, m := range course.Modules {
			if strings.EqualFold(m.Title, scope.Title) {
				bank = course.Quizzes[m.Number]
				break
			}
		}
	}
	if len(bank) == 0 {
		return nil, fmt.Errorf("%w: course %s has no %s questions for %q", ErrGeneration, course.ID, scope.Kind, scope.Title)
	}

	count := scope.Count
	if count <= 0 {
		count = DefaultCount(scope.Kind)
	}
	if count < len(bank) {
		bank = bank[:count]
	}
	questions, err := normalizeQuestions(scope.Kind, bank)
	if err != nil {
		return nil, fmt.Errorf("%w: course %s: %w", ErrGeneration, course.ID, err)
	}
	return questions, nil
}

func (course Course) matches(key string) bool {
	if normalizeTopic(course.Topic) == key {
		return true
	}
	for _, a := range course.Aliases {
		if normalizeTopic(a) == key {
			return true
		}
	}
	return false
}

func normalizeTopic(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func (c *Catalog) loadAll() error {
	return filepath.Walk(c.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return c.loadCourse(path)
		}
		return nil
	})
}

func (c *Catalog) loadCourse(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var course Course
	if err := yaml.Unmarshal(data, &course); err != nil {
		slog.Warn("skipping invalid course YAML", "path", path, "error", err)
		return nil
	}

	if course.ID == "" || course.Topic == "" {
		return nil // Not a course file
	}
	if course.Difficulty == "" {
		course.Difficulty = Beginner
	}

	c.mu.Lock()
	c.courses[course.ID] = course
	c.mu.Unlock()

	return nil
}
