package exercise

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/c1advanced/c1prep/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed tasks/*.yaml
var builtinFS embed.FS

// TaskFile is the yaml layout of a built-in task.
type TaskFile struct {
	ID           string `yaml:"id"`
	Type         string `yaml:"type"`
	Title        string `yaml:"title"`
	Instructions string `yaml:"instructions"`
	Text         string `yaml:"text"`
	Content      *struct {
		InputText string   `yaml:"input_text"`
		Question  string   `yaml:"question"`
		Notes     []string `yaml:"notes"`
		Opinions  []string `yaml:"opinions"`
	} `yaml:"content"`
	Options []struct {
		ID    string `yaml:"id"`
		Type  string `yaml:"type"`
		Title string `yaml:"title"`
		Text  string `yaml:"text"`
		Tips  string `yaml:"tips"`
	} `yaml:"options"`
}

// Loader reads built-in tasks from a filesystem of yaml files.
type Loader struct {
	fsys fs.FS
	dir  string
}

// NewLoader creates a loader over fsys rooted at dir.
func NewLoader(fsys fs.FS, dir string) *Loader {
	return &Loader{fsys: fsys, dir: dir}
}

// NewBuiltinLoader returns a loader over the tasks compiled into the binary.
func NewBuiltinLoader() *Loader {
	return NewLoader(builtinFS, "tasks")
}

// LoadTask loads one task by file stem.
func (l *Loader) LoadTask(name string) (*domain.Exercise, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(l.dir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var tf TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse task file %s: %w", name, err)
	}
	if tf.ID == "" {
		tf.ID = name
	}

	ex := &domain.Exercise{
		ID:           tf.ID,
		Type:         tf.Type,
		Title:        tf.Title,
		Instructions: tf.Instructions,
		Text:         tf.Text,
	}
	if tf.Content != nil {
		ex.Content = &domain.Content{
			InputText: tf.Content.InputText,
			Question:  tf.Content.Question,
			Notes:     tf.Content.Notes,
			Opinions:  tf.Content.Opinions,
		}
	}
	for _, o := range tf.Options {
		ex.Options = append(ex.Options, domain.TaskOption{
			ID:    o.ID,
			Type:  o.Type,
			Title: o.Title,
			Text:  o.Text,
			Tips:  o.Tips,
		})
	}
	return ex, nil
}

// LoadAll loads every task in the directory, keyed by file stem.
func (l *Loader) LoadAll() (map[string]*domain.Exercise, error) {
	entries, err := fs.ReadDir(l.fsys, l.dir)
	if err != nil {
		return nil, fmt.Errorf("read tasks directory: %w", err)
	}

	tasks := make(map[string]*domain.Exercise)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		ex, err := l.LoadTask(name)
		if err != nil {
			return nil, fmt.Errorf("load task %s: %w", name, err)
		}
		tasks[name] = ex
	}
	return tasks, nil
}
