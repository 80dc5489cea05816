package exam

import (
	"errors"
	"fmt"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/storage/local"
)

const currentID = "current"

// Progress is the resumable state of an exam attempt. Answers are not
// kept; a resumed exam restarts each part it revisits.
type Progress struct {
	Exam      domain.Exam `json:"exam"`
	StartedAt time.Time   `json:"started_at"`
	Deadline  time.Time   `json:"deadline"`
	Index     int         `json:"index"`
	Submitted bool        `json:"submitted"`
}

// Progress snapshots the attempt.
func (n *Navigator) Progress() Progress {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Progress{
		Exam:      *n.exam,
		StartedAt: n.started,
		Deadline:  n.deadline,
		Index:     n.index,
		Submitted: n.submitted,
	}
}

// Resume continues an attempt. The original deadline still applies, so
// an attempt resumed after it submits on the first Tick.
func Resume(p Progress, cfg Config) (*Navigator, error) {
	exam := p.Exam
	n, err := New(&exam, cfg)
	if err != nil {
		return nil, err
	}
	n.started = p.StartedAt
	n.deadline = p.Deadline
	if err := n.Goto(p.Index); err != nil {
		n.index = 0
	}
	return n, nil
}

// Store is where progress is kept between runs.
type Store interface {
	Save(collection, id string, data any) error
	Load(collection, id string, data any) error
	Delete(collection, id string) error
}

var _ Store = (*local.Store)(nil)

// SaveProgress stores the attempt as the current exam.
func SaveProgress(s Store, n *Navigator) error {
	if err := s.Save(local.CollectionExams, currentID, n.Progress()); err != nil {
		return fmt.Errorf("save exam progress: %w", err)
	}
	return nil
}

// LoadProgress returns the current unfinished exam, if any.
func LoadProgress(s Store) (*Progress, bool, error) {
	var p Progress
	err := s.Load(local.CollectionExams, currentID, &p)
	if errors.Is(err, local.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load exam progress: %w", err)
	}
	if p.Submitted || len(p.Exam.Parts) == 0 {
		return nil, false, nil
	}
	return &p, true, nil
}

// ClearProgress forgets the current exam.
func ClearProgress(s Store) error {
	err := s.Delete(local.CollectionExams, currentID)
	if err != nil && !errors.Is(err, local.ErrNotFound) {
		return fmt.Errorf("clear exam progress: %w", err)
	}
	return nil
}
