package flashcard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/storage/local"
)

type update struct {
	card    string
	success bool
}

type fakeSource struct {
	mu      sync.Mutex
	decks   [][]domain.Flashcard
	loads   int
	err     error
	updates []update
}

func (s *fakeSource) Flashcards(ctx context.Context, userID string) ([]domain.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	deck := s.decks[s.loads%len(s.decks)]
	s.loads++
	return deck, nil
}

func (s *fakeSource) UpdateFlashcard(ctx context.Context, userID, cardID string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update{cardID, success})
	return nil
}

func cards(ids ...string) []domain.Flashcard {
	out := make([]domain.Flashcard, len(ids))
	for i, id := range ids {
		out[i] = domain.Flashcard{ID: id, Front: "front " + id, Back: "back " + id}
	}
	return out
}

func TestDeck_RateAdvancesAndReloads(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{decks: [][]domain.Flashcard{cards("a", "b"), cards("b", "a")}}
	d := NewDeck(src, nil, "u1", nil)
	if err := d.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !d.Flip() {
		t.Error("Flip() = false; want back showing")
	}
	reloaded, err := d.Rate(ctx, true)
	if err != nil || reloaded {
		t.Fatalf("Rate() = %v, %v; want advance", reloaded, err)
	}
	if d.Flipped() {
		t.Error("next card should show its front")
	}
	if c, _ := d.Current(); c.ID != "b" {
		t.Errorf("Current() = %s; want b", c.ID)
	}

	reloaded, err = d.Rate(ctx, false)
	if err != nil || !reloaded {
		t.Fatalf("Rate() on last card = %v, %v; want reload", reloaded, err)
	}
	d.Wait()

	if src.loads != 2 {
		t.Errorf("loads = %d; want 2", src.loads)
	}
	if c, _ := d.Current(); c.ID != "b" || d.Position() != 1 {
		t.Errorf("after reload Current() = %s at %d; want b at 1", c.ID, d.Position())
	}
	if len(src.updates) != 2 || src.updates[0] != (update{"a", true}) || src.updates[1] != (update{"b", false}) {
		t.Errorf("updates = %+v", src.updates)
	}
}

func TestDeck_SkipsUpdateWithoutID(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{decks: [][]domain.Flashcard{{{Front: "x"}, {ID: "y"}}}}
	d := NewDeck(src, nil, "u1", nil)
	_ = d.Load(ctx)

	var rated []string
	d.OnRate = func(c domain.Flashcard, ok bool) { rated = append(rated, c.Front) }
	if _, err := d.Rate(ctx, true); err != nil {
		t.Fatalf("Rate() error = %v", err)
	}
	d.Wait()
	if len(src.updates) != 0 {
		t.Errorf("updates = %+v; want none for a card without id", src.updates)
	}
	if len(rated) != 1 || rated[0] != "x" {
		t.Errorf("OnRate saw %v", rated)
	}
}

func TestDeck_EmptyDeck(t *testing.T) {
	d := NewDeck(&fakeSource{decks: [][]domain.Flashcard{{}}}, nil, "u1", nil)
	_ = d.Load(context.Background())
	if _, ok := d.Current(); ok {
		t.Error("Current() on empty deck = ok")
	}
	if _, err := d.Rate(context.Background(), true); !errors.Is(err, domain.ErrNoExercise) {
		t.Errorf("Rate() error = %v; want ErrNoExercise", err)
	}
}

func TestDeck_FallsBackToCache(t *testing.T) {
	ctx := context.Background()
	store, err := local.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	online := &fakeSource{decks: [][]domain.Flashcard{cards("a", "b", "c")}}
	if err := NewDeck(online, store, "u1", nil).Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	offline := &fakeSource{err: errors.New("no route to host")}
	d := NewDeck(offline, store, "u1", nil)
	if err := d.Load(ctx); err != nil {
		t.Fatalf("Load() with cache error = %v", err)
	}
	if d.Len() != 3 || !d.Cached() {
		t.Errorf("Len() = %d Cached() = %v; want cached deck of 3", d.Len(), d.Cached())
	}

	if err := NewDeck(offline, store, "other", nil).Load(ctx); err == nil {
		t.Error("Load() for a user without cache should fail")
	}
}
