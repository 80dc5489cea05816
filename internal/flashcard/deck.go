// Package flashcard runs a vocabulary review: cards are flipped and rated
// one by one, ratings are sent without waiting, and the deck reloads after
// the last card so the server can reorder it.
package flashcard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/storage/local"
)

const updateTimeout = 30 * time.Second

// Source is the flashcard backend.
type Source interface {
	Flashcards(ctx context.Context, userID string) ([]domain.Flashcard, error)
	UpdateFlashcard(ctx context.Context, userID, cardID string, success bool) error
}

// Cache keeps the last deck for review without a connection.
type Cache interface {
	Save(collection, id string, data any) error
	Load(collection, id string, data any) error
}

var (
	_ Source = (*api.Client)(nil)
	_ Cache  = (*local.Store)(nil)
)

// Deck is one review run for a user.
type Deck struct {
	source Source
	cache  Cache
	userID string
	logger *slog.Logger

	// OnRate observes every rating.
	OnRate func(card domain.Flashcard, success bool)

	wg sync.WaitGroup

	mu      sync.Mutex
	cards   []domain.Flashcard
	index   int
	flipped bool
	cached  bool
}

// NewDeck creates a deck. cache may be nil.
func NewDeck(source Source, cache Cache, userID string, logger *slog.Logger) *Deck {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deck{source: source, cache: cache, userID: userID, logger: logger}
}

// Load fetches the deck and starts at the first card. When the server
// cannot be reached the last cached deck is used.
func (d *Deck) Load(ctx context.Context) error {
	cards, err := d.source.Flashcards(ctx, d.userID)
	cached := false
	if err != nil {
		var ok bool
		cards, ok = d.loadCache()
		if !ok {
			return fmt.Errorf("load flashcards: %w", err)
		}
		d.logger.Warn("flashcards unavailable, using cached deck", "error", err)
		cached = true
	} else {
		d.saveCache(cards)
	}

	d.mu.Lock()
	d.cards = cards
	d.index = 0
	d.flipped = false
	d.cached = cached
	d.mu.Unlock()
	return nil
}

func (d *Deck) cacheID() string {
	if d.userID == "" {
		return "deck"
	}
	return "deck-" + d.userID
}

func (d *Deck) loadCache() ([]domain.Flashcard, bool) {
	if d.cache == nil {
		return nil, false
	}
	var cards []domain.Flashcard
	if err := d.cache.Load(local.CollectionFlashcards, d.cacheID(), &cards); err != nil {
		if !errors.Is(err, local.ErrNotFound) {
			d.logger.Warn("read cached flashcards", "error", err)
		}
		return nil, false
	}
	return cards, true
}

func (d *Deck) saveCache(cards []domain.Flashcard) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Save(local.CollectionFlashcards, d.cacheID(), cards); err != nil {
		d.logger.Warn("cache flashcards", "error", err)
	}
}

// Len returns the number of cards.
func (d *Deck) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cards)
}

// Position returns the 1-based position of the current card.
func (d *Deck) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index + 1
}

// Cached reports whether the deck came from the local cache.
func (d *Deck) Cached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cached
}

// Current returns the card on top.
func (d *Deck) Current() (domain.Flashcard, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.cards) == 0 {
		return domain.Flashcard{}, false
	}
	return d.cards[d.index], true
}

// Flip turns the current card over and returns whether the back shows.
func (d *Deck) Flip() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flipped = !d.flipped
	return d.flipped
}

// Flipped reports whether the back of the current card shows.
func (d *Deck) Flipped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flipped
}

// Rate records whether the user knew the current card and moves on. The
// status update is sent in the background. After the last card the deck
// reloads and Rate reports true.
func (d *Deck) Rate(ctx context.Context, success bool) (bool, error) {
	d.mu.Lock()
	if len(d.cards) == 0 {
		d.mu.Unlock()
		return false, domain.ErrNoExercise
	}
	card := d.cards[d.index]
	last := d.index >= len(d.cards)-1
	d.flipped = false
	if !last {
		d.index++
	}
	d.mu.Unlock()

	if card.ID != "" {
		d.sendUpdate(ctx, card.ID, success)
	}
	if d.OnRate != nil {
		d.OnRate(card, success)
	}

	if !last {
		return false, nil
	}
	if err := d.Load(ctx); err != nil {
		d.mu.Lock()
		d.index = 0
		d.mu.Unlock()
		return true, err
	}
	return true, nil
}

func (d *Deck) sendUpdate(ctx context.Context, cardID string, success bool) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), updateTimeout)
		defer cancel()
		if err := d.source.UpdateFlashcard(uctx, d.userID, cardID, success); err != nil {
			d.logger.Warn("update flashcard", "card", cardID, "error", err)
		}
	}()
}

// Wait blocks until pending status updates finish.
func (d *Deck) Wait() {
	d.wg.Wait()
}
