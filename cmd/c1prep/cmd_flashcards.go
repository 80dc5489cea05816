package main

import (
	"strings"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/flashcard"
	"github.com/c1advanced/c1prep/internal/storage/sqlite"
)

// flashcardRating is the activity entry of one rated card.
type flashcardRating struct {
	Front   string `json:"front"`
	Success bool   `json:"success"`
}

func cmdFlashcards(opts globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	uid, err := a.requireUser()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	con := newConsole(stdin, stdout)

	deck := flashcard.NewDeck(a.client, a.store, uid, a.logger)
	deck.OnRate = func(card domain.Flashcard, success bool) {
		rating := flashcardRating{Front: card.Front, Success: success}
		if err := a.history.RecordEvent(ctx, sqlite.ActivityFlashcard, card.ID, rating); err != nil {
			a.logger.Warn("record flashcard", "error", err)
		}
	}
	defer deck.Wait()

	if err := deck.Load(ctx); err != nil {
		return err
	}
	if deck.Cached() {
		con.println("(offline: showing your last downloaded deck)")
	}
	if deck.Len() == 0 {
		con.println("Your deck is empty. Mistakes you make in practice become flashcards.")
		return nil
	}

	con.println("Enter flips the card. Then: y = knew it, n = didn't, q = quit.")
	for {
		card, ok := deck.Current()
		if !ok {
			return nil
		}
		con.printf("\n[%d/%d] %s\n", deck.Position(), deck.Len(), card.Front)

		in, ok := con.ask("")
		if !ok || in == "q" {
			return nil
		}
		if !deck.Flipped() {
			deck.Flip()
		}
		con.printf("  %s\n", card.Back)
		if card.Example != "" {
			con.printf("  e.g. %s\n", card.Example)
		}

		answer, ok := con.ask("Did you know it? [y/n] ")
		if !ok || answer == "q" {
			return nil
		}
		success := strings.HasPrefix(strings.ToLower(answer), "y")
		reloaded, err := deck.Rate(ctx, success)
		if err != nil {
			return err
		}
		if reloaded {
			con.println("\nDeck finished. Starting again with a fresh deck.")
		}
	}
}
