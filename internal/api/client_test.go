package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/c1advanced/c1prep/internal/domain"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func newTestClient(t *testing.T, h http.HandlerFunc, tokens TokenSource) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Tokens: tokens, Resilience: ResilienceConfig{}})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFetchExercise(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/get_exercise/" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q; want %q", got, "Bearer tok")
		}
		var req FetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.UserID != "u1" || req.ExerciseType != "reading_and_use_of_language2" || req.Level != "C1" || req.CompletedIDs == nil {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"id":"ex1","type":"reading_and_use_of_language2","questions":[{"question":"1","answer":"ALTHOUGH"}]}`))
	}, staticToken("tok"))

	ex, err := c.FetchExercise(context.Background(), FetchRequest{UserID: "u1", ExerciseType: "reading_and_use_of_language2", Level: "C1"})
	if err != nil {
		t.Fatalf("FetchExercise() error = %v", err)
	}
	if ex.ID != "ex1" || len(ex.Questions) != 1 || ex.Questions[0].Answer != "ALTHOUGH" {
		t.Errorf("exercise = %+v", ex)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"daily limit", http.StatusTooManyRequests, domain.ErrLimitReached},
		{"payment", http.StatusPaymentRequired, domain.ErrPremiumRequired},
		{"unauthorized", http.StatusUnauthorized, domain.ErrNotAuthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"detail":"nope"}`, tt.status)
			}, nil)

			_, err := c.FetchExercise(context.Background(), FetchRequest{ExerciseType: "listening1"})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v; want %v", err, tt.want)
			}
			if StatusCode(err) != tt.status {
				t.Errorf("StatusCode() = %d; want %d", StatusCode(err), tt.status)
			}
		})
	}
}

func TestServerErrorNotEntitlement(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, nil)

	_, err := c.FetchExercise(context.Background(), FetchRequest{ExerciseType: "listening1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsEntitlement(err) {
		t.Error("a 500 must not route to the upsell")
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("StatusCode() = %d; want 500", StatusCode(err))
	}
}

func TestGenerateReviewNoMistakes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate_review/u1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		http.Error(w, `{"detail":"NO_MISTAKES"}`, http.StatusNotFound)
	}, nil)

	_, err := c.GenerateReview(context.Background(), "u1")
	if !errors.Is(err, domain.ErrNoMistakes) {
		t.Errorf("error = %v; want ErrNoMistakes", err)
	}
}

func TestPreloadUsesSystemUser(t *testing.T) {
	var got FetchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/preload_exercise/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"buffered"}`))
	}, nil)

	if err := c.Preload(context.Background(), "listening2", "C1"); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}
	if got.UserID != PreloadUserID || got.ExerciseType != "listening2" {
		t.Errorf("request = %+v", got)
	}
}

func TestSubmitResult(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submit_result/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"status":"saved"}`))
	}, nil)

	err := c.SubmitResult(context.Background(), ResultSubmission{UserID: "u1", ExerciseType: "listening1", Score: 3, Total: 5})
	if err != nil {
		t.Fatalf("SubmitResult() error = %v", err)
	}
	if body["exercise_id"] != nil {
		t.Errorf("exercise_id = %v; want null", body["exercise_id"])
	}
	if m, ok := body["mistakes"].([]any); !ok || len(m) != 0 {
		t.Errorf("mistakes = %v; want empty list", body["mistakes"])
	}
}

func TestGradeWritingSendsTaskText(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"score":7,"feedback":"Solid.","corrections":[{"original":"a","corrected":"b"}],"model_answer":"m"}`))
	}, nil)

	fb, err := c.GradeWriting(context.Background(), GradeRequest{UserID: "u1", TaskText: "task", UserText: "text", Level: "C1"})
	if err != nil {
		t.Fatalf("GradeWriting() error = %v", err)
	}
	if body["task_text"] != "task" || body["user_text"] != "text" {
		t.Errorf("request = %v", body)
	}
	if fb.Score != 7 || len(fb.Corrections) != 1 || fb.ModelAnswer != "m" {
		t.Errorf("feedback = %+v", fb)
	}
}

func TestTranscribeMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "recording.webm" || string(data) != "audio" {
			t.Errorf("file = %s %q", hdr.Filename, data)
		}
		_, _ = w.Write([]byte(`{"text":"hello there"}`))
	}, nil)

	text, err := c.Transcribe(context.Background(), []byte("audio"), "")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello there" {
		t.Errorf("text = %q", text)
	}
}

func TestTranscribeFilenameFollowsMIMEType(t *testing.T) {
	tests := []struct {
		mimeType string
		want     string
	}{
		{"", "recording.webm"},
		{"audio/wav", "recording.wav"},
		{"audio/mpeg", "recording.mp3"},
		{"audio/ogg; codecs=opus", "recording.ogg"},
		{"application/octet-stream", "recording.webm"},
	}
	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				f, hdr, err := r.FormFile("file")
				if err != nil {
					t.Fatalf("FormFile() error = %v", err)
				}
				defer f.Close()
				if hdr.Filename != tt.want {
					t.Errorf("Filename = %q; want %q", hdr.Filename, tt.want)
				}
				_, _ = w.Write([]byte(`{"text":"ok"}`))
			}, nil)
			if _, err := c.Transcribe(context.Background(), []byte("audio"), tt.mimeType); err != nil {
				t.Fatalf("Transcribe() error = %v", err)
			}
		})
	}
}

func TestUserPathsAreEscaped(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.EscapedPath())
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}, nil)

	uid := "u 1/x"
	_ = c.StatsOrDefault(context.Background(), uid)
	if _, err := c.Flashcards(context.Background(), uid); err != nil {
		t.Fatalf("Flashcards() error = %v", err)
	}
	if err := c.UpdateFlashcard(context.Background(), uid, "c1", true); err != nil {
		t.Fatalf("UpdateFlashcard() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"/user_stats/u%201%2Fx", "/vocabulary_flashcards/u%201%2Fx", "/update_flashcard/u%201%2Fx"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %q; want %q", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path[%d] = %q; want %q", i, paths[i], want[i])
		}
	}
}

func TestFlashcardsAndStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/vocabulary_flashcards/u1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"flashcards":[{"id":"c1","front":"ubiquitous","back":"everywhere"}]}`))
	})
	mux.HandleFunc("/user_stats/u1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	})
	c := newTestClient(t, mux.ServeHTTP, nil)

	cards, err := c.Flashcards(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Flashcards() error = %v", err)
	}
	if len(cards) != 1 || cards[0].Front != "ubiquitous" {
		t.Errorf("cards = %+v", cards)
	}

	s := c.StatsOrDefault(context.Background(), "u1")
	if *s != (domain.Stats{}) {
		t.Errorf("stats = %+v; want zero defaults", s)
	}
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Resilience: ResilienceConfig{EnableCircuitBreaker: true}})
	defer c.Close()

	for i := 0; i < 5; i++ {
		_, _ = c.Stats(context.Background(), "u1")
	}
	if got := hits.Load(); got >= 5 {
		t.Errorf("server hits = %d; want the breaker to reject some calls", got)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "limit", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Resilience: ResilienceConfig{EnableCircuitBreaker: true}})
	defer c.Close()

	for i := 0; i < 5; i++ {
		_, _ = c.FetchExercise(context.Background(), FetchRequest{ExerciseType: "listening1"})
	}
	if got := hits.Load(); got != 5 {
		t.Errorf("server hits = %d; want 5", got)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	dead := New(Config{BaseURL: "http://127.0.0.1:1"})
	defer dead.Close()
	if err := dead.Ping(context.Background()); err == nil {
		t.Error("Ping() to closed port should fail")
	}
}
