// Package api is the HTTP client for the practice server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
)

// DefaultBaseURL is the hosted practice server.
const DefaultBaseURL = "https://english-c1-api.onrender.com"

// PreloadUserID is the user id sent with preload hints.
const PreloadUserID = "preload_system"

const maxErrorBody = 512

// TokenSource supplies the bearer ID token. An empty token means the
// request is sent anonymously.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     TokenSource
	Resilience ResilienceConfig
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the practice server.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	exec    *executor
	logger  *slog.Logger
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Resilience.Logger == nil {
		cfg.Resilience.Logger = cfg.Logger
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = newHTTPClient(cfg.Timeout)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		tokens:  cfg.Tokens,
		exec:    newExecutor(cfg.Resilience),
		logger:  cfg.Logger,
	}
}

// newHTTPClient creates a client with timeouts suited to slow generation
// endpoints; a cold server can take close to a minute to answer.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Close releases the rate limiter.
func (c *Client) Close() error {
	return c.exec.close()
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

// FetchRequest asks for one exercise.
type FetchRequest struct {
	UserID       string   `json:"user_id"`
	ExerciseType string   `json:"exercise_type"`
	Level        string   `json:"level"`
	CompletedIDs []string `json:"completed_ids"`
}

// ResultSubmission reports a checked objective result.
type ResultSubmission struct {
	UserID       string           `json:"user_id"`
	ExerciseType string           `json:"exercise_type"`
	ExerciseID   *string          `json:"exercise_id"`
	Score        int              `json:"score"`
	Total        int              `json:"total"`
	Mistakes     []domain.Mistake `json:"mistakes"`
}

// GradeRequest submits open-ended work for grading.
type GradeRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	TaskText string `json:"task_text" validate:"required"`
	UserText string `json:"user_text" validate:"required"`
	Level    string `json:"level" validate:"required,cefr_level"`
}

type generateRequest struct {
	Type  string `json:"type"`
	Level string `json:"level"`
	Topic string `json:"topic,omitempty"`
}

type examRequest struct {
	UserID string `json:"user_id"`
	Level  string `json:"level"`
}

type flashcardUpdate struct {
	CardID  string `json:"card_id"`
	Success bool   `json:"success"`
}

// FetchExercise asks the server for an exercise. A 429 maps to
// domain.ErrLimitReached through errors.Is.
func (c *Client) FetchExercise(ctx context.Context, req FetchRequest) (*domain.Exercise, error) {
	if req.CompletedIDs == nil {
		req.CompletedIDs = []string{}
	}
	var ex domain.Exercise
	if err := c.postJSON(ctx, "fetch exercise", "/get_exercise/", req, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

// Preload hints the server to pre-generate an exercise. The response is
// discarded.
func (c *Client) Preload(ctx context.Context, exerciseType, level string) error {
	req := FetchRequest{UserID: PreloadUserID, ExerciseType: exerciseType, Level: level, CompletedIDs: []string{}}
	return c.postJSON(ctx, "preload exercise", "/preload_exercise/", req, nil)
}

// Generate asks for a freshly generated exercise on a topic.
func (c *Client) Generate(ctx context.Context, exerciseType, level, topic string) (*domain.Exercise, error) {
	var ex domain.Exercise
	req := generateRequest{Type: exerciseType, Level: level, Topic: topic}
	if err := c.postJSON(ctx, "generate exercise", "/generate", req, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

// SubmitResult stores a checked result for the user.
func (c *Client) SubmitResult(ctx context.Context, sub ResultSubmission) error {
	if sub.Mistakes == nil {
		sub.Mistakes = []domain.Mistake{}
	}
	return c.postJSON(ctx, "submit result", "/submit_result/", sub, nil)
}

// GradeWriting grades a written answer.
func (c *Client) GradeWriting(ctx context.Context, req GradeRequest) (*domain.GradingFeedback, error) {
	return c.grade(ctx, "grade writing", "/grade_writing/", req)
}

// GradeSpeaking grades a transcribed spoken answer.
func (c *Client) GradeSpeaking(ctx context.Context, req GradeRequest) (*domain.GradingFeedback, error) {
	return c.grade(ctx, "grade speaking", "/grade_speaking/", req)
}

func (c *Client) grade(ctx context.Context, op, path string, req GradeRequest) (*domain.GradingFeedback, error) {
	var fb domain.GradingFeedback
	if err := c.postJSON(ctx, op, path, req, &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

// Transcribe uploads one audio clip and returns its text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="recording%s"`, audioExtension(mimeType)))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: create form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("transcribe audio: write form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("transcribe audio: close form: %w", err)
	}

	resp, err := c.send(ctx, "transcribe audio", http.MethodPost, "/transcribe_audio/", mw.FormDataContentType(), body.Bytes(), false)
	if err != nil {
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("transcribe audio: decode response: %w", err)
	}
	return out.Text, nil
}

// audioExtension picks the upload file extension for a clip type.
func audioExtension(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ".webm"
	}
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	}
	return ".webm"
}

// Synthesize renders text to speech and returns the audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, "", fmt.Errorf("synthesize audio: encode request: %w", err)
	}
	resp, err := c.send(ctx, "synthesize audio", http.MethodPost, "/generate_audio/", "application/json", data, false)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.ContentType, nil
}

// DownloadPDF renders a payload as a printable PDF.
func (c *Client) DownloadPDF(ctx context.Context, ex *domain.Exercise) ([]byte, error) {
	data, err := json.Marshal(ex)
	if err != nil {
		return nil, fmt.Errorf("download pdf: encode request: %w", err)
	}
	resp, err := c.send(ctx, "download pdf", http.MethodPost, "/download_pdf", "application/json", data, false)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GenerateFullExam asks for a complete mock exam.
func (c *Client) GenerateFullExam(ctx context.Context, userID, level string) (*domain.Exam, error) {
	var exam domain.Exam
	if err := c.postJSON(ctx, "generate exam", "/generate_full_exam/", examRequest{UserID: userID, Level: level}, &exam); err != nil {
		return nil, err
	}
	return &exam, nil
}

// GenerateReview builds an exercise from the user's mistake pool. A 404
// means the pool is empty and maps to domain.ErrNoMistakes.
func (c *Client) GenerateReview(ctx context.Context, userID string) (*domain.Exercise, error) {
	var ex domain.Exercise
	err := c.postJSON(ctx, "generate review", "/generate_review/"+url.PathEscape(userID), nil, &ex)
	if StatusCode(err) == http.StatusNotFound {
		return nil, fmt.Errorf("generate review: %w", domain.ErrNoMistakes)
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// Flashcards returns the user's vocabulary deck.
func (c *Client) Flashcards(ctx context.Context, userID string) ([]domain.Flashcard, error) {
	var out struct {
		Flashcards []domain.Flashcard `json:"flashcards"`
	}
	if err := c.getJSON(ctx, "list flashcards", "/vocabulary_flashcards/"+url.PathEscape(userID), &out); err != nil {
		return nil, err
	}
	return out.Flashcards, nil
}

// UpdateFlashcard records whether the user knew a card.
func (c *Client) UpdateFlashcard(ctx context.Context, userID, cardID string, success bool) error {
	return c.postJSON(ctx, "update flashcard", "/update_flashcard/"+url.PathEscape(userID), flashcardUpdate{CardID: cardID, Success: success}, nil)
}

// Stats returns the user's progress counters.
func (c *Client) Stats(ctx context.Context, userID string) (*domain.Stats, error) {
	var s domain.Stats
	if err := c.getJSON(ctx, "get stats", "/user_stats/"+url.PathEscape(userID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// StatsOrDefault returns zeroed stats when the server has none.
func (c *Client) StatsOrDefault(ctx context.Context, userID string) *domain.Stats {
	s, err := c.Stats(ctx, userID)
	if err != nil {
		c.logger.Warn("stats unavailable, using defaults", "error", err)
		return &domain.Stats{}
	}
	return s
}

// Coach returns the weakness analysis for the user.
func (c *Client) Coach(ctx context.Context, userID string) (*domain.CoachAdvice, error) {
	var a domain.CoachAdvice
	if err := c.getJSON(ctx, "analyze weaknesses", "/analyze_weaknesses/"+url.PathEscape(userID), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ReportIssue flags a broken question.
func (c *Client) ReportIssue(ctx context.Context, report domain.IssueReport) error {
	return c.postJSON(ctx, "report issue", "/report_issue/", report, nil)
}

// Ping checks that the server is reachable. Any HTTP answer counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	resp.Body.Close()
	return nil
}

// -----------------------------------------------------------------------------
// Transport
// -----------------------------------------------------------------------------

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	var data []byte
	if in != nil {
		var err error
		data, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}
	resp, err := c.send(ctx, op, http.MethodPost, path, "application/json", data, false)
	if err != nil {
		return err
	}
	return decode(op, resp, out)
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.send(ctx, op, http.MethodGet, path, "", nil, true)
	if err != nil {
		return err
	}
	return decode(op, resp, out)
}

func decode(op string, resp *response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// send performs one exchange through the resilience executor and converts
// non-2xx answers into *StatusError.
func (c *Client) send(ctx context.Context, op, method, path, contentType string, body []byte, idempotent bool) (*response, error) {
	token := ""
	if c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			c.logger.Debug("no identity token", "op", op, "error", err)
		}
		token = t
	}

	resp, err := c.exec.execute(ctx, op, idempotent, func(ctx context.Context) (*response, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		r := &response{
			StatusCode:  httpResp.StatusCode,
			ContentType: httpResp.Header.Get("Content-Type"),
			Body:        data,
		}
		if isServerError(r.StatusCode) {
			return nil, statusError(op, r)
		}
		return r, nil
	})
	if err != nil {
		var se *StatusError
		if !errors.As(err, &se) {
			err = fmt.Errorf("%s: %w", op, err)
		}
		c.logger.Debug("practice api request failed", "op", op, "path", path, "error", err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp)
	}
	c.logger.Debug("practice api request", "op", op, "path", path, "status", resp.StatusCode)
	return resp, nil
}

func statusError(op string, r *response) *StatusError {
	body := string(r.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Op: op, StatusCode: r.StatusCode, Body: strings.TrimSpace(body)}
}
