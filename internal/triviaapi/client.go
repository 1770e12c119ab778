package triviaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"trivia-quiz-service/internal/domain"
)

const (
	DefaultBaseURL = "https://the-trivia-api.com"
	questionsPath  = "/api/questions"
	defaultTimeout = 10 * time.Second
)

// RawQuestion mirrors a question item returned by The Trivia API.
type RawQuestion struct {
	ID               string       `json:"id"`
	Category         string       `json:"category"`
	Difficulty       string       `json:"difficulty"`
	Question         questionText `json:"question"`
	CorrectAnswer    string       `json:"correctAnswer"`
	IncorrectAnswers []string     `json:"incorrectAnswers"`
}

// questionText accepts both the v1 plain string and the v2 {"text": ...} shape.
type questionText string

func (q *questionText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*q = questionText(obj.Text)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*q = questionText(s)
	return nil
}

// Client talks to The Trivia API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient builds a client. A nil httpClient gets a default timeout, an
// empty baseURL points at the public API.
func NewClient(httpClient *http.Client, baseURL string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, logger: logger}
}

// FetchQuestions requests cfg.Amount questions for the configured category
// and difficulty. Every failure wraps domain.ErrFetchFailed.
func (c *Client) FetchQuestions(ctx context.Context, cfg domain.NormalizedConfig) ([]RawQuestion, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(cfg.Amount))
	query.Set("category", cfg.Category)
	if cfg.Difficulty != "" {
		query.Set("difficulty", cfg.Difficulty)
	}
	reqURL := c.baseURL + questionsPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("trivia api response",
		zap.String("url", reqURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: trivia api returned status %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	var payload []RawQuestion
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", domain.ErrFetchFailed, err)
	}
	return payload, nil
}

// LoadQuestions fetches questions for cfg and turns them into shuffled
// multiple choice questions.
func (c *Client) LoadQuestions(ctx context.Context, cfg domain.NormalizedConfig) ([]domain.Question, error) {
	raw, err := c.FetchQuestions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return BuildQuestions(raw)
}
