// Package narrative turns a goal forecast into a short plain-language explanation
// using an OpenAI-compatible chat completions API.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/goal-service/internal/config"
	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/sirupsen/logrus"
)

// FallbackMessage is returned to users whenever narration is unavailable.
const FallbackMessage = "Timeline prediction completed. Review scenarios for planning."

// DefaultLanguage is used when no supported language is requested.
const DefaultLanguage = "en"

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("narration is not configured")

var languageNames = map[string]string{
	"en": "English",
	"uz": "Uzbek",
	"ru": "Russian",
}

// ParseLanguage picks the narration language from an explicit value or an
// Accept-Language header, falling back to English.
func ParseLanguage(explicit, acceptLanguage string) string {
	if lang := normalize(explicit); lang != "" {
		return lang
	}
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag, _, _ := strings.Cut(part, ";")
		if lang := normalize(tag); lang != "" {
			return lang
		}
	}
	return DefaultLanguage
}

func normalize(tag string) string {
	primary, _, _ := strings.Cut(strings.TrimSpace(tag), "-")
	primary = strings.ToLower(primary)
	if _, ok := languageNames[primary]; ok {
		return primary
	}
	return ""
}

// Request carries the goal context and forecast to narrate.
type Request struct {
	GoalName   string
	Currency   string
	Target     float64
	Current    float64
	TargetDate *time.Time
	Language   string
	Result     *forecast.Result
}

// Narrator calls the chat completions endpoint.
type Narrator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewNarrator creates a narrator from the LLM settings in cfg.
func NewNarrator(cfg *config.Config, log *logrus.Logger) *Narrator {
	return &Narrator{
		baseURL: strings.TrimRight(cfg.LLMBaseURL, "/"),
		apiKey:  cfg.LLMAPIKey,
		model:   cfg.LLMModel,
		httpClient: &http.Client{
			Timeout: cfg.LLMTimeout,
		},
		log: log,
	}
}

// Enabled reports whether an API key is configured.
func (n *Narrator) Enabled() bool {
	return n.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Narrate asks the model for a short interpretation of the forecast.
func (n *Narrator) Narrate(ctx context.Context, req Request) (string, error) {
	if !n.Enabled() {
		return "", ErrDisabled
	}
	if req.Result == nil {
		return "", fmt.Errorf("nothing to narrate")
	}

	body, err := json.Marshal(chatRequest{
		Model: n.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.Language)},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion returned empty content")
	}

	n.log.Debugf("Narrated forecast for goal %q in %s (%d chars)", req.GoalName, req.Language, len(text))
	return text, nil
}

func systemPrompt(language string) string {
	name, ok := languageNames[language]
	if !ok {
		name = languageNames[DefaultLanguage]
	}
	return "You are a personal finance assistant. Explain a savings goal forecast to the user " +
		"in at most 30 words with one actionable insight. Use only the numbers provided. " +
		"Answer in " + name + "."
}

func userPrompt(req Request) string {
	r := req.Result
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", req.GoalName)
	fmt.Fprintf(&b, "Target: %.0f %s, saved so far: %.0f %s\n", req.Target, req.Currency, req.Current, req.Currency)
	if req.TargetDate != nil {
		fmt.Fprintf(&b, "Target date: %s\n", req.TargetDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Real monthly contribution: %.0f %s\n", r.RealContribution, req.Currency)
	if r.DeterministicMonths != nil {
		fmt.Fprintf(&b, "Months at the average pace: %.1f\n", *r.DeterministicMonths)
	} else {
		b.WriteString("Months at the average pace: never, spending exceeds income\n")
	}
	fmt.Fprintf(&b, "Simulated months: optimistic %.0f, median %.0f, pessimistic %.0f\n",
		r.MonteCarlo.P10, r.MonteCarlo.P50, r.MonteCarlo.P90)
	fmt.Fprintf(&b, "Probability of reaching the goal by the target date: %.1f%%\n", r.SuccessProbability)
	if r.CappedTrials > 0 {
		fmt.Fprintf(&b, "%d of %d simulations did not reach the goal within the horizon\n", r.CappedTrials, r.Simulations)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
