package narrative

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/goal-service/internal/config"
	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNarrator(t *testing.T, apiKey string, handler http.HandlerFunc) *Narrator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewNarrator(&config.Config{
		LLMBaseURL: srv.URL + "/",
		LLMAPIKey:  apiKey,
		LLMModel:   "gpt-4o-mini",
		LLMTimeout: 2 * time.Second,
	}, log)
}

func sampleRequest() Request {
	months := 10.0
	return Request{
		GoalName: "Car",
		Currency: "UZS",
		Target:   10_000_000,
		Language: "ru",
		Result: &forecast.Result{
			DeterministicMonths: &months,
			MonteCarlo:          forecast.MonteCarlo{P10: 9, P50: 10, P90: 12},
			SuccessProbability:  87.5,
			RealContribution:    1_000_000,
			Simulations:         5000,
		},
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		explicit, header, want string
	}{
		{"uz", "ru-RU", "uz"},
		{"", "ru-RU,ru;q=0.9,en;q=0.8", "ru"},
		{"de", "fr-FR, uz;q=0.5", "uz"},
		{"RU", "", "ru"},
		{"", "", "en"},
		{"xx", "de-DE", "en"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLanguage(tt.explicit, tt.header), "explicit=%q header=%q", tt.explicit, tt.header)
	}
}

func TestNarrate_Success(t *testing.T) {
	var got chatRequest
	n := testNarrator(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  On track in about 10 months.  "}}]}`))
	})

	text, err := n.Narrate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "On track in about 10 months.", text)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[0].Content, "Russian")
	assert.Contains(t, got.Messages[1].Content, "median 10")
	assert.Contains(t, got.Messages[1].Content, "87.5%")
}

func TestNarrate_Disabled(t *testing.T) {
	n := testNarrator(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	assert.False(t, n.Enabled())
	_, err := n.Narrate(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNarrate_Failures(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
		"empty content": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
		},
		"invalid json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			n := testNarrator(t, "secret", handler)
			_, err := n.Narrate(context.Background(), sampleRequest())
			assert.Error(t, err)
		})
	}
}

func TestUserPrompt_Unreachable(t *testing.T) {
	req := sampleRequest()
	req.Result.DeterministicMonths = nil
	req.Result.CappedTrials = 4000
	date := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	req.TargetDate = &date

	prompt := userPrompt(req)
	assert.Contains(t, prompt, "never")
	assert.Contains(t, prompt, "4000 of 5000")
	assert.Contains(t, prompt, "2027-01-01")
}
