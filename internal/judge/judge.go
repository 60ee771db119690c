// Package judge calls an LLM through the OpenRouter chat-completions API to
// generate bettable markets for new events and to turn a consensus scoreline
// into per-market winning outcomes. Responses are untrusted free text and are
// parsed defensively: malformed output degrades to a no-op, never a crash.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poolhouse/poolbet/internal/domain"
)

// ErrNoAPIKey is returned when the client was built without a key. Callers
// fall back to their own defaults.
var ErrNoAPIKey = errors.New("judge: missing api key")

// Client is an OpenRouter chat-completions client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	referer    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an OpenRouter client. baseURL defaults to the public API
// and model to a free-tier model when empty.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if model == "" {
		model = "xiaomi/mimo-v2-flash:free"
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "judge"),
	}
}

// SetReferer sets the HTTP-Referer attribution header sent with every
// OpenRouter request.
func (c *Client) SetReferer(referer string) {
	c.referer = referer
}

// chatRequest is the chat-completions request envelope.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the chat-completions response envelope.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete sends one user prompt and returns the model's reply with any
// markdown code fences stripped. Models wrap JSON in ```json fences even when
// asked for a json_object response.
func (c *Client) complete(ctx context.Context, prompt, title string) (string, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("judge: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("judge: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", title)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("judge: call openrouter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("judge: openrouter status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("judge: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("judge: empty choices")
	}
	return stripFences(decoded.Choices[0].Message.Content), nil
}

// stripFences removes markdown code fences around a JSON payload.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// SettleMarkets asks the model for each market's winning outcome given a
// consensus verdict. Unparsable output is logged and returned as an empty
// verdict list so the caller retries on a later sweep.
func (c *Client) SettleMarkets(ctx context.Context, res domain.ConsensusResult, marketNames []string) ([]domain.MarketVerdict, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if len(marketNames) == 0 {
		return nil, nil
	}

	names, err := json.Marshal(marketNames)
	if err != nil {
		return nil, fmt.Errorf("judge: marshal market names: %w", err)
	}

	prompt := fmt.Sprintf(`You are an expert betting judge (Oracle).

Event: %s vs %s
Info: %s

We need to result the following POOL betting markets.
Markets to Settle:
%s

Task:
1. Analyze the "Info" string. It typically contains "Consensus: X-Y (Votes: N/M)".
2. Determine the WINNING OUTCOME for each market based on this score.
3. Even if the text doesn't explicitly say "Full Time", if the Info source is "Consensus" and has a score, assume it is the Final Result.
4. ONLY use "VOID" if the score is missing or the match was Abandoned/Cancelled. Do not VOID if you have a valid score (e.g. 2-1).

Format:
Return ONLY valid JSON:
{
    "matchParams": "Final Score or Summary",
    "results": [
        { "marketName": "Match Winner", "winningOutcome": "Away Win" },
        { "marketName": "Total Goals", "winningOutcome": "Under 2.5" }
    ]
}`,
		res.HomeTeam, res.AwayTeam, res.Provenance, names)

	content, err := c.complete(ctx, prompt, "Betting Engine Oracle")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		MatchParams string `json:"matchParams"`
		Results     []struct {
			MarketName     string `json:"marketName"`
			WinningOutcome string `json:"winningOutcome"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		c.logger.Warn("unparsable settlement response", "error", err, "content", content)
		return nil, nil
	}

	verdicts := make([]domain.MarketVerdict, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.MarketName == "" || r.WinningOutcome == "" {
			continue
		}
		verdicts = append(verdicts, domain.MarketVerdict{
			MarketName:     r.MarketName,
			WinningOutcome: r.WinningOutcome,
		})
	}
	return verdicts, nil
}

// GenerateMarkets asks the model to propose 3-5 pool markets for a fixture.
// Unparsable output returns an empty list.
func (c *Client) GenerateMarkets(ctx context.Context, ev domain.Event) ([]domain.GeneratedMarket, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	sport := ev.Sport
	if sport == "" {
		sport = "Unknown"
	}

	prompt := fmt.Sprintf(`You are an expert betting market maker for a Pool-Based Betting System (winners share the pot).

Input Data:
- Event: %s vs %s
- Sport Context: %s
- Time: %s

Task:
1. Verify the SPORT is %s.
2. Generate 3-5 engaging betting markets suitable for this sport.
3. Since this is a POOL system, DO NOT generate odds. Just the market name and valid outcomes.

Format:
Return ONLY valid JSON with this structure:
{
    "sport": "string",
    "markets": [
        { "name": "string", "outcomes": ["string", "string"] }
    ]
}

Example:
{
    "sport": "Football",
    "markets": [
        { "name": "Match Result", "outcomes": ["Home Win", "Draw", "Away Win"] },
        { "name": "Total Goals", "outcomes": ["Over 2.5", "Under 2.5"] }
    ]
}`,
		ev.HomeTeam, ev.AwayTeam, sport, ev.StartTime.Format(time.RFC3339), sport)

	content, err := c.complete(ctx, prompt, "Betting Engine")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Sport   string `json:"sport"`
		Markets []struct {
			Name     string   `json:"name"`
			Outcomes []string `json:"outcomes"`
		} `json:"markets"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		c.logger.Warn("unparsable market generation response", "error", err, "content", content)
		return nil, nil
	}

	markets := make([]domain.GeneratedMarket, 0, len(parsed.Markets))
	for _, m := range parsed.Markets {
		if m.Name == "" || len(m.Outcomes) < 2 {
			continue
		}
		markets = append(markets, domain.GeneratedMarket{
			Name:     m.Name,
			Outcomes: m.Outcomes,
		})
	}
	return markets, nil
}

var (
	_ domain.OutcomeDeterminer = (*Client)(nil)
	_ domain.MarketGenerator   = (*Client)(nil)
)
