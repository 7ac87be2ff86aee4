package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// HTTPOracle calls an OpenAI-compatible chat completions endpoint and asks
// for a JSON object matching Verdict.
type HTTPOracle struct {
	URL    string
	APIKey string
	Model  string
	Client *http.Client
}

func NewHTTPOracle(url, apiKey, model string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		URL:    url,
		APIKey: apiKey,
		Model:  model,
		// The client timeout is a backstop; callers also pass a deadline.
		Client: &http.Client{Timeout: timeout + time.Second},
	}
}

const systemPromptBase = `You classify inbound SMS for a personal phone line.
Reply with a single JSON object with keys: sender_trust (high|medium|low),
intent, behavior_pattern, content_risk_level (low|medium|high),
spam_probability (integer 0-100), is_spam (boolean), priority (high|medium|low),
reasoning (one short sentence).`

const establishedInstruction = `The user has written to this sender before.
Set is_spam true ONLY if the history shows the user revoked consent (for example
replied STOP or asked not to be contacted) AND the sender is still sending
promotional content. Casual or ambiguous messages are never spam.`

const firstContactInstruction = `This sender is unknown and has never been
contacted by the user. Set is_spam true ONLY for unambiguous scams or marketing.
When in doubt set is_spam false.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// rawVerdict tolerates numeric probabilities (models sometimes emit 85.0).
type rawVerdict struct {
	SenderTrust      string  `json:"sender_trust"`
	Intent           string  `json:"intent"`
	BehaviorPattern  string  `json:"behavior_pattern"`
	ContentRiskLevel string  `json:"content_risk_level"`
	SpamProbability  float64 `json:"spam_probability"`
	IsSpam           bool    `json:"is_spam"`
	Priority         string  `json:"priority"`
	Reasoning        string  `json:"reasoning"`
}

func (o *HTTPOracle) Classify(ctx context.Context, req OracleRequest) (Verdict, error) {
	if o.URL == "" {
		return Verdict{}, errors.New("classify: oracle url not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model:          o.Model,
		Messages:       buildMessages(req),
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return Verdict{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Verdict{}, ErrClassificationTimeout
		}
		return Verdict{}, fmt.Errorf("classify: oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Verdict{}, fmt.Errorf("classify: oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Verdict{}, ErrClassificationTimeout
		}
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return Verdict{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return ParseVerdict(parsed.Choices[0].Message.Content)
}

// ParseVerdict decodes an oracle JSON payload and validates it.
func ParseVerdict(content string) (Verdict, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw rawVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if math.IsNaN(raw.SpamProbability) {
		return Verdict{}, fmt.Errorf("%w: spam_probability is NaN", ErrMalformedResponse)
	}
	return ValidateVerdict(Verdict{
		SenderTrust:      TrustTier(raw.SenderTrust),
		Intent:           raw.Intent,
		BehaviorPattern:  raw.BehaviorPattern,
		ContentRiskLevel: RiskLevel(raw.ContentRiskLevel),
		SpamProbability:  int(math.Round(raw.SpamProbability)),
		IsSpam:           raw.IsSpam,
		Priority:         Priority(raw.Priority),
		Reasoning:        raw.Reasoning,
	})
}

func buildMessages(req OracleRequest) []chatMessage {
	system := systemPromptBase + "\n\n"
	if req.Mode == ModeEstablished {
		system += establishedInstruction
	} else {
		system += firstContactInstruction
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sender trust: %s. Prior outbound messages from the user: %d.\n", req.Sender.Trust, req.Sender.OutboundCount)
	if len(req.History) > 0 {
		b.WriteString("Recent history (oldest first):\n")
		for _, h := range req.History {
			fmt.Fprintf(&b, "- [%s] %s\n", h.Direction, h.Body)
		}
	}
	b.WriteString("New message:\n")
	b.WriteString(req.Text)

	return []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
}
