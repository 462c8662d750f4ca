package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const extractionSystemPrompt = `Eres un extractor de datos para transferencias de dinero.
Del mensaje del usuario extrae, si están presentes:
- "phone": el número de teléfono del destinatario, solo dígitos
- "amount": el monto a transferir, número positivo
Responde EXCLUSIVAMENTE con un objeto JSON. Omite los campos que no aparezcan en el mensaje.`

// chatMessage is the minimal message shape for an OpenAI-compatible
// chat-completions endpoint.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type extractedSlots struct {
	Phone  string   `json:"phone"`
	Amount *float64 `json:"amount"`
}

// OpenAIOracle asks an OpenAI-compatible chat-completions endpoint to pull
// transfer slots out of a message the rule-based extractor could not parse.
// It is a stateless oracle: the caller bounds every request with a timeout
// and treats any failure as "no extraction".
type OpenAIOracle struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIOracle creates an extraction oracle. baseURL defaults to the
// OpenAI API, model to gpt-4o-mini.
func NewOpenAIOracle(apiKey, baseURL, model string) *OpenAIOracle {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIOracle{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ExtractSlots implements ExtractionOracle
func (o *OpenAIOracle) ExtractSlots(ctx context.Context, text string, prior PriorSlots) (SlotDelta, error) {
	userPrompt := text
	if prior.Phone != "" || prior.Amount > 0 {
		userPrompt = fmt.Sprintf("Contexto conocido: teléfono=%q monto=%v\nMensaje: %s",
			prior.Phone, prior.Amount, text)
	}

	reqBody := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return SlotDelta{}, fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return SlotDelta{}, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return SlotDelta{}, fmt.Errorf("oracle: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SlotDelta{}, fmt.Errorf("oracle: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return SlotDelta{}, fmt.Errorf("oracle: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SlotDelta{}, fmt.Errorf("oracle: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return SlotDelta{}, nil
	}

	var slots extractedSlots
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &slots); err != nil {
		// the model answered with prose instead of JSON; treat as no extraction
		return SlotDelta{}, nil
	}

	var delta SlotDelta
	if slots.Phone != "" {
		delta.Phone, delta.HasPhone = NormalizePhone(slots.Phone), true
	}
	if slots.Amount != nil {
		delta.Amount, delta.HasAmount = *slots.Amount, true
	}
	return delta, nil
}
