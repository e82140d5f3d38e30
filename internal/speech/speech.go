// Package speech synthesizes persona replies through an
// ElevenLabs-compatible text-to-speech API. Synthesis is best effort:
// failures are logged, never propagated into the turn.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/vinayprograms/agentkit/logging"
)

// DefaultBaseURL is the hosted ElevenLabs endpoint.
const DefaultBaseURL = "https://api.elevenlabs.io"

const defaultModelID = "eleven_monolingual_v1"

// speakerPrefix strips "[persona_id]:" attributions before synthesis.
var speakerPrefix = regexp.MustCompile(`\[.*?\]:`)

// Synthesizer turns text into audio.
type Synthesizer interface {
	// Synthesize returns encoded audio for text in the given voice.
	Synthesize(ctx context.Context, voiceID, text string) ([]byte, error)
}

// Client is an ElevenLabs-compatible HTTP synthesizer.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logging.Logger
}

// NewClient creates a synthesizer. An empty baseURL uses the hosted
// endpoint.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logging.New().WithComponent("speech"),
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize posts text to the voice endpoint and returns MPEG audio.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	clean := CleanForSpeech(text)
	if clean == "" || voiceID == "" {
		return nil, nil
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    clean,
		ModelID: defaultModelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log.Warn("synthesis rejected", map[string]interface{}{
			"status": resp.StatusCode,
			"voice":  voiceID,
			"detail": string(detail),
		})
		return nil, fmt.Errorf("speech API returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// CleanForSpeech removes speaker attributions and surrounding space.
func CleanForSpeech(text string) string {
	return strings.TrimSpace(speakerPrefix.ReplaceAllString(text, ""))
}

// Noop is a Synthesizer that produces nothing, for configurations
// without a speech key.
type Noop struct{}

// Synthesize returns no audio.
func (Noop) Synthesize(context.Context, string, string) ([]byte, error) { return nil, nil }
