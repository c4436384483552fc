package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/teslashibe/voicebridge/internal/httpc"
)

const (
	deepgramBaseURL  = "https://api.deepgram.com/v1"
	providerDeepgram = "deepgram"
)

// Deepgram model IDs
const (
	// ModelNova2 is the general-purpose conversational model.
	ModelNova2 = "nova-2"

	// ModelNova2Phonecall is tuned for telephony audio.
	ModelNova2Phonecall = "nova-2-phonecall"

	// ModelEnhanced is the legacy enhanced model.
	ModelEnhanced = "enhanced"
)

// Deepgram implements Transcriber using the Deepgram listen API.
type Deepgram struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewDeepgram creates a new Deepgram transcription provider.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = deepgramBaseURL
	}

	return &Deepgram{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "stt.deepgram"),
		baseURL: baseURL,
	}, nil
}

// deepgramResponse is the subset of the listen API response we consume.
type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends conditioned audio to Deepgram and returns the transcript.
// An empty transcript (the provider heard nothing actionable) is reported as
// a non-final result so the caller keeps collecting audio.
func (d *Deepgram) Transcribe(ctx context.Context, samples []float32) (*Result, error) {
	start := time.Now()

	q := url.Values{}
	q.Set("model", d.config.Model)
	q.Set("language", d.config.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))
	q.Set("channels", strconv.Itoa(d.config.Channels))

	body := pcm16Bytes(samples)

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/listen?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerDeepgram, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)
	req.Header.Set("Content-Type", "audio/raw")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, WrapError(providerDeepgram, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, d.parseError(resp)
	}

	var parsed deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, WrapError(providerDeepgram, fmt.Errorf("decode response: %w", err))
	}

	result := &Result{}
	if len(parsed.Results.Channels) > 0 && len(parsed.Results.Channels[0].Alternatives) > 0 {
		alt := parsed.Results.Channels[0].Alternatives[0]
		result.Text = alt.Transcript
		result.Confidence = alt.Confidence
		result.IsFinal = alt.Transcript != ""
	}

	d.logger.Debug("transcribed audio",
		"samples", len(samples),
		"chars", len(result.Text),
		"final", result.IsFinal,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Health verifies the API key against the projects endpoint.
func (d *Deepgram) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+"/projects", nil)
	if err != nil {
		return WrapError(providerDeepgram, err)
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return WrapError(providerDeepgram, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return d.parseError(resp)
	}
	return nil
}

// Close releases resources. Deepgram uses plain HTTP, so nothing to do.
func (d *Deepgram) Close() error {
	return nil
}

func (d *Deepgram) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		ErrCode string `json:"err_code"`
		ErrMsg  string `json:"err_msg"`
	}
	message := string(body)
	if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrMsg != "" {
		message = apiErr.ErrMsg
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerDeepgram,
	}
}

// pcm16Bytes converts float32 samples to little-endian PCM16 for the wire.
func pcm16Bytes(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return data
}

// Verify Deepgram implements Transcriber at compile time.
var _ Transcriber = (*Deepgram)(nil)
