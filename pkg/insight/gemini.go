package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/picogrid/hexfleet/pkg/logger"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	HTTPClient  *http.Client
	Logger      logger.Logger
}

// Gemini calls the generateContent endpoint with a JSON response schema.
type Gemini struct {
	baseURL     string
	model       string
	apiKey      string
	maxAttempts int
	backoff     time.Duration
	httpClient  *http.Client
	log         logger.Logger
}

// NewGemini creates a client. Missing settings take defaults.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Gemini{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		httpClient:  cfg.HTTPClient,
		log:         cfg.Logger.WithPrefix("insight"),
	}
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string                 `json:"responseMimeType"`
	ResponseSchema   map[string]interface{} `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var responseSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"riskLevel":         map[string]interface{}{"type": "STRING", "description": "LOW, MEDIUM or HIGH"},
		"efficiencyInsight": map[string]interface{}{"type": "STRING"},
		"wellnessScore":     map[string]interface{}{"type": "NUMBER", "description": "Driver wellness, 0 to 100"},
		"summary":           map[string]interface{}{"type": "STRING"},
		"optimalModality":   map[string]interface{}{"type": "STRING"},
		"dangerZones":       map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}},
		"estimatedSavings":  map[string]interface{}{"type": "STRING"},
	},
	"required": []string{"riskLevel", "efficiencyInsight", "wellnessScore", "summary"},
}

// Prompt renders the instruction sent for a request.
func Prompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perform a logistics risk assessment for delivery %s driven by %s in a %s.\n",
		req.EntityID, req.DriverLabel, req.VehicleLabel)
	if s := req.Spatial; s != nil {
		if s.Origin != "" || s.Destination != "" {
			fmt.Fprintf(&b, "Route: %s to %s.\n", s.Origin, s.Destination)
		}
		if s.Position != nil {
			fmt.Fprintf(&b, "Current position: %.5f, %.5f", s.Position.Lat, s.Position.Lng)
			if s.Cell != "" {
				fmt.Fprintf(&b, " (H3 cell %s)", s.Cell)
			}
			b.WriteString(".\n")
		}
		if m := s.Metrics; m != nil {
			fmt.Fprintf(&b, "Grid distance to destination: %d cells, ETA %.0f minutes, congestion %.2f.\n",
				m.GridDistance, m.ETAMinutes, m.CongestionScore)
		}
		if len(s.Geofences) > 0 {
			fmt.Fprintf(&b, "Currently inside zones: %s.\n", strings.Join(s.Geofences, ", "))
		}
	}
	b.WriteString("Identify risks, the optimal transport modality, danger zones along the route, " +
		"estimated savings, a driver wellness score and a short summary.")
	return b.String()
}

// Request implements Client. It never returns an error: without an API key
// it answers AUTH immediately, otherwise failures are classified as AUTH,
// API or NETWORK.
func (g *Gemini) Request(ctx context.Context, req Request) Response {
	if strings.TrimSpace(g.apiKey) == "" {
		return Degrade(ErrorKindAuth, errors.New("no API key configured"))
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: Prompt(req)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	})
	if err != nil {
		return Degrade(ErrorKindAPI, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	resp, err := g.doWithRetry(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Accept", "application/json")
		r.Header.Set("x-goog-api-key", g.apiKey)
		return r, nil
	})
	if err != nil {
		kind := classify(err)
		g.log.Warnf("request for %s failed (%s): %v", req.EntityID, kind, err)
		return Degrade(kind, err)
	}
	defer resp.Body.Close()

	out, err := decode(resp.Body)
	if err != nil {
		g.log.Warnf("unusable response for %s: %v", req.EntityID, err)
		return Degrade(ErrorKindAPI, err)
	}
	return out
}

func decode(r io.Reader) (Response, error) {
	var gen generateResponse
	if err := json.NewDecoder(r).Decode(&gen); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 {
		return Response{}, errors.New("response has no candidates")
	}
	text := gen.Candidates[0].Content.Parts[0].Text

	var out Response
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Response{}, fmt.Errorf("decode insight: %w", err)
	}
	out.Error, out.ErrorKind = "", ""
	return out.normalize()
}

func classify(err error) ErrorKind {
	var he *httpStatusError
	if errors.As(err, &he) {
		if he.Code == http.StatusUnauthorized || he.Code == http.StatusForbidden {
			return ErrorKindAuth
		}
		return ErrorKindAPI
	}
	return ErrorKindNetwork
}

func (g *Gemini) do(req *http.Request) (*http.Response, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries 429, 5xx and network failures with exponential
// backoff, giving up early when ctx is done.
func (g *Gemini) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := g.backoff
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := g.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == g.maxAttempts {
			return nil, lastErr
		}

		g.log.Debugf("attempt %d failed, retrying in %s: %v", attempt, backoff, err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, lastErr
}
