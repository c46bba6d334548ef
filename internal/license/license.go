// Package license verifies license keys before analyses are run.
package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Modes accepted by New.
const (
	ModeOff     = "off"
	ModeDev     = "dev"
	ModeGumroad = "gumroad"
)

// DefaultGumroadEndpoint is the Gumroad license verification endpoint.
const DefaultGumroadEndpoint = "https://api.gumroad.com/v2/licenses/verify"

// minKeyLength is the shortest key accepted as well formed.
const minKeyLength = 8

// ErrUnavailable wraps failures to reach the verification service, as
// opposed to a key that was checked and rejected.
var ErrUnavailable = errors.New("license: verification service unavailable")

// Result is the outcome of a verification.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Verifier checks a license key.
type Verifier interface {
	Verify(ctx context.Context, key string) (Result, error)
}

// Config selects and configures a Verifier.
type Config struct {
	Mode      string
	ProductID string
	Endpoint  string
	Timeout   time.Duration
}

// New returns the Verifier for cfg.Mode.
func New(cfg Config) (Verifier, error) {
	switch strings.ToLower(cfg.Mode) {
	case ModeOff, "":
		return AllowAll{}, nil
	case ModeDev:
		return DevVerifier{}, nil
	case ModeGumroad:
		if cfg.ProductID == "" {
			return nil, errors.New("license: gumroad mode requires a product id")
		}
		return NewGumroadVerifier(cfg.ProductID, cfg.Endpoint, &http.Client{Timeout: cfg.Timeout}), nil
	default:
		return nil, fmt.Errorf("license: unknown mode %q", cfg.Mode)
	}
}

// AllowAll accepts every key, including an empty one.
type AllowAll struct{}

func (AllowAll) Verify(context.Context, string) (Result, error) {
	return Result{Valid: true, Message: "License checks disabled."}, nil
}

// DevVerifier accepts any key of at least eight characters without a
// network call.
type DevVerifier struct{}

func (DevVerifier) Verify(_ context.Context, key string) (Result, error) {
	if r, ok := checkFormat(key); !ok {
		return r, nil
	}
	return Result{Valid: true, Message: "License verified successfully."}, nil
}

func checkFormat(key string) (Result, bool) {
	if len(strings.TrimSpace(key)) < minKeyLength {
		return Result{Valid: false, Message: "Invalid license key format."}, false
	}
	return Result{}, true
}

// GumroadVerifier checks keys against Gumroad's license API.
type GumroadVerifier struct {
	productID string
	endpoint  string
	client    *http.Client
}

// NewGumroadVerifier returns a verifier for productID. An empty endpoint
// uses DefaultGumroadEndpoint; a nil client uses http.DefaultClient.
func NewGumroadVerifier(productID, endpoint string, client *http.Client) *GumroadVerifier {
	if endpoint == "" {
		endpoint = DefaultGumroadEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GumroadVerifier{productID: productID, endpoint: endpoint, client: client}
}

type gumroadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Purchase struct {
		Refunded     bool `json:"refunded"`
		Chargebacked bool `json:"chargebacked"`
	} `json:"purchase"`
}

// Verify posts the key without incrementing its use count. A rejected key
// yields Valid=false and a nil error; transport and server failures wrap
// ErrUnavailable.
func (g *GumroadVerifier) Verify(ctx context.Context, key string) (Result, error) {
	if r, ok := checkFormat(key); !ok {
		return r, nil
	}

	form := url.Values{
		"product_id":           {g.productID},
		"license_key":          {strings.TrimSpace(key)},
		"increment_uses_count": {"false"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("license: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body gumroadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	switch {
	case !body.Success:
		msg := body.Message
		if msg == "" {
			msg = "License key not recognised."
		}
		return Result{Valid: false, Message: msg}, nil
	case body.Purchase.Refunded || body.Purchase.Chargebacked:
		return Result{Valid: false, Message: "License purchase was refunded."}, nil
	default:
		return Result{Valid: true, Message: "License verified successfully."}, nil
	}
}
