package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	googleoption "google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// googleProvider implements Provider using the Google Generative AI SDK.
// A new genai.Client is created per Complete call so that the caller's
// context governs the connection and the client is always closed after use.
type googleProvider struct {
	apiKey   string
	model    string
	endpoint string
}

func newGoogleProvider(apiKey, model, endpoint string) Provider {
	return &googleProvider{apiKey: apiKey, model: model, endpoint: endpoint}
}

func (p *googleProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	opts := []googleoption.ClientOption{googleoption.WithAPIKey(p.apiKey)}
	if p.endpoint != "" {
		opts = append(opts, googleoption.WithEndpoint(p.endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("google: genai client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}
	maxOut := int32(req.MaxTokens)
	m.MaxOutputTokens = &maxOut
	temp32 := float32(req.Temperature)
	m.Temperature = &temp32
	if req.JSONMode {
		m.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		if code := httpStatus(status.Code(err)); code != 0 {
			return "", &StatusError{Provider: "google", StatusCode: code, Err: err}
		}
		return "", fmt.Errorf("google: generate content: %w", err)
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
	}
	return strings.Join(parts, ""), nil
}

// httpStatus maps the gRPC codes the Generative Language API returns to the
// HTTP statuses classify understands; 0 means no mapping.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.Unauthenticated:
		return 401
	case codes.PermissionDenied:
		return 403
	case codes.ResourceExhausted:
		return 429
	case codes.DeadlineExceeded:
		return 504
	case codes.Unavailable:
		return 503
	case codes.Internal:
		return 500
	default:
		return 0
	}
}
