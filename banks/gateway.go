package banks

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// RequestTimeout bounds every outbound bank call.
const RequestTimeout = 15 * time.Second

// Gateway issues a single outbound call to a bank endpoint and normalizes
// transport failures and non-2xx responses into typed errors.
type Gateway struct {
	client *http.Client
}

func NewGateway(timeout time.Duration, insecureTLS bool) *Gateway {
	if timeout == 0 {
		timeout = RequestTimeout
	}

	transport := http.DefaultTransport
	if insecureTLS {
		zlog.Warn().Msg("bank gateway: TLS certificate verification is DISABLED (BANK_TLS_INSECURE=true)")
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Gateway{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  url.Values
	Body    any
}

// Do executes one bank call and returns the response body, which is
// guaranteed to be valid JSON on success.
func (g *Gateway) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	var body io.Reader
	if r.Body != nil {
		j, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(j)
	}

	target := r.URL
	if len(r.Params) > 0 {
		target = target + "?" + r.Params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	requestId, err := uuid.NewV7()
	if err == nil {
		req.Header.Set("X-Request-ID", requestId.String())
	}

	rsp, err := g.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Printf("failed to close response body: %v\n", err)
		}
	}(rsp.Body)

	payload, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if rsp.StatusCode >= http.StatusBadRequest {
		return nil, &UpstreamError{
			Status: rsp.StatusCode,
			Body:   normalizeBody(payload),
		}
	}

	if !json.Valid(payload) {
		return nil, &FormatError{Err: fmt.Errorf("status %d, %d bytes", rsp.StatusCode, len(payload))}
	}

	return payload, nil
}

// normalizeBody keeps a provider error body relayable as JSON: parsed
// bodies pass through, anything else is wrapped into a JSON string.
func normalizeBody(payload []byte) json.RawMessage {
	if json.Valid(payload) && len(bytes.TrimSpace(payload)) > 0 {
		return payload
	}
	quoted, err := json.Marshal(string(payload))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return quoted
}
