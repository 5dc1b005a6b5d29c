package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authadapter "ballotbox/contexts/governance/poll-registry/adapters/auth"
	pollhttp "ballotbox/contexts/governance/poll-registry/transport/http"
)

// apiClient signs mutating requests with the configured key. Without a key it
// falls back to sending the --as identity unsigned.
type apiClient struct {
	baseURL    string
	privateKey ed25519.PrivateKey
	identity   string
	http       *http.Client
}

func newAPIClient() (*apiClient, error) {
	c := &apiClient{
		baseURL:  strings.TrimRight(globalFlags.server, "/"),
		identity: strings.TrimSpace(globalFlags.as),
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	if globalFlags.keyFile != "" {
		privateKey, err := readKey(globalFlags.keyFile)
		if err != nil {
			return nil, err
		}
		c.privateKey = privateKey
	}
	return c, nil
}

// signed reports whether the client can authenticate a mutating request.
func (c *apiClient) signed() bool {
	return c.privateKey != nil || c.identity != ""
}

func (c *apiClient) do(ctx context.Context, method string, path string, in any, out any) error {
	var body []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.privateKey != nil:
		identity, signature := authadapter.SignRequest(c.privateKey, method, req.URL.Path, body)
		req.Header.Set(authadapter.HeaderIdentity, identity)
		req.Header.Set(authadapter.HeaderSignature, signature)
	case c.identity != "":
		req.Header.Set(authadapter.HeaderIdentity, c.identity)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr pollhttp.ErrorResponse
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Code != "" {
			return fmt.Errorf("%s: %s (http %d)", apiErr.Code, apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("unexpected http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pollPath(pollID string, suffix ...string) string {
	parts := append([]string{"/v1/polls", url.PathEscape(pollID)}, suffix...)
	return strings.Join(parts, "/")
}
