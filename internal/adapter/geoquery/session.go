package geoquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Device-authorization flow, RFC 8628 shaped. The service issues a
// user code to enter at a verification URL; the client polls the token
// endpoint until the operator approves or declines.

type deviceAuthResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	IntervalSeconds int    `json:"interval_seconds"`
	ExpiresIn       int    `json:"expires_in_seconds"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// deviceAuthorize runs the interactive flow once and returns the
// granted access token.
func (c *Client) deviceAuthorize(ctx context.Context) (string, error) {
	auth, err := c.requestDeviceAuth(ctx)
	if err != nil {
		return "", err
	}

	c.prompter.PromptDeviceAuth(auth.VerificationURI, auth.UserCode)

	interval := time.Duration(auth.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if auth.ExpiresIn > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(auth.ExpiresIn)*time.Second)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("authorization not completed: %w", ctx.Err())
		case <-ticker.C:
			token, pending, err := c.pollToken(ctx, auth.DeviceCode)
			if err != nil {
				return "", err
			}
			if pending {
				continue
			}
			return token, nil
		}
	}
}

func (c *Client) requestDeviceAuth(ctx context.Context) (deviceAuthResponse, error) {
	body, _ := json.Marshal(map[string]string{"client_id": "storm-track-viewer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/device", bytes.NewReader(body))
	if err != nil {
		return deviceAuthResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return deviceAuthResponse{}, fmt.Errorf("device auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return deviceAuthResponse{}, fmt.Errorf("device auth API error: status %d: %s", resp.StatusCode, respBody)
	}

	var auth deviceAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return deviceAuthResponse{}, fmt.Errorf("decode device auth response: %w", err)
	}
	if auth.DeviceCode == "" || auth.UserCode == "" {
		return deviceAuthResponse{}, fmt.Errorf("device auth response missing codes")
	}
	return auth, nil
}

// pollToken checks whether the device grant has been approved.
// 200 carries the token, 202 means still pending, 403 means the
// operator declined.
func (c *Client) pollToken(ctx context.Context, deviceCode string) (token string, pending bool, err error) {
	body, _ := json.Marshal(map[string]string{"device_code": deviceCode})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return "", true, nil
	case http.StatusForbidden:
		return "", false, ErrAuthDeclined
	case http.StatusOK:
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("token API error: status %d: %s", resp.StatusCode, respBody)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", false, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", false, fmt.Errorf("token response missing access_token")
	}
	return tr.AccessToken, false, nil
}

// stderrPrompter writes the authorization instructions to the terminal.
type stderrPrompter struct{}

func (stderrPrompter) PromptDeviceAuth(verificationURI, userCode string) {
	fmt.Fprintf(os.Stderr, "\nTo authorize this client, open:\n\n    %s\n\nand enter code: %s\n\n", verificationURI, userCode)
}
