package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the storefront auth API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError carries the server's status code and message body so callers
// can print exactly what the backend said.
type APIError struct {
	Status     int
	Message    string
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server responded %d: %s", e.Status, e.Message)
}

type apiResponse struct {
	Message    string `json:"message"`
	Token      string `json:"token"`
	RetryAfter int    `json:"retryAfter"`
	User       *struct {
		UserID   int64  `json:"userId"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

func (c *Client) post(ctx context.Context, path string, payload any) (apiResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apiResponse{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return apiResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("call %s: %w", path, err)
	}
	defer res.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return apiResponse{}, fmt.Errorf("decode response from %s: %w", path, err)
	}

	if res.StatusCode >= 400 {
		return body, &APIError{Status: res.StatusCode, Message: body.Message, RetryAfter: body.RetryAfter}
	}
	return body, nil
}

// Register creates an account and triggers the verification OTP mail.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	res, err := c.post(ctx, "/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	return res.Message, err
}

// VerifyRegistration confirms the emailed OTP for a fresh account.
func (c *Client) VerifyRegistration(ctx context.Context, email, code string) (string, error) {
	res, err := c.post(ctx, "/auth/verify-otp", map[string]string{
		"email": email,
		"otp":   code,
	})
	return res.Message, err
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	Token    string
	UserID   int64
	Username string
	Email    string
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	res, err := c.post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResult{}, err
	}

	out := LoginResult{Token: res.Token}
	if res.User != nil {
		out.UserID = res.User.UserID
		out.Username = res.User.Username
		out.Email = res.User.Email
	}
	return out, nil
}

// RequestReset asks the server to mail a reset OTP and returns the reset
// token that must accompany the later verification calls.
func (c *Client) RequestReset(ctx context.Context, email string) (string, error) {
	res, err := c.post(ctx, "/auth/send-reset-otp", map[string]string{"email": email})
	if err != nil {
		return "", err
	}
	return res.Token, nil
}

// VerifyReset checks the reset OTP against the reset token.
func (c *Client) VerifyReset(ctx context.Context, email, code, resetToken string) (string, error) {
	res, err := c.post(ctx, "/auth/verify-otp", map[string]string{
		"email": email,
		"otp":   code,
		"token": resetToken,
	})
	return res.Message, err
}

// ResetPassword sets a new password using the reset token.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword, confirmPassword string) (string, error) {
	res, err := c.post(ctx, "/auth/reset-password/"+resetToken, map[string]string{
		"newPassword":     newPassword,
		"confirmPassword": confirmPassword,
	})
	return res.Message, err
}
