// Package extract sends receipt files to the extraction webhook and
// parses the returned subscription draft.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Result is the raw draft returned by the webhook. Field validation
// happens in the processor, the webhook output is untrusted.
type Result struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	BillingCycle string `json:"billing_cycle"`
	NextPayment  string `json:"next_payment"`
}

// Extractor turns an uploaded receipt file into a subscription draft.
type Extractor interface {
	Extract(ctx context.Context, filename, contentType string, file io.Reader) (Result, error)
}

// WebhookExtractor posts the file to an n8n-style workflow endpoint.
type WebhookExtractor struct {
	url    string
	apiKey string
	client *http.Client
}

func NewWebhookExtractor(url, apiKey string, timeout time.Duration) *WebhookExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookExtractor{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (e *WebhookExtractor) Extract(ctx context.Context, filename, contentType string, file io.Reader) (Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return Result{}, fmt.Errorf("copy file into form: %w", err)
	}
	if err := mw.WriteField("content_type", contentType); err != nil {
		return Result{}, fmt.Errorf("write content type field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("webhook returned %d: %s", resp.StatusCode, body)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode webhook response: %w", err)
	}
	return result, nil
}
