package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github/itish2003/ragqa/models"
)

type client struct {
	baseURL string
	http    *http.Client
}

func newClient() *client {
	return &client{
		baseURL: strings.TrimRight(serverURL, "/"),
		// Answers stream, so no overall timeout; requests carry the command context.
		http: &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: 2 * time.Minute}},
	}
}

// apiError decodes the {"error": "..."} body the server sends on failure.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server at %s: %w", c.baseURL, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return resp, nil
}

// doJSON sends in as JSON (when non-nil) and decodes the response into out.
func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ask returns the streamed answer body; the caller closes it.
func (c *client) ask(ctx context.Context, session, question string) (io.ReadCloser, error) {
	b, err := json.Marshal(models.AskRequest{Question: question, SessionID: session})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/ask", bytes.NewReader(b), "application/json")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *client) upload(ctx context.Context, paths []string) (models.UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range paths {
		if err := addFile(mw, p); err != nil {
			return models.UploadResponse{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return models.UploadResponse{}, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return models.UploadResponse{}, err
	}
	defer resp.Body.Close()
	var out models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

func addFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
