package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 2048

// TranscriptFetcher lấy transcript của một cuộc gọi đã kết thúc
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, callID string) (string, error)
}

// CallLister được bộ đối soát call_id dùng. Kết quả mới nhất trước;
// before khác zero thì chỉ lấy các call tạo trước mốc đó (để phân trang).
type CallLister interface {
	ListCalls(ctx context.Context, since, before time.Time, limit int) ([]VapiCall, error)
}

type VapiCall struct {
	ID         string                 `json:"id"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"createdAt"`
	Transcript string                 `json:"transcript"`
	Metadata   map[string]interface{} `json:"metadata"`
	Artifact   *struct {
		Transcript string `json:"transcript"`
	} `json:"artifact,omitempty"`
	AssistantOverrides *struct {
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"assistantOverrides,omitempty"`
}

// TranscriptText ưu tiên trường transcript, rồi tới artifact.transcript
func (c *VapiCall) TranscriptText() string {
	if t := strings.TrimSpace(c.Transcript); t != "" {
		return t
	}
	if c.Artifact != nil {
		return strings.TrimSpace(c.Artifact.Transcript)
	}
	return ""
}

// SessionID đọc metadata.sessionId do assistant config gắn vào lúc bắt đầu cuộc gọi
func (c *VapiCall) SessionID() string {
	if v, ok := c.Metadata[MetadataSessionKey].(string); ok && v != "" {
		return v
	}
	if c.AssistantOverrides != nil {
		if v, ok := c.AssistantOverrides.Metadata[MetadataSessionKey].(string); ok {
			return v
		}
	}
	return ""
}

type VapiClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewVapiClient(baseURL, apiKey string, timeout time.Duration) *VapiClient {
	return &VapiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (v *VapiClient) GetCall(ctx context.Context, callID string) (*VapiCall, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, NewValidationError("call_id", "is required")
	}
	var call VapiCall
	if err := v.get(ctx, "/call/"+url.PathEscape(callID), nil, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// FetchTranscript gọi GET /call/{id} một lần, không retry
func (v *VapiClient) FetchTranscript(ctx context.Context, callID string) (string, error) {
	call, err := v.GetCall(ctx, callID)
	if err != nil {
		return "", err
	}
	transcript := call.TranscriptText()
	if transcript == "" {
		return "", ErrTranscriptUnavailable
	}
	return transcript, nil
}

func (v *VapiClient) ListCalls(ctx context.Context, since, before time.Time, limit int) ([]VapiCall, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("createdAtGt", since.UTC().Format(time.RFC3339Nano))
	}
	if !before.IsZero() {
		query.Set("createdAtLt", before.UTC().Format(time.RFC3339Nano))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var calls []VapiCall
	if err := v.get(ctx, "/call", query, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

func (v *VapiClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := v.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build vapi request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Provider: "vapi", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ProviderError{
			Provider:   "vapi",
			StatusCode: resp.StatusCode,
			Message:    "failed to fetch call data",
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: "vapi", StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}
