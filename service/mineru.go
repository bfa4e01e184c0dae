package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/fakesociety/RentGuard360/config"
)

// Task states reported by MinerU
const (
	TaskStatePending    = "pending"
	TaskStateRunning    = "running"
	TaskStateConverting = "converting"
	TaskStateDone       = "done"
	TaskStateFailed     = "failed"
)

var (
	// ErrExtractionFailed is returned when MinerU reports a failed task
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrExtractionTimeout is returned when polling gives up
	ErrExtractionTimeout = errors.New("extraction polling timeout")
)

type MineruService struct {
	config       *config.MineruConfig
	httpClient   *http.Client
	pollInterval time.Duration
}

// ExtractedDocument is the plain text MinerU recovered from a PDF
type ExtractedDocument struct {
	Text      string
	PageCount int
}

// MineruTaskRequest represents the request to create an extraction task
type MineruTaskRequest struct {
	URL          string `json:"url"`
	ModelVersion string `json:"model_version"`
	Callback     string `json:"callback,omitempty"`
	Seed         string `json:"seed,omitempty"`
	DataID       string `json:"data_id,omitempty"`
}

// MineruTaskResponse represents the response from task creation
type MineruTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// MineruTaskState is the task description shared by status queries and callbacks
type MineruTaskState struct {
	TaskID          string `json:"task_id"`
	DataID          string `json:"data_id"`
	State           string `json:"state"` // pending, running, done, failed, converting
	FullZipURL      string `json:"full_zip_url,omitempty"`
	ErrorMsg        string `json:"err_msg,omitempty"`
	ModelVersion    string `json:"model_version,omitempty"`
	ExtractProgress struct {
		ExtractedPages int    `json:"extracted_pages"`
		TotalPages     int    `json:"total_pages"`
		StartTime      string `json:"start_time"`
	} `json:"extract_progress,omitempty"`
}

// MineruTaskStatusResponse represents the task status query response
type MineruTaskStatusResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	TraceID string          `json:"trace_id"`
	Data    MineruTaskState `json:"data"`
}

// MineruCallbackPayload represents the callback payload from MinerU.
// Content is a JSON encoded MineruTaskState.
type MineruCallbackPayload struct {
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

// contentItem is one block of MinerU's content_list.json
type contentItem struct {
	Text    string `json:"text"`
	PageIdx int    `json:"page_idx"`
}

func NewMineruService(cfg *config.MineruConfig) *MineruService {
	interval := time.Duration(cfg.PollInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MineruService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		pollInterval: interval,
	}
}

// UsesCallback reports whether MinerU pushes results instead of being polled
func (s *MineruService) UsesCallback() bool {
	return s.config.CallbackURL != ""
}

// CreateTask creates a new extraction task and returns its ID
func (s *MineruService) CreateTask(ctx context.Context, pdfURL, dataID string) (string, error) {
	reqBody := MineruTaskRequest{
		URL:          pdfURL,
		ModelVersion: s.config.ModelVersion,
		DataID:       dataID,
	}

	if s.config.CallbackURL != "" {
		reqBody.Callback = s.config.CallbackURL
		reqBody.Seed = s.config.Seed
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/extract/task", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result MineruTaskResponse
	if err := s.do(req, &result); err != nil {
		return "", err
	}
	if result.Code != 0 {
		return "", fmt.Errorf("MinerU API error: %s", result.Message)
	}

	return result.Data.TaskID, nil
}

// GetTaskStatus queries the status of a task
func (s *MineruService) GetTaskStatus(ctx context.Context, taskID string) (*MineruTaskState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/extract/task/%s", s.config.APIURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result MineruTaskStatusResponse
	if err := s.do(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("MinerU API error: %s", result.Message)
	}

	return &result.Data, nil
}

func (s *MineruService) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	slog.Debug("mineru response", "url", req.URL.Path, "status", resp.StatusCode, "size", len(body))

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// WaitForResult polls a task until it finishes and returns the result ZIP URL.
// Transient status errors are logged and retried on the next tick.
func (s *MineruService) WaitForResult(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= s.config.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		state, err := s.GetTaskStatus(ctx, taskID)
		if err != nil {
			slog.Warn("mineru poll failed", "task_id", taskID, "attempt", attempt, "error", err)
			continue
		}

		switch state.State {
		case TaskStateDone:
			if state.FullZipURL == "" {
				return "", fmt.Errorf("%w: task finished without result", ErrExtractionFailed)
			}
			return state.FullZipURL, nil
		case TaskStateFailed:
			return "", fmt.Errorf("%w: %s", ErrExtractionFailed, state.ErrorMsg)
		case TaskStateRunning:
			slog.Debug("mineru progress",
				"task_id", taskID,
				"extracted_pages", state.ExtractProgress.ExtractedPages,
				"total_pages", state.ExtractProgress.TotalPages,
			)
		}
	}

	return "", ErrExtractionTimeout
}

// VerifyCallback verifies the callback checksum
func (s *MineruService) VerifyCallback(checksum, content string, uid string) bool {
	// Checksum = SHA256(uid + seed + content)
	data := uid + s.config.Seed + content
	hash := sha256.Sum256([]byte(data))
	expected := hex.EncodeToString(hash[:])
	return checksum == expected
}

// FetchDocument downloads the result ZIP and reads the document text out of
// its content_list.json
func (s *MineruService) FetchDocument(ctx context.Context, zipURL string) (*ExtractedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zipURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download ZIP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download ZIP: status %d", resp.StatusCode)
	}

	zipData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ZIP: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP: %w", err)
	}

	for _, file := range zipReader.File {
		if !strings.HasSuffix(path.Base(file.Name), "content_list.json") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file.Name, err)
		}

		slog.Debug("mineru content list found", "file", file.Name, "size", len(content))
		return ParseContentList(content)
	}

	return nil, fmt.Errorf("no content_list.json found in ZIP")
}

// ParseContentList joins the text blocks of a content_list.json in document
// order. The page count is one past the highest page index seen.
func ParseContentList(data []byte) (*ExtractedDocument, error) {
	var items []contentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse content list: %w", err)
	}

	doc := &ExtractedDocument{}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item.PageIdx+1 > doc.PageCount {
			doc.PageCount = item.PageIdx + 1
		}
		if text := strings.TrimSpace(item.Text); text != "" {
			lines = append(lines, text)
		}
	}
	doc.Text = strings.Join(lines, "\n")

	return doc, nil
}
