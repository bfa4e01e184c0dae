package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fakesociety/RentGuard360/config"
	"github.com/fakesociety/RentGuard360/middleware"
	"github.com/fakesociety/RentGuard360/model"
	"github.com/fakesociety/RentGuard360/service"
	"github.com/gin-gonic/gin"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type fakeStorage struct {
	mu        sync.Mutex
	uploaded  map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: make(map[string][]byte)}
}

func (s *fakeStorage) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[objectName] = data
	return nil
}

func (s *fakeStorage) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	return "https://storage.example.com/" + objectName + "?sig=1", nil
}

func (s *fakeStorage) DeleteFile(ctx context.Context, objectName string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectName)
	return nil
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []*model.Contract
	ctx  context.Context
}

func (r *fakeRunner) Run(ctx context.Context, contract *model.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, contract)
	r.ctx = ctx
	return nil
}

func newTestContractHandler() (*ContractHandler, *fakeStorage, *fakeRunner, *service.ContractStore) {
	storage := newFakeStorage()
	runner := &fakeRunner{}
	store := service.NewContractStore(&config.StoreConfig{MaxContracts: 100})
	h := NewContractHandler(storage, runner, store)
	h.runAsync = func(fn func()) { fn() }
	return h, storage, runner, store
}

func newContractRouter(h *ContractHandler) *gin.Engine {
	router := gin.New()
	api := router.Group("/api", middleware.UserScope())
	api.POST("/contracts/upload", h.Upload)
	api.GET("/contracts", h.List)
	api.GET("/contracts/:id", h.Get)
	api.GET("/contracts/:id/status", h.GetStatus)
	api.PATCH("/contracts/:id", h.Rename)
	api.POST("/contracts/:id/edited", h.SaveEdited)
	api.DELETE("/contracts/:id", h.Delete)
	return router
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(content)
	writer.Close()
	return body, writer.FormDataContentType()
}

func doRequest(router *gin.Engine, method, path, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestContractHandlerUpload(t *testing.T) {
	h, storage, runner, store := newTestContractHandler()
	router := newContractRouter(h)

	body, contentType := multipartBody(t, "lease.pdf", samplePDF)
	w := doRequest(router, "POST", "/api/contracts/upload", "user-1", body, contentType)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	id := resp["id"]
	if id == "" {
		t.Fatal("Expected contract id in response")
	}
	if resp["status"] != model.StatusPending {
		t.Errorf("Expected status pending, got %s", resp["status"])
	}

	key := service.ContractObjectKey("user-1", id)
	if !bytes.Equal(storage.uploaded[key], samplePDF) {
		t.Errorf("Expected PDF stored under %s", key)
	}

	saved := store.Get(id)
	if saved == nil {
		t.Fatal("Expected contract to be saved")
	}
	if saved.UserID != "user-1" || saved.ObjectKey != key {
		t.Errorf("Unexpected saved contract: %+v", saved)
	}
	if saved.PDFURL == "" {
		t.Error("Expected presigned URL on contract")
	}

	if len(runner.runs) != 1 || runner.runs[0].ID != id {
		t.Fatalf("Expected pipeline to run for %s, got %d runs", id, len(runner.runs))
	}
	if runner.ctx.Err() != nil {
		t.Error("Expected pipeline context to outlive the request")
	}
}

func TestContractHandlerUploadRejects(t *testing.T) {
	tests := []struct {
		name           string
		filename       string
		content        []byte
		expectedStatus int
	}{
		{"wrong extension", "lease.docx", samplePDF, http.StatusBadRequest},
		{"not a pdf", "lease.pdf", []byte("just some text pretending to be a pdf"), http.StatusBadRequest},
		{"too large", "lease.pdf", append(append([]byte{}, samplePDF...), make([]byte, maxUploadSize)...), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, storage, runner, _ := newTestContractHandler()
			router := newContractRouter(h)

			body, contentType := multipartBody(t, tt.filename, tt.content)
			w := doRequest(router, "POST", "/api/contracts/upload", "user-1", body, contentType)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if len(storage.uploaded) != 0 || len(runner.runs) != 0 {
				t.Error("Expected nothing to be stored or run")
			}
		})
	}
}

func TestContractHandlerUploadNoFile(t *testing.T) {
	h, _, _, _ := newTestContractHandler()
	router := newContractRouter(h)

	w := doRequest(router, "POST", "/api/contracts/upload", "user-1", bytes.NewBufferString("{}"), "application/json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestContractHandlerUploadStorageError(t *testing.T) {
	h, storage, runner, store := newTestContractHandler()
	storage.uploadErr = errors.New("bucket unavailable")
	router := newContractRouter(h)

	body, contentType := multipartBody(t, "lease.pdf", samplePDF)
	w := doRequest(router, "POST", "/api/contracts/upload", "user-1", body, contentType)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if store.Count() != 0 || len(runner.runs) != 0 {
		t.Error("Expected no contract after failed upload")
	}
}

func TestContractHandlerList(t *testing.T) {
	h, _, _, store := newTestContractHandler()
	router := newContractRouter(h)

	now := time.Now()
	store.Save(&model.Contract{ID: "c-1", Filename: "a.pdf", UserID: "user-1", Status: model.StatusPending, CreatedAt: now})
	store.Save(&model.Contract{ID: "c-2", Filename: "b.pdf", UserID: "user-1", Status: model.StatusAnalyzed, CreatedAt: now.Add(time.Second),
		Analysis: &model.AnalysisResult{IsContract: true, OverallRiskScore: 87}})
	store.Save(&model.Contract{ID: "c-3", Filename: "c.pdf", UserID: "user-2", Status: model.StatusPending, CreatedAt: now})

	w := doRequest(router, "GET", "/api/contracts", "user-1", nil, "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Contracts []map[string]any `json:"contracts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Contracts) != 2 {
		t.Fatalf("Expected 2 contracts, got %d", len(resp.Contracts))
	}
	if resp.Contracts[0]["id"] != "c-2" {
		t.Errorf("Expected newest first, got %v", resp.Contracts[0]["id"])
	}
	if resp.Contracts[0]["overall_risk_score"] != float64(87) {
		t.Errorf("Expected risk score 87, got %v", resp.Contracts[0]["overall_risk_score"])
	}
	if _, ok := resp.Contracts[1]["overall_risk_score"]; ok {
		t.Error("Expected no risk score for unanalyzed contract")
	}
}

func TestContractHandlerListAnonymous(t *testing.T) {
	h, _, _, store := newTestContractHandler()
	router := newContractRouter(h)

	store.Save(&model.Contract{ID: "c-1", UserID: middleware.AnonymousUser, CreatedAt: time.Now()})
	store.Save(&model.Contract{ID: "c-2", UserID: "user-1", CreatedAt: time.Now()})

	w := doRequest(router, "GET", "/api/contracts", "", nil, "")

	var resp struct {
		Contracts []map[string]any `json:"contracts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Contracts) != 1 || resp.Contracts[0]["id"] != "c-1" {
		t.Errorf("Expected only the anonymous contract, got %v", resp.Contracts)
	}
}

func TestContractHandlerGet(t *testing.T) {
	h, _, _, store := newTestContractHandler()
	router := newContractRouter(h)

	store.Save(&model.Contract{
		ID:       "c-1",
		UserID:   "user-1",
		Status:   model.StatusAnalyzed,
		Analysis: &model.AnalysisResult{IsContract: true, Summary: "ok", Issues: []model.Issue{}, OverallRiskScore: 100},
	})

	tests := []struct {
		name           string
		path           string
		userID         string
		expectedStatus int
	}{
		{"owner", "/api/contracts/c-1", "user-1", http.StatusOK},
		{"other user", "/api/contracts/c-1", "user-2", http.StatusNotFound},
		{"missing", "/api/contracts/nope", "user-1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, "GET", tt.path, tt.userID, nil, "")
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}

	w := doRequest(router, "GET", "/api/contracts/c-1", "user-1", nil, "")
	var contract model.Contract
	if err := json.Unmarshal(w.Body.Bytes(), &contract); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if contract.Analysis == nil || contract.Analysis.OverallRiskScore != 100 {
		t.Errorf("Expected analysis in response, got %+v", contract.Analysis)
	}
}

func TestContractHandlerGetStatus(t *testing.T) {
	h, _, _, store := newTestContractHandler()
	router := newContractRouter(h)

	store.Save(&model.Contract{ID: "c-1", UserID: "user-1", Status: model.StatusFailed, ErrorMsg: "extraction failed"})

	w := doRequest(router, "GET", "/api/contracts/c-1/status", "user-1", nil, "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != model.StatusFailed {
		t.Errorf("Expected status failed, got %s", resp["status"])
	}
	if resp["error_msg"] != "extraction failed" {
		t.Errorf("Expected error message, got %s", resp["error_msg"])
	}
}

func TestContractHandlerDelete(t *testing.T) {
	h, storage, _, store := newTestContractHandler()
	router := newContractRouter(h)

	key := service.ContractObjectKey("user-1", "c-1")
	store.Save(&model.Contract{ID: "c-1", UserID: "user-1", ObjectKey: key})

	w := doRequest(router, "DELETE", "/api/contracts/c-1", "user-2", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for other user, got %d", w.Code)
	}

	w = doRequest(router, "DELETE", "/api/contracts/c-1", "user-1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if store.Get("c-1") != nil {
		t.Error("Expected contract to be deleted")
	}

	expected := []string{key, service.ReportObjectKey("user-1", "c-1")}
	if len(storage.deleted) != len(expected) {
		t.Fatalf("Expected %d deletions, got %v", len(expected), storage.deleted)
	}
	for i, name := range expected {
		if storage.deleted[i] != name {
			t.Errorf("Expected deletion %d to be %s, got %s", i, name, storage.deleted[i])
		}
	}
}

func TestContractHandlerDeleteRemovesEditedText(t *testing.T) {
	h, storage, _, store := newTestContractHandler()
	router := newContractRouter(h)

	key := service.ContractObjectKey("user-1", "c-1")
	edited := service.EditedObjectKey(key)
	store.Save(&model.Contract{ID: "c-1", UserID: "user-1", ObjectKey: key, EditedVersion: edited})

	w := doRequest(router, "DELETE", "/api/contracts/c-1", "user-1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	expected := []string{key, edited, service.ReportObjectKey("user-1", "c-1")}
	if len(storage.deleted) != len(expected) {
		t.Fatalf("Expected %d deletions, got %v", len(expected), storage.deleted)
	}
	for i, name := range expected {
		if storage.deleted[i] != name {
			t.Errorf("Expected deletion %d to be %s, got %s", i, name, storage.deleted[i])
		}
	}
}

func TestContractHandlerDeleteStorageError(t *testing.T) {
	h, storage, _, store := newTestContractHandler()
	storage.deleteErr = errors.New("bucket unavailable")
	router := newContractRouter(h)

	store.Save(&model.Contract{ID: "c-1", UserID: "user-1"})

	w := doRequest(router, "DELETE", "/api/contracts/c-1", "user-1", nil, "")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if store.Get("c-1") == nil {
		t.Error("Expected contract to be kept when its file cannot be deleted")
	}
}

func TestContractHandlerRename(t *testing.T) {
	tests := []struct {
		name             string
		userID           string
		body             string
		expectedStatus   int
		expectedFilename string
		expectedAddress  string
		expectedLandlord string
	}{
		{
			name:             "appends pdf extension",
			userID:           "user-1",
			body:             `{"file_name": "  Haifa lease  "}`,
			expectedStatus:   http.StatusOK,
			expectedFilename: "Haifa lease.pdf",
			expectedLandlord: "Dana",
		},
		{
			name:             "keeps existing extension",
			userID:           "user-1",
			body:             `{"file_name": "lease.PDF"}`,
			expectedStatus:   http.StatusOK,
			expectedFilename: "lease.PDF",
			expectedLandlord: "Dana",
		},
		{
			name:             "address and landlord only",
			userID:           "user-1",
			body:             `{"property_address": " Herzl 1, Haifa ", "landlord_name": "Avi"}`,
			expectedStatus:   http.StatusOK,
			expectedFilename: "original.pdf",
			expectedAddress:  "Herzl 1, Haifa",
			expectedLandlord: "Avi",
		},
		{
			name:             "blank name is ignored",
			userID:           "user-1",
			body:             `{"file_name": "   ", "property_address": "Herzl 1"}`,
			expectedStatus:   http.StatusOK,
			expectedFilename: "original.pdf",
			expectedAddress:  "Herzl 1",
			expectedLandlord: "Dana",
		},
		{"nothing to update", "user-1", `{}`, http.StatusBadRequest, "original.pdf", "", "Dana"},
		{"only empty fields", "user-1", `{"file_name": "", "landlord_name": ""}`, http.StatusBadRequest, "original.pdf", "", "Dana"},
		{"invalid body", "user-1", `{"file_name": 5}`, http.StatusBadRequest, "original.pdf", "", "Dana"},
		{"other user", "user-2", `{"file_name": "stolen"}`, http.StatusNotFound, "original.pdf", "", "Dana"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _, store := newTestContractHandler()
			router := newContractRouter(h)
			store.Save(&model.Contract{ID: "c-1", UserID: "user-1", Filename: "original.pdf", LandlordName: "Dana"})

			w := doRequest(router, "PATCH", "/api/contracts/c-1", tt.userID, strings.NewReader(tt.body), "application/json")
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			c := store.Get("c-1")
			if c.Filename != tt.expectedFilename {
				t.Errorf("Expected filename %q, got %q", tt.expectedFilename, c.Filename)
			}
			if c.PropertyAddress != tt.expectedAddress {
				t.Errorf("Expected address %q, got %q", tt.expectedAddress, c.PropertyAddress)
			}
			if c.LandlordName != tt.expectedLandlord {
				t.Errorf("Expected landlord %q, got %q", tt.expectedLandlord, c.LandlordName)
			}
		})
	}
}

func TestContractHandlerRenameResponse(t *testing.T) {
	h, _, _, store := newTestContractHandler()
	router := newContractRouter(h)
	store.Save(&model.Contract{ID: "c-1", UserID: "user-1", Filename: "original.pdf"})

	w := doRequest(router, "PATCH", "/api/contracts/c-1", "user-1", strings.NewReader(`{"file_name": "new"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["id"] != "c-1" || resp["filename"] != "new.pdf" {
		t.Errorf("Unexpected response: %v", resp)
	}
}

func TestContractHandlerSaveEdited(t *testing.T) {
	h, storage, _, store := newTestContractHandler()
	router := newContractRouter(h)

	key := service.ContractObjectKey("user-1", "c-1")
	store.Save(&model.Contract{ID: "c-1", UserID: "user-1", ObjectKey: key})

	body := `{"edited_clauses": {"3": "השוכר ישלם", "7": "המשכיר יתקן"}, "full_edited_text": "חוזה שכירות\nנייד 052-1234567"}`
	before := time.Now().UTC().Add(-time.Second)
	w := doRequest(router, "POST", "/api/contracts/c-1/edited", "user-1", strings.NewReader(body), "application/json")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	editedKey := "uploads/user-1/contract-c-1_edited.txt"
	var resp struct {
		ID         string `json:"id"`
		EditedKey  string `json:"edited_key"`
		EditsCount int    `json:"edits_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.EditedKey != editedKey {
		t.Errorf("Expected edited key %s, got %s", editedKey, resp.EditedKey)
	}
	if resp.EditsCount != 2 {
		t.Errorf("Expected 2 edits, got %d", resp.EditsCount)
	}

	stored, ok := storage.uploaded[editedKey]
	if !ok {
		t.Fatalf("Expected edited text at %s, got %v", editedKey, storage.uploaded)
	}
	if string(stored) != "חוזה שכירות\nנייד [נייד הוסתר]" {
		t.Errorf("Expected masked edited text, got %q", stored)
	}

	c := store.Get("c-1")
	if c.EditedVersion != editedKey {
		t.Errorf("Expected edited version %s, got %s", editedKey, c.EditedVersion)
	}
	if c.EditsCount != 2 {
		t.Errorf("Expected edits count 2, got %d", c.EditsCount)
	}
	if c.LastEditedAt == nil || c.LastEditedAt.Before(before) {
		t.Errorf("Expected last edited at to be set, got %v", c.LastEditedAt)
	}
}

func TestContractHandlerSaveEditedFallbackKey(t *testing.T) {
	h, storage, _, store := newTestContractHandler()
	router := newContractRouter(h)
	store.Save(&model.Contract{ID: "c-1", UserID: "user-1"})

	w := doRequest(router, "POST", "/api/contracts/c-1/edited", "user-1", strings.NewReader(`{"full_edited_text": "טקסט"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if _, ok := storage.uploaded["uploads/user-1/contract-c-1_edited.txt"]; !ok {
		t.Errorf("Expected edited text under the default key, got %v", storage.uploaded)
	}
	if c := store.Get("c-1"); c.EditsCount != 0 {
		t.Errorf("Expected no clause edits, got %d", c.EditsCount)
	}
}

func TestContractHandlerSaveEditedErrors(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           string
		uploadErr      error
		expectedStatus int
	}{
		{"invalid body", "user-1", `{"edited_clauses": []}`, nil, http.StatusBadRequest},
		{"empty body", "user-1", ``, nil, http.StatusBadRequest},
		{"other user", "user-2", `{"full_edited_text": "x"}`, nil, http.StatusNotFound},
		{"storage failure", "user-1", `{"full_edited_text": "x"}`, errors.New("bucket unavailable"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, storage, _, store := newTestContractHandler()
			storage.uploadErr = tt.uploadErr
			router := newContractRouter(h)
			store.Save(&model.Contract{ID: "c-1", UserID: "user-1"})

			w := doRequest(router, "POST", "/api/contracts/c-1/edited", tt.userID, strings.NewReader(tt.body), "application/json")
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if c := store.Get("c-1"); c.EditedVersion != "" {
				t.Errorf("Expected no edited version after failure, got %s", c.EditedVersion)
			}
		})
	}
}
