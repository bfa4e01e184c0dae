package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fakesociety/RentGuard360/middleware"
	"github.com/fakesociety/RentGuard360/model"
	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/fakesociety/RentGuard360/pkg/sanitizer"
	"github.com/fakesociety/RentGuard360/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadSize is the largest contract PDF accepted
const maxUploadSize = 20 << 20

// ObjectStorage keeps uploaded contract files
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, objectName string) (string, error)
	DeleteFile(ctx context.Context, objectName string) error
}

// ContractRunner processes an uploaded contract end to end
type ContractRunner interface {
	Run(ctx context.Context, contract *model.Contract) error
}

type ContractHandler struct {
	storage  ObjectStorage
	runner   ContractRunner
	store    *service.ContractStore
	runAsync func(func())
}

func NewContractHandler(storage ObjectStorage, runner ContractRunner, store *service.ContractStore) *ContractHandler {
	return &ContractHandler{
		storage:  storage,
		runner:   runner,
		store:    store,
		runAsync: func(fn func()) { go fn() },
	}
}

// Upload stores a contract PDF and starts its analysis in the background
func (h *ContractHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}
	if strings.ToLower(filepath.Ext(header.Filename)) != ".pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are allowed"})
		return
	}

	// Sniff the content rather than trusting the client's Content-Type
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if http.DetectContentType(buffer[:n]) != "application/pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	contractID := uuid.NewString()
	objectName := service.ContractObjectKey(userID, contractID)

	if err := h.storage.UploadFile(ctx, objectName, file, header.Size, "application/pdf"); err != nil {
		logger.Error(ctx, "failed to upload contract", "object", objectName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	pdfURL, err := h.storage.GetPresignedURL(ctx, objectName)
	if err != nil {
		logger.Error(ctx, "failed to presign contract", "object", objectName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL"})
		return
	}

	now := time.Now()
	contract := &model.Contract{
		ID:        contractID,
		Filename:  header.Filename,
		UserID:    userID,
		ObjectKey: objectName,
		PDFURL:    pdfURL,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	h.store.Save(contract)

	logger.Info(ctx, "contract uploaded", "contract_id", contractID, "size", header.Size)

	// The pipeline outlives the request; failures are recorded on the contract.
	runCtx := context.WithoutCancel(ctx)
	h.runAsync(func() {
		_ = h.runner.Run(runCtx, contract)
	})

	c.JSON(http.StatusAccepted, gin.H{
		"id":       contractID,
		"filename": header.Filename,
		"status":   model.StatusPending,
	})
}

// List returns the caller's contracts without their text or issues
func (h *ContractHandler) List(c *gin.Context) {
	contracts := h.store.GetByUser(middleware.GetUserID(c))

	result := make([]gin.H, len(contracts))
	for i, contract := range contracts {
		item := gin.H{
			"id":         contract.ID,
			"filename":   contract.Filename,
			"status":     contract.Status,
			"created_at": contract.CreatedAt.Format(time.RFC3339),
			"updated_at": contract.UpdatedAt.Format(time.RFC3339),
		}
		if contract.Analysis != nil {
			item["is_contract"] = contract.Analysis.IsContract
			item["overall_risk_score"] = contract.Analysis.OverallRiskScore
		}
		result[i] = item
	}

	c.JSON(http.StatusOK, gin.H{"contracts": result})
}

// Get returns a single contract with its sanitized text and analysis
func (h *ContractHandler) Get(c *gin.Context) {
	contract := h.owned(c)
	if contract == nil {
		return
	}
	c.JSON(http.StatusOK, contract)
}

// GetStatus returns the processing status of a contract
func (h *ContractHandler) GetStatus(c *gin.Context) {
	contract := h.owned(c)
	if contract == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        contract.ID,
		"status":    contract.Status,
		"error_msg": contract.ErrorMsg,
	})
}

// RenameRequest carries the contract details a user can change. Absent
// or empty fields are left alone.
type RenameRequest struct {
	Filename        *string `json:"file_name"`
	PropertyAddress *string `json:"property_address"`
	LandlordName    *string `json:"landlord_name"`
}

// Rename updates a contract's display name, property address and landlord
func (h *ContractHandler) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	contract := h.owned(c)
	if contract == nil {
		return
	}

	var details model.ContractDetails
	if req.Filename != nil {
		if name := strings.TrimSpace(*req.Filename); name != "" {
			if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
				name += ".pdf"
			}
			details.Filename = &name
		}
	}
	details.PropertyAddress = trimmedField(req.PropertyAddress)
	details.LandlordName = trimmedField(req.LandlordName)

	if details.Filename == nil && details.PropertyAddress == nil && details.LandlordName == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one field (file_name, property_address, landlord_name) is required"})
		return
	}

	h.store.UpdateDetails(contract.ID, details)
	logger.Info(c.Request.Context(), "contract details updated", "contract_id", contract.ID)

	updated := h.store.Get(contract.ID)
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               updated.ID,
		"filename":         updated.Filename,
		"property_address": updated.PropertyAddress,
		"landlord_name":    updated.LandlordName,
	})
}

// trimmedField returns the trimmed value of a non-empty field, nil otherwise
func trimmedField(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}

// SaveEditedRequest is the user's edited version of a contract
type SaveEditedRequest struct {
	EditedClauses  map[string]string `json:"edited_clauses"`
	FullEditedText string            `json:"full_edited_text"`
}

// SaveEdited stores the user's edited contract text next to the PDF.
// The text is masked again since the user may have typed PII into it.
func (h *ContractHandler) SaveEdited(c *gin.Context) {
	ctx := c.Request.Context()

	var req SaveEditedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	contract := h.owned(c)
	if contract == nil {
		return
	}

	sourceKey := contract.ObjectKey
	if sourceKey == "" {
		sourceKey = service.ContractObjectKey(contract.UserID, contract.ID)
	}
	editedKey := service.EditedObjectKey(sourceKey)

	text, found := sanitizer.MaskPII(req.FullEditedText)
	if len(found) > 0 {
		logger.Info(ctx, "masked PII in edited text", "contract_id", contract.ID, "pii_found", found)
	}

	if err := h.storage.UploadFile(ctx, editedKey, strings.NewReader(text), int64(len(text)), "text/plain; charset=utf-8"); err != nil {
		logger.Error(ctx, "failed to upload edited contract", "object", editedKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save edited contract"})
		return
	}

	editedAt := time.Now().UTC()
	h.store.UpdateEdited(contract.ID, editedKey, len(req.EditedClauses), editedAt)

	logger.Info(ctx, "edited contract saved", "contract_id", contract.ID, "edits", len(req.EditedClauses))

	c.JSON(http.StatusOK, gin.H{
		"id":             contract.ID,
		"edited_key":     editedKey,
		"edits_count":    len(req.EditedClauses),
		"last_edited_at": editedAt.Format(time.RFC3339),
	})
}

// Delete removes a contract, its PDF, its edited text and its archived report
func (h *ContractHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	contract := h.owned(c)
	if contract == nil {
		return
	}

	objectName := contract.ObjectKey
	if objectName == "" {
		objectName = service.ContractObjectKey(contract.UserID, contract.ID)
	}
	if err := h.storage.DeleteFile(ctx, objectName); err != nil {
		logger.Error(ctx, "failed to delete contract file", "object", objectName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
		return
	}
	if contract.EditedVersion != "" {
		if err := h.storage.DeleteFile(ctx, contract.EditedVersion); err != nil {
			logger.Warn(ctx, "failed to delete edited contract", "contract_id", contract.ID, "error", err)
		}
	}
	if err := h.storage.DeleteFile(ctx, service.ReportObjectKey(contract.UserID, contract.ID)); err != nil {
		logger.Warn(ctx, "failed to delete archived report", "contract_id", contract.ID, "error", err)
	}

	h.store.Delete(contract.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted"})
}

// owned loads the contract named in the path if it belongs to the caller,
// answering 404 otherwise.
func (h *ContractHandler) owned(c *gin.Context) *model.Contract {
	contract := h.store.Get(c.Param("id"))
	if contract == nil || contract.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return nil
	}
	return contract
}
