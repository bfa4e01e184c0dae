package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fakesociety/RentGuard360/config"
	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/fakesociety/RentGuard360/service"
	"github.com/gin-gonic/gin"
)

// CallbackVerifier checks the checksum MinerU signs callbacks with
type CallbackVerifier interface {
	VerifyCallback(checksum, content, uid string) bool
}

// ExtractionCompleter continues a contract's pipeline once extraction ends
type ExtractionCompleter interface {
	CompleteExtraction(ctx context.Context, contractID, zipURL string) error
	Fail(ctx context.Context, contractID string, err error)
}

type CallbackHandler struct {
	verifier CallbackVerifier
	pipeline ExtractionCompleter
	store    *service.ContractStore
	config   *config.MineruConfig
	runAsync func(func())
}

func NewCallbackHandler(verifier CallbackVerifier, pipeline ExtractionCompleter, store *service.ContractStore, cfg *config.MineruConfig) *CallbackHandler {
	return &CallbackHandler{
		verifier: verifier,
		pipeline: pipeline,
		store:    store,
		config:   cfg,
		runAsync: func(fn func()) { go fn() },
	}
}

// HandleCallback receives task results from MinerU. The data_id of the
// task is the contract ID it was created for.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	ctx := c.Request.Context()

	var req service.MineruCallbackPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if h.config.Seed != "" && !h.verifier.VerifyCallback(req.Checksum, req.Content, h.config.UID) {
		logger.Warn(ctx, "mineru callback checksum mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid checksum"})
		return
	}

	var content service.MineruTaskState
	if err := json.Unmarshal([]byte(req.Content), &content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content format"})
		return
	}

	contract := h.store.Get(content.DataID)
	if contract == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}

	ctx = logger.WithContractID(ctx, contract.ID)
	logger.Info(ctx, "mineru callback received", "task_id", content.TaskID, "state", content.State)

	runCtx := context.WithoutCancel(ctx)
	switch content.State {
	case service.TaskStateDone:
		if content.FullZipURL == "" {
			h.pipeline.Fail(runCtx, contract.ID, fmt.Errorf("%w: task finished without result", service.ErrExtractionFailed))
			break
		}
		h.runAsync(func() {
			_ = h.pipeline.CompleteExtraction(runCtx, contract.ID, content.FullZipURL)
		})
	case service.TaskStateFailed:
		h.pipeline.Fail(runCtx, contract.ID, fmt.Errorf("%w: %s", service.ErrExtractionFailed, content.ErrorMsg))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Callback received"})
}
