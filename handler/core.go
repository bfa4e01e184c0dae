package handler

import (
	"net/http"

	"github.com/fakesociety/RentGuard360/model"
	"github.com/fakesociety/RentGuard360/pkg/analysis"
	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/fakesociety/RentGuard360/pkg/riskscore"
	"github.com/fakesociety/RentGuard360/pkg/sanitizer"
	"github.com/gin-gonic/gin"
)

// maxTextBody bounds the JSON bodies accepted by the text endpoints
const maxTextBody = 2 << 20

// CoreHandler exposes the sanitizer and the score calculator directly
type CoreHandler struct{}

func NewCoreHandler() *CoreHandler {
	return &CoreHandler{}
}

type SanitizeRequest struct {
	Text string `json:"text"`
}

type ParseRequest struct {
	Output string `json:"output" binding:"required"`
}

// Sanitize runs the sanitizer over raw contract text
func (h *CoreHandler) Sanitize(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTextBody)

	var req SanitizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	res := sanitizer.Sanitize(req.Text)
	logger.Debug(c.Request.Context(), "sanitize request served",
		"clauses", len(res.Clauses),
		"confidence", res.ContractConfidence,
	)
	c.JSON(http.StatusOK, res)
}

// Score recalculates the scores of an analysis report
func (h *CoreHandler) Score(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTextBody)

	var report model.AnalysisResult
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysis: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, riskscore.Recalculate(report))
}

// ParseAnalysis turns raw reasoner output into a scored report. Output that
// cannot be parsed yields the neutral fallback report, not an error.
func (h *CoreHandler) ParseAnalysis(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTextBody)

	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	report, err := analysis.ParseOutput(req.Output)
	if err != nil {
		logger.Warn(c.Request.Context(), "reasoner output not parseable", "error", err)
		report = analysis.Fallback(err)
	}
	report.Issues = analysis.Annotate(report.Issues)

	c.JSON(http.StatusOK, riskscore.Recalculate(report))
}

// Rules lists the rule catalog
func (h *CoreHandler) Rules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": analysis.Rules()})
}

// Schema returns the JSON schema reasoner reports must follow
func (h *CoreHandler) Schema(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", analysis.OutputSchema())
}
