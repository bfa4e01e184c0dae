package service

import (
	"context"
	"fmt"

	"github.com/fakesociety/RentGuard360/model"
	"github.com/fakesociety/RentGuard360/pkg/analysis"
	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/fakesociety/RentGuard360/pkg/riskscore"
	"github.com/fakesociety/RentGuard360/pkg/sanitizer"
)

const (
	NoTextSummary              = "לא נמצא טקסט במסמך."
	UnsupportedLanguageSummary = "המערכת תומכת רק בחוזים בעברית או באנגלית."
)

// Extractor turns an uploaded PDF into text
type Extractor interface {
	UsesCallback() bool
	CreateTask(ctx context.Context, pdfURL, dataID string) (string, error)
	WaitForResult(ctx context.Context, taskID string) (string, error)
	FetchDocument(ctx context.Context, zipURL string) (*ExtractedDocument, error)
}

// Reasoner reviews a sanitized contract and returns its raw report
type Reasoner interface {
	Analyze(ctx context.Context, req ReasonerRequest) (string, error)
}

// Archiver keeps finished reports in object storage
type Archiver interface {
	ArchiveReport(ctx context.Context, objectName string, v any) error
}

// Pipeline drives a contract from uploaded PDF to scored analysis
type Pipeline struct {
	extractor     Extractor
	reasoner      Reasoner
	archiver      Archiver
	store         *ContractStore
	maxTextLength int
}

func NewPipeline(extractor Extractor, reasoner Reasoner, archiver Archiver, store *ContractStore, maxTextLength int) *Pipeline {
	return &Pipeline{
		extractor:     extractor,
		reasoner:      reasoner,
		archiver:      archiver,
		store:         store,
		maxTextLength: maxTextLength,
	}
}

// Run submits the contract's PDF for extraction. When MinerU reports back
// through the callback, Run returns once the task is created and
// CompleteExtraction continues from the callback; otherwise Run polls and
// finishes the whole pipeline.
func (p *Pipeline) Run(ctx context.Context, contract *model.Contract) error {
	ctx = logger.WithContractID(ctx, contract.ID)
	logger.Info(ctx, "pipeline started", "filename", contract.Filename)

	p.store.UpdateStatus(contract.ID, model.StatusProcessing, "")

	taskID, err := p.extractor.CreateTask(ctx, contract.PDFURL, contract.ID)
	if err != nil {
		return p.fail(ctx, contract.ID, fmt.Errorf("failed to create extraction task: %w", err))
	}
	p.store.UpdateExtraction(contract.ID, taskID)
	logger.Info(ctx, "extraction task created", "task_id", taskID)

	if p.extractor.UsesCallback() {
		return nil
	}

	zipURL, err := p.extractor.WaitForResult(ctx, taskID)
	if err != nil {
		return p.fail(ctx, contract.ID, err)
	}
	return p.CompleteExtraction(ctx, contract.ID, zipURL)
}

// CompleteExtraction downloads the extracted text and analyzes it
func (p *Pipeline) CompleteExtraction(ctx context.Context, contractID, zipURL string) error {
	ctx = logger.WithContractID(ctx, contractID)

	doc, err := p.extractor.FetchDocument(ctx, zipURL)
	if err != nil {
		return p.fail(ctx, contractID, fmt.Errorf("failed to fetch extraction result: %w", err))
	}

	_, err = p.AnalyzeText(ctx, contractID, doc.Text, doc.PageCount)
	return err
}

// Fail marks the contract as failed with the given reason
func (p *Pipeline) Fail(ctx context.Context, contractID string, err error) {
	_ = p.fail(logger.WithContractID(ctx, contractID), contractID, err)
}

// AnalyzeText sanitizes raw document text, asks the reasoner for a report
// and stores the recalculated result. Empty text and unsupported scripts
// are answered locally as not-a-contract without calling the reasoner.
func (p *Pipeline) AnalyzeText(ctx context.Context, contractID, raw string, pageCount int) (*model.AnalysisResult, error) {
	ctx = logger.WithContractID(ctx, contractID)

	res := sanitizer.Sanitize(raw)
	p.store.UpdateSanitized(contractID, &model.SanitizedText{
		Text:               res.SanitizedText,
		Clauses:            res.Clauses,
		PIIFound:           res.PIIFound,
		ContractConfidence: res.ContractConfidence,
	}, pageCount)
	logger.Info(ctx, "contract sanitized",
		"clauses", len(res.Clauses),
		"pii_found", res.PIIFound,
		"confidence", res.ContractConfidence,
		"pages", pageCount,
	)

	var report model.AnalysisResult
	switch {
	case res.SanitizedText == "":
		report = rejected(NoTextSummary)
	case sanitizer.DetectLanguage(res.SanitizedText) == sanitizer.LanguageUnsupported:
		report = rejected(UnsupportedLanguageSummary)
	default:
		output, err := p.reasoner.Analyze(ctx, ReasonerRequest{
			ContractID:     contractID,
			SanitizedText:  sanitizer.Truncate(res.SanitizedText, p.maxTextLength),
			Clauses:        res.Clauses,
			ResponseSchema: analysis.OutputSchema(),
		})
		if err != nil {
			return nil, p.fail(ctx, contractID, err)
		}

		report, err = analysis.ParseOutput(output)
		if err != nil {
			logger.Warn(ctx, "reasoner output not parseable, using fallback", "error", err)
			report = analysis.Fallback(err)
		}
		report.Issues = analysis.Annotate(report.Issues)
	}

	final := riskscore.Recalculate(report)
	p.store.UpdateAnalysis(contractID, &final)
	logger.Info(ctx, "contract analyzed",
		"is_contract", final.IsContract,
		"issues", len(final.Issues),
		"overall_risk_score", final.OverallRiskScore,
	)

	p.archive(ctx, contractID)
	return &final, nil
}

// archive stores the finished record. Failures are logged only; the
// analysis is already available from the store.
func (p *Pipeline) archive(ctx context.Context, contractID string) {
	if p.archiver == nil {
		return
	}
	contract := p.store.Get(contractID)
	if contract == nil {
		return
	}
	if err := p.archiver.ArchiveReport(ctx, ReportObjectKey(contract.UserID, contractID), contract); err != nil {
		logger.Warn(ctx, "failed to archive report", "error", err)
	}
}

func (p *Pipeline) fail(ctx context.Context, contractID string, err error) error {
	logger.Error(ctx, "pipeline failed", "error", err)
	p.store.UpdateStatus(contractID, model.StatusFailed, err.Error())
	return err
}

func rejected(summary string) model.AnalysisResult {
	return model.AnalysisResult{
		IsContract: false,
		Summary:    summary,
		Issues:     []model.Issue{},
	}
}
