package model

import (
	"time"
)

// Contract represents an uploaded rental contract and everything derived from it
type Contract struct {
	ID              string          `json:"id"`
	Filename        string          `json:"filename"`
	UserID          string          `json:"user_id"`
	ObjectKey       string          `json:"object_key"`
	PDFURL          string          `json:"pdf_url"`
	Status          string          `json:"status"` // pending, processing, sanitized, analyzed, failed
	PropertyAddress string          `json:"property_address,omitempty"`
	LandlordName    string          `json:"landlord_name,omitempty"`
	ExtractTaskID   string          `json:"extract_task_id,omitempty"`
	PageCount       int             `json:"page_count,omitempty"`
	Sanitized       *SanitizedText  `json:"sanitized,omitempty"`
	Analysis        *AnalysisResult `json:"analysis,omitempty"`
	EditedVersion   string          `json:"edited_version,omitempty"` // object key of the edited text
	EditsCount      int             `json:"edits_count,omitempty"`
	LastEditedAt    *time.Time      `json:"last_edited_at,omitempty"`
	ErrorMsg        string          `json:"error_msg,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ContractDetails holds the user-editable fields of a contract. Nil
// fields are left unchanged.
type ContractDetails struct {
	Filename        *string
	PropertyAddress *string
	LandlordName    *string
}

// SanitizedText is the persisted output of the sanitizer for one contract
type SanitizedText struct {
	Text               string   `json:"sanitized_text"`
	Clauses            []string `json:"clauses"`
	PIIFound           []string `json:"pii_found"`
	ContractConfidence int      `json:"contract_confidence"`
}

// ContractStatus constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSanitized  = "sanitized"
	StatusAnalyzed   = "analyzed"
	StatusFailed     = "failed"
)
