package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fakesociety/RentGuard360/config"
	"github.com/fakesociety/RentGuard360/model"
)

// ContractStore is an in-memory store for contracts.
// Readers get copies so a record can be encoded while the pipeline updates it.
type ContractStore struct {
	contracts    map[string]*model.Contract
	mu           sync.RWMutex
	maxContracts int // Maximum contracts to keep, 0 = unlimited
}

// NewContractStore creates a store bounded by cfg.MaxContracts
func NewContractStore(cfg *config.StoreConfig) *ContractStore {
	maxContracts := cfg.MaxContracts
	if maxContracts < 0 {
		maxContracts = 0
	}
	slog.Info("contract store initialized", "max_contracts", maxContracts)
	return &ContractStore{
		contracts:    make(map[string]*model.Contract),
		maxContracts: maxContracts,
	}
}

func (s *ContractStore) Save(contract *model.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *contract
	cp.UpdatedAt = time.Now()
	s.contracts[cp.ID] = &cp

	s.cleanupIfNeeded()
}

func (s *ContractStore) Get(id string) *model.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// GetByUser returns the caller's contracts, newest first
func (s *ContractStore) GetByUser(userID string) []*model.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*model.Contract{}
	for _, c := range s.contracts {
		if c.UserID == userID {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *ContractStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contracts, id)
}

func (s *ContractStore) UpdateStatus(id, status string, errMsg string) {
	s.update(id, func(c *model.Contract) {
		c.Status = status
		c.ErrorMsg = errMsg
	})
}

// UpdateExtraction records the extraction task attached to a contract
func (s *ContractStore) UpdateExtraction(id, taskID string) {
	s.update(id, func(c *model.Contract) {
		c.ExtractTaskID = taskID
		c.Status = model.StatusProcessing
	})
}

func (s *ContractStore) UpdateSanitized(id string, sanitized *model.SanitizedText, pageCount int) {
	s.update(id, func(c *model.Contract) {
		c.Sanitized = sanitized
		c.PageCount = pageCount
		c.Status = model.StatusSanitized
	})
}

func (s *ContractStore) UpdateAnalysis(id string, analysis *model.AnalysisResult) {
	s.update(id, func(c *model.Contract) {
		c.Analysis = analysis
		c.Status = model.StatusAnalyzed
		c.ErrorMsg = ""
	})
}

// UpdateDetails applies the non-nil fields of d
func (s *ContractStore) UpdateDetails(id string, d model.ContractDetails) {
	s.update(id, func(c *model.Contract) {
		if d.Filename != nil {
			c.Filename = *d.Filename
		}
		if d.PropertyAddress != nil {
			c.PropertyAddress = *d.PropertyAddress
		}
		if d.LandlordName != nil {
			c.LandlordName = *d.LandlordName
		}
	})
}

// UpdateEdited records where the user's edited text was stored
func (s *ContractStore) UpdateEdited(id, objectKey string, editsCount int, at time.Time) {
	s.update(id, func(c *model.Contract) {
		c.EditedVersion = objectKey
		c.EditsCount = editsCount
		c.LastEditedAt = &at
	})
}

func (s *ContractStore) update(id string, fn func(*model.Contract)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contracts[id]; ok {
		fn(c)
		c.UpdatedAt = time.Now()
	}
}

// cleanupIfNeeded removes oldest contracts if store exceeds maxContracts
// Must be called with lock held
func (s *ContractStore) cleanupIfNeeded() {
	if s.maxContracts <= 0 || len(s.contracts) <= s.maxContracts {
		return
	}

	contracts := make([]*model.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].CreatedAt.Before(contracts[j].CreatedAt)
	})

	removeCount := len(contracts) - s.maxContracts
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old contract",
			"contract_id", contracts[i].ID,
			"created_at", contracts[i].CreatedAt,
		)
		delete(s.contracts, contracts[i].ID)
	}
}

// Count returns the number of contracts in the store
func (s *ContractStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}
