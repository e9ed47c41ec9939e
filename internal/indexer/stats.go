package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"morph/internal/storage"
)

// VaultCoverage counts the essays of one vault per embedding status.
type VaultCoverage struct {
	VaultID    string  `json:"vault_id"`
	VaultName  string  `json:"vault_name"`
	Files      int     `json:"files"`
	Embedded   int     `json:"embedded"`
	InProgress int     `json:"in_progress"`
	Failed     int     `json:"failed"`
	Cancelled  int     `json:"cancelled"`
	Ratio      float64 `json:"ratio"`
}

// CoverageStats describes how much of the configured vaults is embedded
// with the current model.
type CoverageStats struct {
	// IndexVersion identifies the embedding space: model, type and dimensions.
	IndexVersion string          `json:"index_version"`
	Vaults       []VaultCoverage `json:"vaults"`
}

// Coverage computes per-vault embedding coverage from storage.
func (p *Pipeline) Coverage(ctx context.Context, schema storage.EmbedSchema) (*CoverageStats, error) {
	stats := &CoverageStats{IndexVersion: IndexVersion(schema)}

	for _, v := range p.vaultManager.Vaults() {
		counts, err := p.fileRepo.CountByStatus(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count files for vault %s: %w", v.Name, err)
		}

		vc := VaultCoverage{
			VaultID:    v.ID,
			VaultName:  v.Name,
			Embedded:   counts[storage.StatusSuccess],
			InProgress: counts[storage.StatusInProgress],
			Failed:     counts[storage.StatusFailure],
			Cancelled:  counts[storage.StatusCancelled],
		}
		for _, n := range counts {
			vc.Files += n
		}
		if vc.Files > 0 {
			vc.Ratio = math.Round(float64(vc.Embedded)/float64(vc.Files)*100) / 100
		}
		stats.Vaults = append(stats.Vaults, vc)
	}

	return stats, nil
}

// IndexVersion is a short hash of the embedding space. Vectors stored under
// different versions are not comparable.
func IndexVersion(schema storage.EmbedSchema) string {
	input := fmt.Sprintf("%s|%s|dims=%d", schema.ModelID, schema.Prefix(), schema.Dimensions)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
