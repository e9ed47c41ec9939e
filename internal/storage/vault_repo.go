package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vault_store.go -package=mocks morph/internal/storage VaultStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VaultStore defines the interface for vault storage operations.
type VaultStore interface {
	// GetOrCreateByName gets an existing vault by name, or creates it.
	GetOrCreateByName(ctx context.Context, name, rootPath string) (VaultRecord, error)
	// GetByID gets a vault by id. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (VaultRecord, error)
}

// VaultRepo provides methods for vault operations.
type VaultRepo struct {
	db *sql.DB
}

// NewVaultRepo creates a new VaultRepo.
func NewVaultRepo(db *sql.DB) *VaultRepo {
	return &VaultRepo{db: db}
}

// GetOrCreateByName gets an existing vault by name, or creates it if it doesn't exist.
func (r *VaultRepo) GetOrCreateByName(ctx context.Context, name, rootPath string) (VaultRecord, error) {
	vault, err := r.scanOne(ctx, "SELECT id, name, root_path, created_at FROM vaults WHERE name = ?", name)
	if err == nil {
		return vault, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return VaultRecord{}, err
	}

	vault = VaultRecord{
		ID:        uuid.New().String(),
		Name:      name,
		RootPath:  rootPath,
		CreatedAt: time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO vaults (id, name, root_path, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (name) DO NOTHING",
		vault.ID, vault.Name, vault.RootPath, vault.CreatedAt,
	)
	if err != nil {
		return VaultRecord{}, fmt.Errorf("failed to insert vault: %w", err)
	}

	// Re-read so a concurrent creator's row wins.
	return r.scanOne(ctx, "SELECT id, name, root_path, created_at FROM vaults WHERE name = ?", name)
}

// GetByID gets a vault by id. Returns ErrNotFound if not found.
func (r *VaultRepo) GetByID(ctx context.Context, id string) (VaultRecord, error) {
	return r.scanOne(ctx, "SELECT id, name, root_path, created_at FROM vaults WHERE id = ?", id)
}

func (r *VaultRepo) scanOne(ctx context.Context, query string, arg any) (VaultRecord, error) {
	var vault VaultRecord
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&vault.ID, &vault.Name, &vault.RootPath, &vault.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return VaultRecord{}, ErrNotFound
	}
	if err != nil {
		return VaultRecord{}, fmt.Errorf("failed to query vault: %w", err)
	}
	return vault, nil
}
