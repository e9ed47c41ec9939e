package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"morph/internal/storage"
)

// VaultHandler registers and looks up vaults.
type VaultHandler struct {
	vaults storage.VaultStore
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(vaults storage.VaultStore) *VaultHandler {
	return &VaultHandler{vaults: vaults}
}

// CreateVaultRequest is the body of POST /api/vaults.
type CreateVaultRequest struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
}

// VaultResponse describes a vault.
type VaultResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RootPath  string    `json:"root_path"`
	CreatedAt time.Time `json:"created_at"`
}

// Create registers a vault by name. An existing vault with that name is
// returned unchanged.
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateVaultRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}
	if err := required("name", req.Name); err != nil {
		handleError(w, ctx, err, "Invalid request body")
		return
	}

	vault, err := h.vaults.GetOrCreateByName(ctx, req.Name, req.RootPath)
	if err != nil {
		handleError(w, ctx, err, "Failed to create vault")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toVaultResponse(vault))
}

// Get returns a vault by id.
func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, err := h.vaults.GetByID(ctx, chi.URLParam(r, "vaultID"))
	if err != nil {
		handleError(w, ctx, err, "Failed to load vault")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toVaultResponse(vault))
}

func toVaultResponse(v storage.VaultRecord) VaultResponse {
	return VaultResponse{ID: v.ID, Name: v.Name, RootPath: v.RootPath, CreatedAt: v.CreatedAt}
}
