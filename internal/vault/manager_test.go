package vault

import (
	"context"
	"testing"

	"go.uber.org/mock/gomock"

	"morph/internal/storage"
	"morph/internal/storage/mocks"
)

func TestNewManager(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockVaultRepo := mocks.NewMockVaultStore(ctrl)

	mockVaultRepo.EXPECT().
		GetOrCreateByName(gomock.Any(), "personal", "/tmp/personal").
		Return(storage.VaultRecord{ID: "v1", Name: "personal", RootPath: "/tmp/personal"}, nil)
	mockVaultRepo.EXPECT().
		GetOrCreateByName(gomock.Any(), "work", "/tmp/work").
		Return(storage.VaultRecord{ID: "v2", Name: "work", RootPath: "/tmp/work"}, nil)

	manager, err := NewManager(context.Background(), mockVaultRepo, "/tmp/work", "/tmp/personal/")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	vaults := manager.Vaults()
	if len(vaults) != 2 || vaults[0].Name != "personal" || vaults[1].Name != "work" {
		t.Errorf("Vaults() = %+v, want personal then work", vaults)
	}
}

func TestNewManager_Error(t *testing.T) {
	tests := []struct {
		name  string
		roots []string
		setup func(m *mocks.MockVaultStore)
	}{
		{
			name:  "store error",
			roots: []string{"/tmp/personal"},
			setup: func(m *mocks.MockVaultStore) {
				m.EXPECT().GetOrCreateByName(gomock.Any(), "personal", "/tmp/personal").
					Return(storage.VaultRecord{}, storage.ErrNotFound)
			},
		},
		{
			name:  "duplicate base name",
			roots: []string{"/a/notes", "/b/notes"},
			setup: func(m *mocks.MockVaultStore) {
				m.EXPECT().GetOrCreateByName(gomock.Any(), "notes", "/a/notes").
					Return(storage.VaultRecord{ID: "v1", Name: "notes", RootPath: "/a/notes"}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockVaultRepo := mocks.NewMockVaultStore(ctrl)
			tt.setup(mockVaultRepo)

			manager, err := NewManager(context.Background(), mockVaultRepo, tt.roots...)
			if err == nil {
				t.Error("NewManager() expected error, got nil")
			}
			if manager != nil {
				t.Error("NewManager() should return nil on error")
			}
		})
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockVaultRepo := mocks.NewMockVaultStore(ctrl)

	mockVaultRepo.EXPECT().
		GetOrCreateByName(gomock.Any(), "personal", "/tmp/personal").
		Return(storage.VaultRecord{ID: "v1", Name: "personal", RootPath: "/tmp/personal"}, nil)
	mockVaultRepo.EXPECT().
		GetOrCreateByName(gomock.Any(), "work", "/tmp/work").
		Return(storage.VaultRecord{ID: "v2", Name: "work", RootPath: "/tmp/work"}, nil)

	manager, err := NewManager(context.Background(), mockVaultRepo, "/tmp/personal", "/tmp/work")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return manager
}

func TestManager_Lookup(t *testing.T) {
	manager := newTestManager(t)

	tests := []struct {
		name    string
		lookup  func() (storage.VaultRecord, error)
		wantID  string
		wantErr bool
	}{
		{
			name:   "by name",
			lookup: func() (storage.VaultRecord, error) { return manager.VaultByName("personal") },
			wantID: "v1",
		},
		{
			name:    "unknown name",
			lookup:  func() (storage.VaultRecord, error) { return manager.VaultByName("nonexistent") },
			wantErr: true,
		},
		{
			name:   "by id",
			lookup: func() (storage.VaultRecord, error) { return manager.VaultByID("v2") },
			wantID: "v2",
		},
		{
			name:    "unknown id",
			lookup:  func() (storage.VaultRecord, error) { return manager.VaultByID("v9") },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault, err := tt.lookup()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if vault.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", vault.ID, tt.wantID)
			}
		})
	}
}

func TestManager_AbsPath(t *testing.T) {
	manager := newTestManager(t)

	tests := []struct {
		name    string
		vaultID string
		relPath string
		want    string
	}{
		{name: "personal vault", vaultID: "v1", relPath: "notes/test.md", want: "/tmp/personal/notes/test.md"},
		{name: "work vault", vaultID: "v2", relPath: "projects/doc.md", want: "/tmp/work/projects/doc.md"},
		{name: "root level file", vaultID: "v1", relPath: "root.md", want: "/tmp/personal/root.md"},
		{name: "non-existent vault", vaultID: "v999", relPath: "test.md", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := manager.AbsPath(tt.vaultID, tt.relPath); got != tt.want {
				t.Errorf("AbsPath(%q, %q) = %q, want %q", tt.vaultID, tt.relPath, got, tt.want)
			}
		})
	}
}
