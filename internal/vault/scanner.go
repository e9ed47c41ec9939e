package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ScannedFile is a markdown file found during vault scanning.
type ScannedFile struct {
	VaultID string
	FileID  string
	RelPath string // relative to the vault root, slash separated
	Folder  string // RelPath without the file name, "" at the root
	Name    string // RelPath without the extension
	AbsPath string
}

// NewScannedFile describes the file at relPath inside a vault. relPath is
// slash separated.
func NewScannedFile(vaultID, relPath, absPath string) ScannedFile {
	folder := path.Dir(relPath)
	if folder == "." {
		folder = ""
	}
	return ScannedFile{
		VaultID: vaultID,
		FileID:  FileID(vaultID, relPath),
		RelPath: relPath,
		Folder:  folder,
		Name:    strings.TrimSuffix(relPath, path.Ext(relPath)),
		AbsPath: absPath,
	}
}

// Read returns the file content.
func (f ScannedFile) Read() (string, error) {
	b, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", f.AbsPath, err)
	}
	return string(b), nil
}

// FileID derives a stable file id from the vault and relative path, so
// rescanning a vault maps every file onto the same row.
func FileID(vaultID, relPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(vaultID+"/"+relPath)).String()
}

// ScanAll scans all vaults and returns every markdown file found. Hidden
// directories such as .obsidian and .git are skipped.
func (m *Manager) ScanAll(ctx context.Context) ([]ScannedFile, error) {
	var scannedFiles []ScannedFile

	for _, vault := range m.Vaults() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := filepath.WalkDir(vault.RootPath, func(absPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("failed to access path %s: %w", absPath, err)
			}
			if d.IsDir() {
				if absPath != vault.RootPath && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(absPath), ".md") {
				return nil
			}

			relPath, err := filepath.Rel(vault.RootPath, absPath)
			if err != nil {
				return fmt.Errorf("failed to compute relative path for %s: %w", absPath, err)
			}
			scannedFiles = append(scannedFiles, NewScannedFile(vault.ID, filepath.ToSlash(relPath), absPath))
			return nil
		})
		if err != nil {
			return scannedFiles, fmt.Errorf("failed to scan vault %s: %w", vault.Name, err)
		}
	}

	return scannedFiles, nil
}
