package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmaeda/mailhub/internal/model"
)

// CreateFolder inserts a folder scoped to a provider key. Duplicate
// (provider, name) pairs are rejected.
func (s *SQLiteStore) CreateFolder(ctx context.Context, provider, name, folderType string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("folder name must not be empty")
	}
	if folderType == "" {
		folderType = model.FolderTypeCustom
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (provider, folder_name, folder_type)
		VALUES (?, ?, ?)`,
		provider, name, folderType)
	if err != nil {
		return fmt.Errorf("creating folder %s/%s: %w", provider, name, err)
	}
	return nil
}

// ListFolders returns the folders of a provider key, system folders first.
func (s *SQLiteStore) ListFolders(ctx context.Context, provider string) ([]model.Folder, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT folder_id, provider, folder_name, folder_type, created_at
		FROM folders WHERE provider = ?
		ORDER BY folder_type, folder_name`,
		provider)
	if err != nil {
		return nil, fmt.Errorf("querying folders for %s: %w", provider, err)
	}
	defer rows.Close()

	var folders []model.Folder
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.Provider, &f.Name, &f.Type, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning folder row: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// DeleteFolder removes a folder definition. Its messages move back to the
// default location rather than being deleted, and any promo rule routing
// into it keeps its history with the target cleared. Atomic.
func (s *SQLiteStore) DeleteFolder(ctx context.Context, provider, name string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if provider == model.ProviderPromo {
		if _, err := tx.ExecContext(ctx,
			"UPDATE messages SET folder = NULL WHERE is_promo = 1 AND folder = ?", name); err != nil {
			return fmt.Errorf("reassigning messages from %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE promo_rules SET target_folder = NULL WHERE target_folder = ?", name); err != nil {
			return fmt.Errorf("clearing rule targets for %s: %w", name, err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"UPDATE messages SET folder = NULL WHERE provider = ? AND folder = ?", provider, name); err != nil {
			return fmt.Errorf("reassigning messages from %s/%s: %w", provider, name, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM folders WHERE provider = ? AND folder_name = ?", provider, name); err != nil {
		return fmt.Errorf("deleting folder %s/%s: %w", provider, name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing folder delete: %w", err)
	}
	return nil
}

// RenameFolder renames a folder and relabels its messages in one
// transaction.
func (s *SQLiteStore) RenameFolder(ctx context.Context, provider, oldName, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return fmt.Errorf("folder name must not be empty")
	}
	if oldName == newName {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE folders SET folder_name = ? WHERE provider = ? AND folder_name = ?",
		newName, provider, oldName); err != nil {
		return fmt.Errorf("renaming folder %s/%s: %w", provider, oldName, err)
	}

	if provider == model.ProviderPromo {
		if _, err := tx.ExecContext(ctx,
			"UPDATE messages SET folder = ? WHERE is_promo = 1 AND folder = ?",
			newName, oldName); err != nil {
			return fmt.Errorf("relabeling messages in %s: %w", oldName, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE promo_rules SET target_folder = ? WHERE target_folder = ?",
			newName, oldName); err != nil {
			return fmt.Errorf("retargeting rules for %s: %w", oldName, err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"UPDATE messages SET folder = ? WHERE provider = ? AND folder = ?",
			newName, provider, oldName); err != nil {
			return fmt.Errorf("relabeling messages in %s/%s: %w", provider, oldName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing folder rename: %w", err)
	}
	return nil
}
