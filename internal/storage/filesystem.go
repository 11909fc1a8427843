package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andyleap/donna/internal/models"
)

type FilesystemStorage struct {
	basePath string
}

func NewFilesystemStorage(basePath string) (*FilesystemStorage, error) {
	// Ensure the base path exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path %s: %w", basePath, err)
	}

	usersPath := filepath.Join(basePath, "users")
	if err := os.MkdirAll(usersPath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create users path: %w", err)
	}

	return &FilesystemStorage{
		basePath: basePath,
	}, nil
}

func (f *FilesystemStorage) userPath(userID int64) string {
	return filepath.Join(f.basePath, "users", strconv.FormatInt(userID, 10)+".json")
}

func (f *FilesystemStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	data, err := os.ReadFile(f.userPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read user file: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

func (f *FilesystemStorage) SaveUser(ctx context.Context, user *models.User) error {
	userPath := f.userPath(user.ID)

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	// Write then rename so a crash never leaves a torn record.
	tmp, err := os.CreateTemp(filepath.Dir(userPath), ".user-*")
	if err != nil {
		return fmt.Errorf("failed to create temp user file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write user file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close user file: %w", err)
	}
	if err := os.Rename(tmp.Name(), userPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace user file: %w", err)
	}

	return nil
}

func (f *FilesystemStorage) UserExists(ctx context.Context, userID int64) (bool, error) {
	_, err := os.Stat(f.userPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check user file: %w", err)
	}

	return true, nil
}

func (f *FilesystemStorage) CountUsers(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(filepath.Join(f.basePath, "users"))
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			count++
		}
	}
	return count, nil
}
