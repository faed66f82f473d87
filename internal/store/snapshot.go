package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// Snapshot serialization mirrors the dashboard's former file-backed
// registry, which rewrote the whole allow-list on every mutation. Export
// and Import give operators the same wholesale-file workflow without the
// web tier ever reading a stale in-process copy.

// Export writes the full allow-list as pretty-printed JSON.
func Export(ctx context.Context, s Store, fsys afero.Fs, path string) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}
	if users == nil {
		users = []AllowedUser{}
	}
	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fsys, path, append(b, '\n'), 0o600)
}

// Import replaces the allow-list with the file's contents in one
// transaction. The file must hold at least one admin entry so an import
// can never lock every administrator out.
func Import(ctx context.Context, s Store, fsys afero.Fs, path string) (int, error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return 0, err
	}
	var users []AllowedUser
	if err := json.Unmarshal(b, &users); err != nil {
		return 0, fmt.Errorf("parse snapshot: %w", err)
	}
	admins := 0
	for _, u := range users {
		if u.IsAdmin {
			admins++
		}
	}
	if admins == 0 {
		return 0, ErrLastAdmin
	}
	if err := s.ReplaceAll(ctx, users); err != nil {
		return 0, err
	}
	return len(users), nil
}
