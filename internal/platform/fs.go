package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirCaches maps Cache Storage onto a directory: every subdirectory of Root is one named cache.
type DirCaches struct {
	Root string
}

func (d DirCaches) Keys(_ context.Context) ([]string, error) {
	return listEntries(d.Root, true)
}

func (d DirCaches) Delete(_ context.Context, name string) (bool, error) {
	path, err := entryPath(d.Root, name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	return true, nil
}

// DirDatabases maps IndexedDB onto a directory: every entry of Root is one database.
type DirDatabases struct {
	Root string
}

func (d DirDatabases) Databases(_ context.Context) ([]string, error) {
	return listEntries(d.Root, false)
}

func (d DirDatabases) DeleteDatabase(_ context.Context, name string) error {
	path, err := entryPath(d.Root, name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("delete database %q: %w", name, err)
	}
	return nil
}

func listEntries(root string, dirsOnly bool) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if dirsOnly && !e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func entryPath(root, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid entry name %q", name)
	}
	return filepath.Join(root, name), nil
}

var (
	_ CacheManager    = DirCaches{}
	_ DatabaseManager = DirDatabases{}
)
