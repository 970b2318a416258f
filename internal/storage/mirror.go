// Package storage maintains an on-disk git mirror of the wiki content,
// giving operators a greppable, cloneable copy of every page.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrPathTraversal marks a page path escaping the mirror root.
var ErrPathTraversal = errors.New("path traversal detected")

// mirrorSignature is the committer identity of mirror commits.
var mirrorSignature = object.Signature{
	Name:  "ottmwiki",
	Email: "mirror@ottmwiki.invalid",
}

// Mirror is a git repository holding one file per page.
type Mirror struct {
	path string
	repo *git.Repository
	mu   sync.Mutex
}

// OpenMirror opens the mirror repository at path, initializing it on first
// use.
func OpenMirror(path string) (*Mirror, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	repo, err := git.PlainOpen(absPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(absPath, 0o755); err != nil {
			return nil, err
		}
		repo, err = git.PlainInit(absPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mirror: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("no valid git repository in '%s': %w", absPath, err)
	}
	return &Mirror{path: absPath, repo: repo}, nil
}

// Path returns the mirror root.
func (m *Mirror) Path() string {
	return m.path
}

// validatePath checks that a page file path stays inside the mirror root.
func (m *Mirror) validatePath(filename string) error {
	cleaned := filepath.Clean(filename)
	if cleaned == "" || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return ErrPathTraversal
	}
	joined := filepath.Join(m.path, cleaned)
	if !strings.HasPrefix(joined, m.path+string(filepath.Separator)) {
		return ErrPathTraversal
	}
	return nil
}

// WritePage stages the content of one page. The caller commits via Commit
// once a batch is written.
func (m *Mirror) WritePage(filename, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validatePath(filename); err != nil {
		return err
	}
	full := filepath.Join(m.path, filepath.Clean(filename))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if existing, err := os.ReadFile(full); err == nil && string(existing) == content {
		return nil
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return err
	}

	worktree, err := m.repo.Worktree()
	if err != nil {
		return err
	}
	_, err = worktree.Add(filepath.Clean(filename))
	return err
}

// RemovePage stages the deletion of one page file.
func (m *Mirror) RemovePage(filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validatePath(filename); err != nil {
		return err
	}
	full := filepath.Join(m.path, filepath.Clean(filename))
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return nil
	}
	worktree, err := m.repo.Worktree()
	if err != nil {
		return err
	}
	_, err = worktree.Remove(filepath.Clean(filename))
	return err
}

// Commit records all staged changes. It is a no-op on a clean worktree and
// reports whether a commit was created.
func (m *Mirror) Commit(message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	worktree, err := m.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := worktree.Status()
	if err != nil {
		return false, err
	}
	if status.IsClean() {
		return false, nil
	}

	sig := mirrorSignature
	sig.When = time.Now()
	_, err = worktree.Commit(message, &git.CommitOptions{Author: &sig})
	if err != nil {
		return false, fmt.Errorf("failed to commit mirror: %w", err)
	}
	return true, nil
}
