// Package gitutil locates the enclosing git repository.
package gitutil

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/go-git/go-git/v5"
)

var log = logger.New("gitutil:gitutil")

// ErrNotRepository is returned when start is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// FindRepoRoot returns the top-level directory of the work tree containing
// start, searching parent directories for .git.
func FindRepoRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			log.Printf("No repository found above %s", abs)
			return "", ErrNotRepository
		}
		return "", fmt.Errorf("failed to open repository at %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no work tree to scan.
		return "", fmt.Errorf("failed to open work tree: %w", err)
	}

	root := wt.Filesystem.Root()
	log.Printf("Repository root for %s: %s", abs, root)
	return root, nil
}

// RootOrDir returns the repository root for dir, or dir itself when it is not
// inside a repository.
func RootOrDir(dir string) string {
	root, err := FindRepoRoot(dir)
	if err != nil {
		log.Printf("Falling back to %s: %v", dir, err)
		return dir
	}
	return root
}
