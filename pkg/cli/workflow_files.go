package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/gitutil"
	"github.com/ci-shared/workflow-secrets/pkg/logger"
)

var workflowFilesLog = logger.New("cli:workflow_files")

// DefaultWorkflowsDir is scanned when no paths are given, relative to the
// repository root.
const DefaultWorkflowsDir = ".github/workflows"

// isWorkflowFileName reports whether name has a YAML workflow extension.
func isWorkflowFileName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}

// resolveWorkflowFiles expands args into the ordered list of files to scan.
// Directories contribute their direct .yml children, then their .yaml
// children, each sorted by name; files without those extensions are ignored.
// Paths that do not exist are kept so the scan reports them as read errors.
func resolveWorkflowFiles(args []string, baseDir string) ([]string, error) {
	if len(args) == 0 {
		dir := filepath.Join(gitutil.RootOrDir(baseDir), DefaultWorkflowsDir)
		workflowFilesLog.Printf("No paths given, using %s", dir)
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		args = []string{dir}
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		key := filepath.Clean(path)
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if seen[key] {
			return
		}
		seen[key] = true
		files = append(files, path)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err != nil && errors.Is(err, fs.ErrNotExist):
			if isWorkflowFileName(arg) {
				add(arg)
			}
		case err != nil:
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		case info.IsDir():
			dirFiles, err := listWorkflowDir(arg)
			if err != nil {
				return nil, err
			}
			for _, f := range dirFiles {
				add(f)
			}
		case isWorkflowFileName(arg):
			add(arg)
		default:
			workflowFilesLog.Printf("Ignoring non-YAML file: %s", arg)
		}
	}

	workflowFilesLog.Printf("Resolved %d workflow file(s) from %d argument(s)", len(files), len(args))
	return files, nil
}

func listWorkflowDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var yml, yaml []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yml":
			yml = append(yml, filepath.Join(dir, entry.Name()))
		case ".yaml":
			yaml = append(yaml, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(yml)
	sort.Strings(yaml)
	return append(yml, yaml...), nil
}

// watchDirs returns the directories whose changes trigger a rescan in watch
// mode: each directory argument and the parent of each file argument.
func watchDirs(args []string, files []string, baseDir string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		dir = filepath.Clean(dir)
		if seen[dir] {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	if len(args) == 0 {
		add(filepath.Join(gitutil.RootOrDir(baseDir), DefaultWorkflowsDir))
	}
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			add(arg)
		}
	}
	for _, f := range files {
		add(filepath.Dir(f))
	}
	return dirs
}
