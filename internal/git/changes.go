package git

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// gitFunc runs a git subcommand and returns its stdout
type gitFunc func(ctx context.Context, args ...string) ([]byte, error)

// ChangeDetector detects files that have changed in git
type ChangeDetector struct {
	baseBranch string // branch to compare against (e.g., "main", "develop")
	headRef    string // ref to compare (default: HEAD)
	dir        string
	git        gitFunc
}

// NewChangeDetector creates a new change detector rooted at dir
func NewChangeDetector(dir, baseBranch, headRef string) *ChangeDetector {
	cd := &ChangeDetector{
		baseBranch: baseBranch,
		headRef:    headRef,
		dir:        dir,
	}
	cd.git = cd.exec
	return cd
}

func (cd *ChangeDetector) exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = cd.dir
	return cmd.Output()
}

// ChangedFiles returns the union of unstaged, staged and base...head changes,
// sorted and without duplicates.
func (cd *ChangeDetector) ChangedFiles(ctx context.Context) ([]string, error) {
	if _, err := cd.git(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("not a git repository (%s): %w", cd.dirName(), err)
	}

	filesMap := make(map[string]bool)

	// Unstaged modifications, then staged changes
	for _, args := range [][]string{
		{"diff", "--name-only"},
		{"diff", "--cached", "--name-only"},
	} {
		output, err := cd.git(ctx, args...)
		if err == nil {
			addLines(filesMap, output)
		}
	}

	// Committed changes relative to the base branch
	output, err := cd.branchDiff(ctx)
	if err == nil {
		addLines(filesMap, output)
	}

	result := make([]string, 0, len(filesMap))
	for f := range filesMap {
		result = append(result, f)
	}
	sort.Strings(result)
	return result, nil
}

// branchDiff tries base...head, then origin/base...head, then a merge-base diff
func (cd *ChangeDetector) branchDiff(ctx context.Context) ([]byte, error) {
	compareRef := cd.baseBranch
	if compareRef == "" {
		compareRef = "main"
	}
	head := cd.head()

	output, err := cd.git(ctx, "diff", "--name-only", compareRef+"..."+head)
	if err == nil {
		return output, nil
	}

	// Common in CI where only the remote-tracking ref exists
	output, err = cd.git(ctx, "diff", "--name-only", "origin/"+compareRef+"..."+head)
	if err == nil {
		return output, nil
	}

	// Detached HEAD or shallow checkouts
	for _, args := range [][]string{
		{"merge-base", "--fork-point", compareRef},
		{"merge-base", head, compareRef},
		{"merge-base", head, "origin/" + compareRef},
	} {
		mergeBase, mbErr := cd.git(ctx, args...)
		if mbErr != nil || len(strings.TrimSpace(string(mergeBase))) == 0 {
			continue
		}
		return cd.git(ctx, "diff", "--name-only", strings.TrimSpace(string(mergeBase)), head)
	}

	return nil, fmt.Errorf("cannot compare %s against %s: %w", head, compareRef, err)
}

// CurrentBranch returns the checked-out branch name, or "HEAD" when detached
func (cd *ChangeDetector) CurrentBranch(ctx context.Context) (string, error) {
	output, err := cd.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve current branch: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// HeadCommit returns the full commit SHA of the head ref
func (cd *ChangeDetector) HeadCommit(ctx context.Context) (string, error) {
	output, err := cd.git(ctx, "rev-parse", cd.head())
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", cd.head(), err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (cd *ChangeDetector) head() string {
	if cd.headRef == "" {
		return "HEAD"
	}
	return cd.headRef
}

func (cd *ChangeDetector) dirName() string {
	if cd.dir == "" {
		return "."
	}
	return cd.dir
}

func addLines(files map[string]bool, output []byte) {
	for _, f := range strings.Split(string(output), "\n") {
		f = strings.TrimSpace(f)
		if f != "" {
			files[f] = true
		}
	}
}
