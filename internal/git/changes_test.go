package git

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGit answers git invocations from a table keyed by the joined args
type scriptedGit struct {
	responses map[string]string
	calls     []string
}

func (s *scriptedGit) run(_ context.Context, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	s.calls = append(s.calls, key)
	out, ok := s.responses[key]
	if !ok {
		return nil, errors.New("exit status 128")
	}
	return []byte(out), nil
}

func newScripted(base, head string, responses map[string]string) (*ChangeDetector, *scriptedGit) {
	s := &scriptedGit{responses: responses}
	cd := NewChangeDetector("", base, head)
	cd.git = s.run
	return cd, s
}

func TestChangedFiles_UnionSortedDeduplicated(t *testing.T) {
	cd, _ := newScripted("main", "", map[string]string{
		"rev-parse --git-dir":          ".git\n",
		"diff --name-only":             "src/main.rs\nREADME.md\n",
		"diff --cached --name-only":    "Cargo.toml\n",
		"diff --name-only main...HEAD": "src/main.rs\ndocker/Dockerfile\n\n",
	})

	files, err := cd.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Cargo.toml", "README.md", "docker/Dockerfile", "src/main.rs"}, files)
}

func TestChangedFiles_FallsBackToOrigin(t *testing.T) {
	cd, _ := newScripted("develop", "feature", map[string]string{
		"rev-parse --git-dir":                       ".git\n",
		"diff --name-only origin/develop...feature": "a.json\n",
	})

	files, err := cd.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json"}, files)
}

func TestChangedFiles_FallsBackToMergeBase(t *testing.T) {
	cd, s := newScripted("", "", map[string]string{
		"rev-parse --git-dir":          ".git\n",
		"merge-base HEAD main":         "abc123\n",
		"diff --name-only abc123 HEAD": "x/src/y.go\n",
	})

	files, err := cd.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x/src/y.go"}, files)
	assert.Contains(t, s.calls, "merge-base --fork-point main")
}

func TestChangedFiles_NoChanges(t *testing.T) {
	cd, _ := newScripted("main", "", map[string]string{
		"rev-parse --git-dir": ".git\n",
	})

	files, err := cd.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestChangedFiles_NotARepository(t *testing.T) {
	cd, _ := newScripted("main", "", map[string]string{})

	_, err := cd.ChangedFiles(context.Background())
	assert.ErrorContains(t, err, "not a git repository")
}

func TestCurrentBranchAndHeadCommit(t *testing.T) {
	cd, _ := newScripted("main", "v1", map[string]string{
		"rev-parse --abbrev-ref HEAD": "feature/login\n",
		"rev-parse v1":                "9f1c2e3d4b5a\n",
	})

	branch, err := cd.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "feature/login", branch)

	commit, err := cd.HeadCommit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9f1c2e3d4b5a", commit)

	broken, _ := newScripted("main", "", map[string]string{})
	_, err = broken.HeadCommit(context.Background())
	assert.ErrorContains(t, err, "failed to resolve HEAD")
	_, err = broken.CurrentBranch(context.Background())
	assert.Error(t, err)
}
