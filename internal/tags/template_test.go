package tags

import (
	"strings"
	"testing"

	"github.com/sourceplane/litejob/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
		wantErr  error
	}{
		{
			name:     "execution number",
			template: "version-0.$N",
			vars:     map[string]string{"N": "42"},
			want:     "version-0.42",
		},
		{
			name:     "branch",
			template: "$BRANCH",
			vars:     map[string]string{"BRANCH": "main"},
			want:     "main",
		},
		{
			name:     "braced placeholder",
			template: "v${N}-rc",
			vars:     map[string]string{"N": "7"},
			want:     "v7-rc",
		},
		{
			name:     "literal tag",
			template: "latest",
			want:     "latest",
		},
		{
			name:     "branch with slash is sanitized",
			template: "$BRANCH",
			vars:     map[string]string{"BRANCH": "feature/login"},
			want:     "feature-login",
		},
		{
			name:     "leading dot stripped",
			template: ".$X",
			vars:     map[string]string{"X": "hidden"},
			want:     "hidden",
		},
		{
			name:     "unknown variable",
			template: "version-0.$MISSING",
			vars:     map[string]string{},
			wantErr:  ErrUnknownVariable,
		},
		{
			name:     "name stops at first non-name character",
			template: "$BRANCH-$N.x",
			vars:     map[string]string{"BRANCH": "main", "N": "3"},
			want:     "main-3.x",
		},
		{
			name:     "unterminated brace",
			template: "v${BRANCH",
			vars:     map[string]string{"BRANCH": "main"},
			wantErr:  ErrMalformedTemplate,
		},
		{
			name:     "empty braces",
			template: "a${}b",
			wantErr:  ErrMalformedTemplate,
		},
		{
			name:     "invalid braced name",
			template: "${1X}",
			vars:     map[string]string{"1X": "x"},
			wantErr:  ErrMalformedTemplate,
		},
		{
			name:     "positional parameter",
			template: "v$1",
			vars:     map[string]string{"1": "x"},
			wantErr:  ErrMalformedTemplate,
		},
		{
			name:     "double dollar",
			template: "v$$",
			wantErr:  ErrMalformedTemplate,
		},
		{
			name:     "dash parameter",
			template: "v$-",
			wantErr:  ErrMalformedTemplate,
		},
		{
			name:     "trailing dollar",
			template: "v1$",
			wantErr:  ErrMalformedTemplate,
		},
		{
			name:     "empty after substitution",
			template: "$EMPTY",
			vars:     map[string]string{"EMPTY": ""},
			wantErr:  ErrInvalidTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.template, tt.vars)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("version-0.$JB_SPACE_EXECUTION_NUMBER"))
	assert.NoError(t, Validate("${BRANCH}-$UNDEFINED_IS_FINE"))
	assert.ErrorIs(t, Validate("v${BRANCH"), ErrMalformedTemplate)
	assert.ErrorIs(t, Validate("a${}b"), ErrMalformedTemplate)
}

func TestVariables(t *testing.T) {
	event := model.PushEvent{
		Branch:          "refs/heads/main",
		Commit:          "9f1c2b3a4d5e6f",
		ExecutionNumber: 42,
	}

	vars := Variables("identity-server-rs", event, map[string]string{
		"BRANCH": "override-attempt",
		"EXTRA":  "x",
	})

	assert.Equal(t, "42", vars[VarExecutionNumber])
	assert.Equal(t, "42", vars[VarSpaceExecutionNumber])
	assert.Equal(t, "main", vars[VarBranch])
	assert.Equal(t, "9f1c2b3a4d5e6f", vars[VarCommit])
	assert.Equal(t, "9f1c2b3", vars[VarCommitShort])
	assert.Equal(t, "identity-server-rs", vars[VarJobName])
	assert.Equal(t, "x", vars["EXTRA"])
}

func TestResolveAll_OriginalTemplates(t *testing.T) {
	vars := Variables("identity-server-rs", model.PushEvent{Branch: "main", ExecutionNumber: 42})

	got, err := ResolveAll([]string{"version-0.$JB_SPACE_EXECUTION_NUMBER", "$BRANCH"}, vars)
	require.NoError(t, err)
	assert.Equal(t, []string{"version-0.42", "main"}, got)
}

func TestResolveAll_DropsDuplicates(t *testing.T) {
	vars := map[string]string{"BRANCH": "main"}

	got, err := ResolveAll([]string{"$BRANCH", "main", "latest"}, vars)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "latest"}, got)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "release-1.2", Sanitize("release/1.2"))
	assert.Equal(t, "a_b", Sanitize("a_b"))
	assert.Equal(t, "x", Sanitize("--x"))
	assert.Equal(t, "", Sanitize(""))
	assert.Len(t, Sanitize(strings.Repeat("a", 300)), maxTagLength)
}

func TestImageRef(t *testing.T) {
	repo := "acc-md.registry.jetbrains.space/p/backend/containers/identity-server-rs"

	ref, err := ImageRef(repo, "version-0.42")
	require.NoError(t, err)
	assert.Equal(t, repo+":version-0.42", ref)

	ref, err = ImageRef("nginx", "main")
	require.NoError(t, err)
	assert.Equal(t, "nginx:main", ref)

	_, err = ImageRef("Upper/Case", "main")
	assert.Error(t, err)
}

func TestValidateRepository(t *testing.T) {
	assert.NoError(t, ValidateRepository("registry.example.com:5000/team/app"))
	assert.Error(t, ValidateRepository("registry.example.com/team/app:v1"))
	assert.Error(t, ValidateRepository("not a repo"))
}

func TestImageRefs(t *testing.T) {
	vars := map[string]string{"BRANCH": "dev", "EXECUTION_NUMBER": "3"}

	resolved, refs, err := ImageRefs("example.com/app", []string{"version-0.$EXECUTION_NUMBER", "$BRANCH"}, vars)
	require.NoError(t, err)
	assert.Equal(t, []string{"version-0.3", "dev"}, resolved)
	assert.Equal(t, []string{"example.com/app:version-0.3", "example.com/app:dev"}, refs)
}
