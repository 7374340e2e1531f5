package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDefinition = `
apiVersion: litejob.sourceplane.io/v1
kind: JobDefinition
metadata:
  name: identity-server-rs
spec:
  trigger:
    gitPush:
      pathFilter:
        exclude: ["README.md"]
        include: ["**/src/**"]
  resources:
    cpu: 4
    memory: 3000mb
  build:
    context: .
    file: ./docker/Dockerfile
    labels:
      vendor: Demius Academius from Moldova
  push:
    repository: registry.example.com/backend/identity-server-rs
    tags: ["version-0.$JB_SPACE_EXECUTION_NUMBER", "$BRANCH"]
`

func TestValidator_ValidateDefinition(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "valid definition", doc: validDefinition},
		{
			name:    "wrong kind",
			doc:     "apiVersion: litejob.sourceplane.io/v1\nkind: Pipeline\nmetadata: {name: x}\nspec: {trigger: {gitPush: {}}, push: {repository: r}}\n",
			wantErr: true,
		},
		{
			name:    "missing push",
			doc:     "apiVersion: litejob.sourceplane.io/v1\nkind: JobDefinition\nmetadata: {name: x}\nspec: {trigger: {gitPush: {}}}\n",
			wantErr: true,
		},
		{
			name:    "unknown spec field",
			doc:     "apiVersion: litejob.sourceplane.io/v1\nkind: JobDefinition\nmetadata: {name: x}\nspec: {trigger: {gitPush: {}}, push: {repository: r}, deploy: {}}\n",
			wantErr: true,
		},
		{
			name:    "label values must be strings",
			doc:     "apiVersion: litejob.sourceplane.io/v1\nkind: JobDefinition\nmetadata: {name: x}\nspec: {trigger: {gitPush: {}}, push: {repository: r}, build: {labels: {a: [1]}}}\n",
			wantErr: true,
		},
		{
			name:    "empty document",
			doc:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDefinition([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_ValidatePlan(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	valid := `{"apiVersion":"litejob.sourceplane.io/v1","kind":"Plan","jobs":[
		{"id":"app@1","name":"app","images":["example.com/app:1"],
		 "steps":[{"name":"build","kind":"build","args":["docker","build","."]}]}]}`
	assert.NoError(t, v.ValidatePlan([]byte(valid)))

	noSteps := `{"apiVersion":"litejob.sourceplane.io/v1","kind":"Plan","jobs":[
		{"id":"app@1","name":"app","images":[],"steps":[]}]}`
	assert.Error(t, v.ValidatePlan([]byte(noSteps)))
}

func TestToJSONValue(t *testing.T) {
	value, err := ToJSONValue([]byte("a: 1\nb: [x, y]\n"))
	require.NoError(t, err)

	m, ok := value.(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, m, 2)

	_, err = ToJSONValue([]byte("a: [unclosed"))
	assert.Error(t, err)
}
