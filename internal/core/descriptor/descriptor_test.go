package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	coreerrors "scriptlib/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGenerator() *Generator {
	return NewGenerator(Options{
		Actor:     "external",
		Timestamp: "2023-01-01T00:00:00Z",
		HintScope: 2,
		Signature: "b0559c76c17737786bda6d382e91f682211c23721930003c538aeef6a42a577d",
	})
}

func TestRender_HostLayout(t *testing.T) {
	t.Parallel()

	data, err := testGenerator().Render(nil)
	require.NoError(t, err)

	want := `{
  "scope": "A",
  "version": 1,
  "restricted": false,
  "overridable": true,
  "files": [
    "code.py"
  ],
  "attributes": {
    "lastModification": {
      "actor": "external",
      "timestamp": "2023-01-01T00:00:00Z"
    },
    "hintScope": 2,
    "lastModificationSignature": "b0559c76c17737786bda6d382e91f682211c23721930003c538aeef6a42a577d"
  }
}`
	assert.Equal(t, want, string(data))
}

func TestRender_TagRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := testGenerator().Render(&Tag{Strategy: "alias", Roots: []string{"pkg"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	res, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "alias", res.Strategy())
	assert.Equal(t, []string{"pkg"}, res.Attributes.Scriptlib.Roots)
	assert.Equal(t, []string{CodeFile}, res.Files)
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Read(filepath.Join(dir, "missing.json"))
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeIO))

	bad := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Read(bad)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeValidationError))
}

func TestStrategy_Untagged(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", testGenerator().Build(nil).Strategy())
}
