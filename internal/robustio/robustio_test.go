package robustio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(fpath, []byte("content"), 0644))

	b, err := ReadFile(fpath)
	require.NoError(t, err)
	assert.Equal(t, "content", string(b))
}

func TestReadFileNotExist(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
