package weights

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SHA-256 of "abc".
const abcSum = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestChecksum(t *testing.T) {
	sum, err := Checksum(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, abcSum, sum)

	path := filepath.Join(t.TempDir(), "w.model")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))
	sum, err = FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, abcSum, sum)

	_, err = FileChecksum(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVerifyChecksum(t *testing.T) {
	assert.NoError(t, VerifyChecksum(abcSum, strings.ToUpper(abcSum)+"\n"))
	assert.ErrorIs(t, VerifyChecksum(abcSum, strings.Repeat("0", 64)), ErrChecksumMismatch)
}
