package weights

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Checksum returns the hex encoded SHA-256 of everything r yields, without
// holding the stream in memory.
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileChecksum returns the hex encoded SHA-256 of the file at path.
func FileChecksum(path string) (string, error) {
	//nolint:gosec // G304: weight files live in an operator supplied directory
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Checksum(f)
}

// VerifyChecksum compares a computed checksum against the expected one,
// ignoring case. It returns ErrChecksumMismatch if they differ.
func VerifyChecksum(computed, expected string) error {
	if !strings.EqualFold(computed, strings.TrimSpace(expected)) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, computed, expected)
	}
	return nil
}
