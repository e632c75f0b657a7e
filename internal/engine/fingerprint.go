package engine

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// fingerprintLen is the hex length of a stored fingerprint. Collisions
// would need ~2^32 files in one library; tag space is precious.
const fingerprintLen = 16

func hashFileInto(h *blake3.Hasher, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	return nil
}

// HashFile computes the BLAKE3 hash of the file at path, returning the
// hex-encoded digest.
func HashFile(path string) (string, error) {
	h := blake3.New()
	if err := hashFileInto(h, path); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint digests the file's bytes followed by the encoder options and
// returns a truncated hex string. Folding the options in means a quality
// change re-transcodes every file even though the sources are untouched.
func Fingerprint(path string, encoderOpts []string) (string, error) {
	h := blake3.New()
	if err := hashFileInto(h, path); err != nil {
		return "", err
	}
	if _, err := h.Write([]byte(strings.Join(encoderOpts, " "))); err != nil {
		return "", fmt.Errorf("hash encoder options: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil))[:fingerprintLen], nil
}
