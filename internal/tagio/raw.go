package tagio

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// RawFingerprint reads the fingerprint tag with a second, independent tag
// parser. The verify pass uses it so a Store write bug cannot vouch for
// itself.
func RawFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return "", fmt.Errorf("parse tags: %w", err)
	}
	for k, v := range m.Raw() {
		switch val := v.(type) {
		case string:
			if fingerprintKey(k) {
				return strings.TrimSpace(val), nil
			}
		case []string:
			if fingerprintKey(k) && len(val) > 0 {
				return strings.TrimSpace(val[0]), nil
			}
		case *tag.Comm:
			// ID3v2 stores custom keys in the frame description.
			if fingerprintKey(val.Description) {
				return strings.TrimSpace(val.Text), nil
			}
		}
	}
	return "", nil
}

// fingerprintKey matches the reserved key in every raw form the containers
// produce: bare, or namespaced like MP4 freeform atoms.
func fingerprintKey(k string) bool {
	k = strings.ToUpper(k)
	return k == FingerprintTag || strings.HasSuffix(k, ":"+FingerprintTag)
}
