package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/kiranshivaraju/noisegate/pkg/models"
)

const (
	// DefaultSignatureLength is the number of hex characters kept from the digest.
	DefaultSignatureLength = 12
	maxSignatureLength     = sha256.Size * 2
)

// Fingerprinter derives stable signatures from an event's grouping key.
// Zero value uses DefaultSignatureLength.
type Fingerprinter struct {
	Length int
}

// NewFingerprinter returns a Fingerprinter keeping length hex characters.
// Out-of-range lengths fall back to the default or the full digest.
func NewFingerprinter(length int) Fingerprinter {
	return Fingerprinter{Length: length}
}

// Fingerprint returns the signature for e and the representative pattern
// used when the signature creates a new group. Alerts group on
// name + severity; log lines group on their normalized message.
func (f Fingerprinter) Fingerprint(e models.Event) (signature, pattern string, err error) {
	var key string
	switch e.Kind {
	case models.KindAlert:
		pattern = e.Name
		key = e.Name + "|" + e.Severity.String()
	case models.KindLogLine:
		pattern = Normalize(e.Message)
		key = pattern
	default:
		return "", "", fmt.Errorf("%w: %d", models.ErrUnknownEventKind, int(e.Kind))
	}
	return f.hash(key), pattern, nil
}

func (f Fingerprinter) hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	full := hex.EncodeToString(sum[:])
	return full[:f.length()]
}

func (f Fingerprinter) length() int {
	switch {
	case f.Length <= 0:
		return DefaultSignatureLength
	case f.Length > maxSignatureLength:
		return maxSignatureLength
	default:
		return f.Length
	}
}
