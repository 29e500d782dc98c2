package checkout

import "math/rand/v2"

const (
	referenceLength   = 16
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewReference returns a random 16-character alphanumeric order reference.
// Collisions are unlikely but not impossible; the orders table rejects them.
func NewReference() string {
	b := make([]byte, referenceLength)
	for i := range b {
		b[i] = referenceAlphabet[rand.IntN(len(referenceAlphabet))]
	}
	return string(b)
}
