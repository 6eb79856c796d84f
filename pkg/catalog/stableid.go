package catalog

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// Base62 alphabet with I, O and l removed so IDs survive hand transcription
// from a printed QR label.
const stableIDAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"

const stableIDLength = 6

// StableID derives the short deep-link identifier for a manufacturer/SKU
// pair. The derivation is deterministic: SHA-256 of "MFR:CODE", first four
// bytes rendered in the reduced base62 alphabet.
func StableID(manufacturer, code string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", manufacturer, code)))
	num := binary.BigEndian.Uint32(sum[:4])
	base := uint32(len(stableIDAlphabet))

	chars := make([]byte, stableIDLength)
	for i := stableIDLength - 1; i >= 0; i-- {
		chars[i] = stableIDAlphabet[num%base]
		num /= base
	}
	return string(chars)
}

// UniqueStableID derives a stable ID and, on collision with an already
// assigned ID, bumps the last character until the result is unused.
func UniqueStableID(manufacturer, code string, existing map[string]bool) (string, error) {
	base := StableID(manufacturer, code)
	lastIndex := strings.IndexByte(stableIDAlphabet, base[len(base)-1])
	id := base
	counter := 0
	for existing[id] {
		counter++
		if counter > len(stableIDAlphabet) {
			return "", fmt.Errorf("unable to resolve stable ID collision for %s:%s", manufacturer, code)
		}
		next := stableIDAlphabet[(lastIndex+counter)%len(stableIDAlphabet)]
		id = base[:len(base)-1] + string(next)
	}
	return id, nil
}
