package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	trackingPrefix   = "JM-"
	trackingLength   = 6
	trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeGenerator produces human-facing tracking codes.
type CodeGenerator func() (string, error)

// NewTrackingCode returns JM- followed by six random alphanumerics (36^6 codes).
func NewTrackingCode() (string, error) {
	var b strings.Builder
	b.WriteString(trackingPrefix)
	max := big.NewInt(int64(len(trackingAlphabet)))
	for i := 0; i < trackingLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("tracking code: %w", err)
		}
		b.WriteByte(trackingAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeTrackingCode upper-cases and trims user input; codes typed without the prefix are accepted.
func NormalizeTrackingCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code != "" && !strings.HasPrefix(code, trackingPrefix) {
		code = trackingPrefix + code
	}
	return code
}

func ValidTrackingCode(code string) bool {
	if !strings.HasPrefix(code, trackingPrefix) || len(code) != len(trackingPrefix)+trackingLength {
		return false
	}
	for _, r := range code[len(trackingPrefix):] {
		if !strings.ContainsRune(trackingAlphabet, r) {
			return false
		}
	}
	return true
}
