package services

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	joinCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	joinCodeLength      = 6
	maxJoinCodeAttempts = 8
)

// JoinCodeGenerator returns a fresh candidate code. Uniqueness is enforced
// by the store, not here.
type JoinCodeGenerator func() (string, error)

// RandomJoinCode draws joinCodeLength characters from an alphabet without
// the easily confused 0/O and 1/I.
func RandomJoinCode() (string, error) {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	buf := make([]byte, joinCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// NormalizeJoinCode trims and upper-cases user input.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
