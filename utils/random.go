package utils

import (
	"crypto/rand"
	"math/big"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateBase36 returns length uniformly random characters from [0-9A-Z].
func GenerateBase36(length int) (string, error) {
	limit := big.NewInt(int64(len(base36)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = base36[n.Int64()]
	}
	return string(code), nil
}
