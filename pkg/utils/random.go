package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const base36Charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomBase36 generate a random lowercase base36 string
func RandomBase36(length int) string {
	result := make([]byte, length)
	max := big.NewInt(int64(len(base36Charset)))
	for i := range result {
		num, _ := rand.Int(rand.Reader, max)
		result[i] = base36Charset[num.Int64()]
	}
	return string(result)
}

// MaskString mask string (for sensitive information display)
func MaskString(str string, start, end int, mask rune) string {
	runes := []rune(str)
	if len(runes) <= start+end {
		return strings.Repeat(string(mask), len(runes))
	}

	for i := start; i < len(runes)-end; i++ {
		runes[i] = mask
	}
	return string(runes)
}

// MaskEmail mask email
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	username := parts[0]
	if len(username) <= 2 {
		return strings.Repeat("*", len(username)) + "@" + parts[1]
	}
	return MaskString(username, 1, 1, '*') + "@" + parts[1]
}
