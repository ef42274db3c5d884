package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet omits 0/O and 1/I/L so codes survive being read aloud at a door.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// BookingCodeLength is the number of characters in a booking code.
const BookingCodeLength = 8

// NewBookingCode returns a random human-readable code such as "K7QX-M2PA".
func NewBookingCode() (string, error) {
	s, err := RandomString(BookingCodeLength)
	if err != nil {
		return "", err
	}
	return s[:4] + "-" + s[4:], nil
}

// RandomString returns n characters drawn uniformly from the booking code alphabet.
func RandomString(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random: %w", err)
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
