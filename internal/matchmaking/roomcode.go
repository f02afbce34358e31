package matchmaking

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// CodeAlphabet leaves out 0/O, 1/I/L so codes can be read aloud and typed back.
const CodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const CodeLength = 4

// NewRoomCode draws a random private room code.
func NewRoomCode() string {
	b := make([]byte, CodeLength)
	max := big.NewInt(int64(len(CodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = CodeAlphabet[n.Int64()]
	}
	return string(b)
}

// NormalizeCode canonicalizes user input and reports whether it can be a room code at all.
func NormalizeCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return code, false
	}
	for _, r := range code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return code, false
		}
	}
	return code, true
}
