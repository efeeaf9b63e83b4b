package sandwich

import (
	"crypto/rand"
	"encoding/hex"
)

func randomHex(length int) string {
	if length <= 0 {
		return ""
	}

	buf := make([]byte, length)

	_, err := rand.Read(buf)
	if err != nil {
		return ""
	}

	return hex.EncodeToString(buf)
}
