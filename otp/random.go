package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"strings"
)

// BackupAlphabet omits glyphs that are easy to misread (0/O, 1/I).
const BackupAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func cryptoRandomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func randomString(alphabet string, length int, randomIndex func(int) (int, error)) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := randomIndex(len(alphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n])
	}
	return b.String(), nil
}

func formatBackupCode(code string) string {
	if len(code) < 8 {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + "-" + code[mid:]
}

func canonicalBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, " ", "")
}

// codeDigest binds a code to its identity so equal codes for different
// identities never share a digest.
func codeDigest(identity, code string) [32]byte {
	data := make([]byte, 0, len(identity)+1+len(code))
	data = append(data, identity...)
	data = append(data, 0)
	data = append(data, code...)
	return sha256.Sum256(data)
}
