package roomstore

import (
	"crypto/rand"
	"math/big"
)

const codeCollisionRetries = 8

// generateCode draws length characters uniformly from alphabet, retrying
// while taken reports a collision; on 8 consecutive collisions at the
// configured length, it widens to an 8-character code to guarantee progress.
// taken is called without the store lock held, so the caller re-checks the
// code index under the lock before inserting and draws again on a duplicate.
func generateCode(alphabet string, length int, taken func(string) bool) (string, error) {
	code, err := randomCode(alphabet, length)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < codeCollisionRetries && taken(code); attempt++ {
		code, err = randomCode(alphabet, length)
		if err != nil {
			return "", err
		}
	}
	if taken(code) {
		// Still colliding after the retry budget: widen to 8 characters,
		// which makes a further collision vanishingly unlikely.
		wide := length
		if wide < 8 {
			wide = 8
		}
		for {
			code, err = randomCode(alphabet, wide)
			if err != nil {
				return "", err
			}
			if !taken(code) {
				break
			}
		}
	}
	return code, nil
}

func randomCode(alphabet string, length int) (string, error) {
	buf := make([]byte, length)
	n := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}

// normalizeCode strips non-alphanumerics and truncates to length, matching
// the client-side input normalization described in the group-code format
// contract.
func normalizeCode(raw string, length int) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			out = append(out, c)
		}
	}
	if len(out) > length {
		out = out[:length]
	}
	return string(out)
}
