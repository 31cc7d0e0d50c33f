package function

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const digestPrefix = "blake2b-256:"

var ErrDigestMismatch = errors.New("module digest mismatch")

// Digest returns the content digest of a module in the form blake2b-256:<hex>.
func Digest(code []byte) string {
	sum := blake2b.Sum256(code)
	return digestPrefix + hex.EncodeToString(sum[:])
}

// VerifyCode checks code against the pinned digest. Functions without a
// digest accept any content.
func (f Function) VerifyCode(code []byte) error {
	if f.Digest == "" {
		return nil
	}
	if !strings.HasPrefix(f.Digest, digestPrefix) {
		return fmt.Errorf("unsupported digest %q", f.Digest)
	}
	if got := Digest(code); got != strings.ToLower(f.Digest) {
		return fmt.Errorf("%w: %s: want %s, got %s", ErrDigestMismatch, f.Name, f.Digest, got)
	}
	return nil
}
