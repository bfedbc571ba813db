package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/scheduler"
)

// HashVerifier implements Verifier by comparing a remote digest
// (obtained by whatever collaborator command produced it — out of
// core scope, per spec.md §4.10's "external verifier") against the
// sha256 of local data, matching the teacher/pack convention of using
// stdlib hash algorithms (see fs/hash) rather than a third-party
// hashing library.
type HashVerifier struct {
	remoteHex string
	local     []byte

	done bool
	ok   bool
	err  error
}

// NewHashVerifier builds a HashVerifier. remoteHex is a hex-encoded
// sha256 digest; local is the complete local file content to hash.
func NewHashVerifier(remoteHex string, local []byte) *HashVerifier {
	return &HashVerifier{remoteHex: remoteHex, local: local}
}

// Step implements scheduler.Stepper. Hashing runs to completion in one
// step since it is bounded, local, CPU-only work with no I/O wait —
// unlike listing parsers, there is no partial-progress state to
// interleave across steps.
func (v *HashVerifier) Step() scheduler.StepResult {
	if v.done {
		return scheduler.Stall
	}
	sum := sha256.Sum256(v.local)
	got := hex.EncodeToString(sum[:])
	v.ok = strings.EqualFold(got, v.remoteHex)
	if !v.ok {
		v.err = errkind.New(errkind.Integrity, "", "verify", "", fmt.Errorf("hash mismatch: local %s, remote %s", got, v.remoteHex))
	}
	v.done = true
	return scheduler.Moved
}

// Done reports whether the verify step has run.
func (v *HashVerifier) Done() bool { return v.done }

// Result returns whether the hashes matched, and an Integrity error
// when they didn't.
func (v *HashVerifier) Result() (bool, error) { return v.ok, v.err }
