package ports

import "github.com/veridex-io/veridexd/internal/core/domain"

// PairingVerifier is the trusted pairing-check primitive behind proof
// verification. Implementations must not panic on malformed input: a proof
// that fails to parse simply does not verify.
type PairingVerifier interface {
	Verify(verifyingKey []byte, proof domain.Proof, publicInputs [][]byte) (bool, error)
}
