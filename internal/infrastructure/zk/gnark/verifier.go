package gnarkverifier

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
)

const (
	g1Size = 64
	g2Size = 128
)

type verifier struct{}

// NewVerifier returns a Groth16 pairing verifier over BN254. Points are
// expected in gnark-crypto uncompressed encoding.
func NewVerifier() ports.PairingVerifier {
	return &verifier{}
}

// Verify checks e(A, B) == e(α, β) · e(Σxᵢ·Kᵢ, γ) · e(C, δ). Malformed
// keys, proofs or inputs return an error, never a panic.
func (v *verifier) Verify(
	verifyingKey []byte, proof domain.Proof, publicInputs [][]byte,
) (bool, error) {
	vk, err := parseVerifyingKey(verifyingKey)
	if err != nil {
		return false, fmt.Errorf("invalid verifying key: %w", err)
	}

	p, err := parseProof(proof)
	if err != nil {
		return false, fmt.Errorf("invalid proof: %w", err)
	}

	if len(publicInputs) != len(vk.k)-1 {
		return false, fmt.Errorf(
			"verifying key expects %d public inputs, got %d",
			len(vk.k)-1, len(publicInputs),
		)
	}

	witness := make([]fr.Element, 0, len(publicInputs))
	for _, input := range publicInputs {
		var elem fr.Element
		if err := elem.SetBytesCanonical(padScalar(input)); err != nil {
			return false, fmt.Errorf("invalid public input: %w", err)
		}
		witness = append(witness, elem)
	}

	// Σxᵢ·Kᵢ with K[0] as the constant term.
	acc := vk.k[0]
	for i := range witness {
		var term bn254.G1Affine
		term.ScalarMultiplication(&vk.k[i+1], witness[i].BigInt(nil))
		acc.Add(&acc, &term)
	}

	left, err := bn254.Pair(
		[]bn254.G1Affine{p.a}, []bn254.G2Affine{p.b},
	)
	if err != nil {
		return false, err
	}

	right, err := bn254.Pair(
		[]bn254.G1Affine{vk.alpha, acc, p.c},
		[]bn254.G2Affine{vk.beta, vk.gamma, vk.delta},
	)
	if err != nil {
		return false, err
	}

	return left.Equal(&right), nil
}

type groth16Proof struct {
	a bn254.G1Affine
	b bn254.G2Affine
	c bn254.G1Affine
}

type groth16VerifyingKey struct {
	alpha bn254.G1Affine
	beta  bn254.G2Affine
	gamma bn254.G2Affine
	delta bn254.G2Affine
	k     []bn254.G1Affine
}

func parseProof(proof domain.Proof) (*groth16Proof, error) {
	p := &groth16Proof{}
	if err := unmarshalG1(&p.a, proof.A); err != nil {
		return nil, fmt.Errorf("point A: %w", err)
	}
	if err := unmarshalG2(&p.b, proof.B); err != nil {
		return nil, fmt.Errorf("point B: %w", err)
	}
	if err := unmarshalG1(&p.c, proof.C); err != nil {
		return nil, fmt.Errorf("point C: %w", err)
	}
	return p, nil
}

// parseVerifyingKey decodes α | β | γ | δ | numK | K[0..numK). Every point
// gets a subgroup check: a key that passes parsing is safe to pair against.
func parseVerifyingKey(data []byte) (*groth16VerifyingKey, error) {
	minSize := g1Size + 3*g2Size + 4
	if len(data) < minSize {
		return nil, errors.New("truncated key")
	}

	vk := &groth16VerifyingKey{}
	offset := 0

	if err := unmarshalG1(&vk.alpha, data[offset:offset+g1Size]); err != nil {
		return nil, fmt.Errorf("alpha: %w", err)
	}
	offset += g1Size

	if err := unmarshalG2(&vk.beta, data[offset:offset+g2Size]); err != nil {
		return nil, fmt.Errorf("beta: %w", err)
	}
	offset += g2Size

	if err := unmarshalG2(&vk.gamma, data[offset:offset+g2Size]); err != nil {
		return nil, fmt.Errorf("gamma: %w", err)
	}
	offset += g2Size

	if err := unmarshalG2(&vk.delta, data[offset:offset+g2Size]); err != nil {
		return nil, fmt.Errorf("delta: %w", err)
	}
	offset += g2Size

	numK := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if numK == 0 {
		return nil, errors.New("key has no input terms")
	}
	if len(data) != offset+int(numK)*g1Size {
		return nil, errors.New("key length does not match input terms")
	}

	vk.k = make([]bn254.G1Affine, numK)
	for i := range vk.k {
		if err := unmarshalG1(&vk.k[i], data[offset:offset+g1Size]); err != nil {
			return nil, fmt.Errorf("k[%d]: %w", i, err)
		}
		offset += g1Size
	}

	return vk, nil
}

func unmarshalG1(point *bn254.G1Affine, buf []byte) error {
	if len(buf) != g1Size {
		return fmt.Errorf("expected %d bytes, got %d", g1Size, len(buf))
	}
	if err := point.Unmarshal(buf); err != nil {
		return err
	}
	if !point.IsInSubGroup() {
		return errors.New("point not in G1 subgroup")
	}
	return nil
}

func unmarshalG2(point *bn254.G2Affine, buf []byte) error {
	if len(buf) != g2Size {
		return fmt.Errorf("expected %d bytes, got %d", g2Size, len(buf))
	}
	if err := point.Unmarshal(buf); err != nil {
		return err
	}
	if !point.IsInSubGroup() {
		return errors.New("point not in G2 subgroup")
	}
	return nil
}

func padScalar(buf []byte) []byte {
	if len(buf) >= fr.Bytes {
		return buf[len(buf)-fr.Bytes:]
	}
	padded := make([]byte, fr.Bytes)
	copy(padded[fr.Bytes-len(buf):], buf)
	return padded
}
