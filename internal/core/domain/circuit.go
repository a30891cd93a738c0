package domain

import "fmt"

type CircuitID string

const (
	CircuitWhitelistMembership    CircuitID = "whitelist-membership"
	CircuitBlacklistNonMembership CircuitID = "blacklist-non-membership"
	CircuitJurisdictionProof      CircuitID = "jurisdiction-proof"
	CircuitAccreditationProof     CircuitID = "accreditation-proof"
	CircuitComplianceAggregation  CircuitID = "compliance-aggregation"
)

// publicInputLens is the fixed public-input arity per circuit.
var publicInputLens = map[CircuitID]int{
	CircuitWhitelistMembership:    1,
	CircuitBlacklistNonMembership: 1,
	CircuitJurisdictionProof:      1,
	CircuitAccreditationProof:     1,
	CircuitComplianceAggregation:  6,
}

// PublicInputLen reports the public-input arity for the circuit and
// whether the circuit is known.
func PublicInputLen(c CircuitID) (int, bool) {
	n, ok := publicInputLens[c]
	return n, ok
}

func (c CircuitID) PublicInputLen() (int, error) {
	n, ok := publicInputLens[c]
	if !ok {
		return 0, fmt.Errorf("unknown circuit: %s", c)
	}
	return n, nil
}

// Circuit binds a verifying key to a circuit identifier and tracks a
// running audit count of verifications performed against it. Replacing the
// key does not retroactively invalidate past verifications.
type Circuit struct {
	ID            CircuitID
	VerifyingKey  []byte
	TotalVerified uint64
	TotalValid    uint64
	UpdatedAt     int64
}

// Proof is a Groth16 proof over BN254: A and C in G1, B in G2, serialized
// with gnark-crypto point encoding.
type Proof struct {
	A []byte
	B []byte
	C []byte
}
