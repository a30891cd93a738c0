package domain

import (
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Oracle is a registered attestor. Its identity is the hex encoding of its
// schnorr public key. A removed oracle loses all standing for future
// consensus computation, but attestations it already contributed remain in
// their queries until the next re-validation.
type Oracle struct {
	ID         string
	Name       string
	Active     bool
	Emergency  bool // emergency-excluded oracles never count towards consensus
	Reputation int64

	AttestationsSubmitted uint64
	AttestationsAgreed    uint64
	RegisteredAt          int64
}

func (o Oracle) String() string {
	// nolint
	b, _ := json.MarshalIndent(o, "", "  ")
	return string(b)
}

// CountsForConsensus reports whether the oracle's attestations contribute
// to threshold computation.
func (o Oracle) CountsForConsensus() bool {
	return o.Active && !o.Emergency
}

func (o Oracle) PubKey() (*btcec.PublicKey, error) {
	buf, err := hex.DecodeString(o.ID)
	if err != nil {
		return nil, err
	}
	return schnorr.ParsePubKey(buf)
}
