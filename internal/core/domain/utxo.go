package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// RegistryRefs links a UTXO to the external registries its compliance
// state was derived from.
type RegistryRefs struct {
	Identity      string
	Compliance    string
	TrustedIssuer string
	ClaimTopic    string
}

type UTXO struct {
	ID         string
	Owner      string // hex-encoded schnorr public key
	Value      uint64
	Commitment string // hex-encoded output commitment
	TokenID    string
	Identity   string // linked identity reference
	Registries RegistryRefs

	ComplianceHash    string
	WhitelistTier     uint8
	JurisdictionMask  uint64
	ExpiryHeight      uint64
	RequiredClaimMask uint64
	CountryCode       uint16
	InvestorType      uint8
	Whitelisted       bool
	Blacklisted       bool
	BlacklistSeverity uint8

	Spent           bool
	SpentBy         string // spending transaction hash
	CreatedAt       int64
	AcquiredAt      int64
	LastValidatedAt int64
	LastValidation  *ComplianceValidation
}

func (u UTXO) String() string {
	// nolint
	b, _ := json.MarshalIndent(u, "", "  ")
	return string(b)
}

// OwnerPubKey parses the owner field as a schnorr public key.
func (u UTXO) OwnerPubKey() (*btcec.PublicKey, error) {
	buf, err := hex.DecodeString(u.Owner)
	if err != nil {
		return nil, err
	}
	return schnorr.ParsePubKey(buf)
}

// SatisfiesClaims reports whether the required claim bits are a subset of
// the satisfied bits.
func (u UTXO) SatisfiesClaims(satisfied uint64) bool {
	return u.RequiredClaimMask&satisfied == u.RequiredClaimMask
}

// UtxoID derives the unique identifier of a new UTXO from its owner, its
// commitment and a monotonic counter.
func UtxoID(owner, commitment string, counter uint64) string {
	buf := make([]byte, 0, len(owner)+len(commitment)+8)
	buf = append(buf, []byte(owner)...)
	buf = append(buf, []byte(commitment)...)
	buf = binary.BigEndian.AppendUint64(buf, counter)
	hash := sha256.Sum256(buf)
	return hex.EncodeToString(hash[:])
}

// ComplianceValidation is the outcome of the last compliance computation
// for a UTXO. It is not persisted beyond the last computation.
type ComplianceValidation struct {
	Valid     bool
	Reason    string
	ExpiresAt int64
	Hash      string
	Signers   []string
}

func (v ComplianceValidation) IsExpired(now int64) bool {
	return v.ExpiresAt > 0 && now >= v.ExpiresAt
}

// AggregatedCompliance is the result of merging the compliance metadata of
// multiple UTXOs spent together. It can never be more permissive than its
// most restrictive input.
type AggregatedCompliance struct {
	Whitelisted      bool
	Blacklisted      bool
	WhitelistTier    uint8
	JurisdictionMask uint64
	SatisfiedClaims  uint64
	CountryCodes     []uint16
}

// AggregateCompliance folds the compliance metadata of the given UTXOs:
// whitelist status is the conjunction, blacklist status the disjunction,
// jurisdiction masks and claim masks intersect, and the whitelist tier is
// the minimum across inputs. Blacklisted always dominates whitelisted.
func AggregateCompliance(utxos []UTXO) AggregatedCompliance {
	if len(utxos) == 0 {
		return AggregatedCompliance{}
	}

	agg := AggregatedCompliance{
		Whitelisted:      true,
		WhitelistTier:    utxos[0].WhitelistTier,
		JurisdictionMask: ^uint64(0),
		SatisfiedClaims:  ^uint64(0),
	}
	seenCountries := make(map[uint16]struct{})
	for _, utxo := range utxos {
		agg.Whitelisted = agg.Whitelisted && utxo.Whitelisted
		agg.Blacklisted = agg.Blacklisted || utxo.Blacklisted
		agg.JurisdictionMask &= utxo.JurisdictionMask
		agg.SatisfiedClaims &= utxo.RequiredClaimMask
		if utxo.WhitelistTier < agg.WhitelistTier {
			agg.WhitelistTier = utxo.WhitelistTier
		}
		if _, ok := seenCountries[utxo.CountryCode]; !ok {
			seenCountries[utxo.CountryCode] = struct{}{}
			agg.CountryCodes = append(agg.CountryCodes, utxo.CountryCode)
		}
	}
	if agg.Blacklisted {
		agg.Whitelisted = false
	}
	return agg
}
