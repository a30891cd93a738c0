package domain

// Claim is an attested fact about an identity, issued by a trusted issuer.
type Claim struct {
	Topic     uint32
	Issuer    string
	ExpiresAt int64
}

func (c Claim) IsExpired(now int64) bool {
	return c.ExpiresAt > 0 && now >= c.ExpiresAt
}

// IdentityValidation is computed on demand from the identity collaborator
// and never cached beyond a single validation call.
type IdentityValidation struct {
	HasValidIdentity bool
	Identity         string
	CountryCode      uint16
	InvestorType     uint8
	Accreditation    uint8
	ValidClaims      []uint32
	ClaimsExpireAt   int64
}

// ClaimMask folds the valid claim topics into a bitmask. Topics beyond 63
// do not fit the mask and are ignored.
func (v IdentityValidation) ClaimMask() uint64 {
	var mask uint64
	for _, topic := range v.ValidClaims {
		if topic < 64 {
			mask |= 1 << topic
		}
	}
	return mask
}
