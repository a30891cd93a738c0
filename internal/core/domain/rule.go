package domain

import "fmt"

type ComplianceLevel uint8

const (
	ComplianceLevelNone ComplianceLevel = iota
	ComplianceLevelBasic
	ComplianceLevelEnhanced
	ComplianceLevelPremium
	ComplianceLevelInstitutional
)

func (l ComplianceLevel) String() string {
	if l > ComplianceLevelInstitutional {
		return fmt.Sprintf("Unknown(%d)", uint8(l))
	}
	return []string{
		"None",
		"Basic",
		"Enhanced",
		"Premium",
		"Institutional",
	}[l]
}

// JurisdictionRule restricts which countries may hold a token. A country in
// both sets is blocked: blocked always takes precedence over allowed. Empty
// allowed and empty blocked means unrestricted.
type JurisdictionRule struct {
	Allowed []uint16
	Blocked []uint16
}

func (r JurisdictionRule) Permits(country uint16) bool {
	for _, blocked := range r.Blocked {
		if blocked == country {
			return false
		}
	}
	if len(r.Allowed) == 0 {
		return true
	}
	for _, allowed := range r.Allowed {
		if allowed == country {
			return true
		}
	}
	return false
}

type InvestorTypeRule struct {
	Allowed          []uint8
	Blocked          []uint8
	MinAccreditation uint8
}

func (r InvestorTypeRule) PermitsType(investorType uint8) bool {
	for _, blocked := range r.Blocked {
		if blocked == investorType {
			return false
		}
	}
	if len(r.Allowed) == 0 {
		return true
	}
	for _, allowed := range r.Allowed {
		if allowed == investorType {
			return true
		}
	}
	return false
}

// HoldingPeriodRule durations are expressed in seconds.
type HoldingPeriodRule struct {
	MinHoldingPeriod int64
	TransferCooldown int64
}

// ComplianceLevelRule bounds the aggregated compliance level of a transfer
// and maps raw input levels to effective ones before aggregation.
type ComplianceLevelRule struct {
	MinLevel    ComplianceLevel
	MaxLevel    ComplianceLevel
	Inheritance map[ComplianceLevel]ComplianceLevel
}

func (r ComplianceLevelRule) mapped(level ComplianceLevel) ComplianceLevel {
	if r.Inheritance == nil {
		return level
	}
	if effective, ok := r.Inheritance[level]; ok {
		return effective
	}
	return level
}

// Aggregate maps each input level through the inheritance mapping and
// returns the minimum mapped level, together with a flag reporting whether
// the aggregate falls within [MinLevel, MaxLevel].
func (r ComplianceLevelRule) Aggregate(levels []ComplianceLevel) (ComplianceLevel, bool) {
	if len(levels) == 0 {
		return ComplianceLevelNone, false
	}
	agg := r.mapped(levels[0])
	for _, level := range levels[1:] {
		if mapped := r.mapped(level); mapped < agg {
			agg = mapped
		}
	}
	return agg, agg >= r.MinLevel && agg <= r.MaxLevel
}

// TokenRules is the full rule set configured for a token by its
// administrator.
type TokenRules struct {
	TokenID        string
	Jurisdiction   JurisdictionRule
	InvestorType   InvestorTypeRule
	HoldingPeriod  HoldingPeriodRule
	Level          ComplianceLevelRule
	RequiredClaims uint64
	// UpdatePolicy selects how compliance-hash updates are authorized.
	UpdatePolicy UpdatePolicy
	UpdatedAt    int64
}

type UpdatePolicy uint8

const (
	UpdatePolicyOracleSignatures UpdatePolicy = iota
	UpdatePolicyZkProof
)

func (p UpdatePolicy) String() string {
	switch p {
	case UpdatePolicyOracleSignatures:
		return "oracle_signatures"
	case UpdatePolicyZkProof:
		return "zk_proof"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}
