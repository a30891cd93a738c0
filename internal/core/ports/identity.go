package ports

import (
	"context"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

// IdentityProvider is the read-only view over the identity collaborator
// (ERC-734/735-style key and claim stores). The engine consumes validated
// claim and identity data through it; it never issues claims or rotates
// keys.
type IdentityProvider interface {
	// GetIdentity resolves the identity reference linked to a holder, or
	// returns an empty string when none is linked.
	GetIdentity(ctx context.Context, holder string) (string, error)
	KeyHasPurpose(ctx context.Context, identity, key string, purpose uint8) (bool, error)
	HasValidClaim(ctx context.Context, identity string, topic uint32) (bool, error)
	GetClaimsByTopic(ctx context.Context, identity string, topic uint32) ([]domain.Claim, error)
	// GetHolderInfo returns the country code, investor type and
	// accreditation level attested for the identity.
	GetHolderInfo(ctx context.Context, identity string) (country uint16, investorType, accreditation uint8, err error)
}
