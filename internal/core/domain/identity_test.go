package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaimIsExpired(t *testing.T) {
	claim := Claim{Topic: 1, ExpiresAt: 1000}
	require.False(t, claim.IsExpired(999))
	require.True(t, claim.IsExpired(1000))
	require.True(t, claim.IsExpired(1001))

	// a claim without an expiry never expires
	perpetual := Claim{Topic: 1}
	require.False(t, perpetual.IsExpired(1<<62))
}

func TestClaimMask(t *testing.T) {
	validation := IdentityValidation{ValidClaims: []uint32{0, 3, 63}}
	require.Equal(t, uint64(1)|uint64(1)<<3|uint64(1)<<63, validation.ClaimMask())

	// topics beyond 63 do not fit the mask
	overflow := IdentityValidation{ValidClaims: []uint32{64, 100}}
	require.Zero(t, overflow.ClaimMask())

	require.Zero(t, IdentityValidation{}.ClaimMask())
}
