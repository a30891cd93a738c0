package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
)

// verifySchnorrSignature checks a hex-encoded schnorr signature over msg
// under the hex-encoded public key.
func verifySchnorrSignature(pubkeyHex, sigHex string, msg [32]byte) error {
	pubkeyBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key encoding: %s", err)
	}
	pubkey, err := schnorr.ParsePubKey(pubkeyBytes)
	if err != nil {
		return fmt.Errorf("invalid public key: %s", err)
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %s", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("invalid signature: %s", err)
	}
	if !sig.Verify(msg[:], pubkey) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// complianceUpdateHash is the message signed or proven to authorize a
// compliance-hash transition.
func complianceUpdateHash(utxoID, oldHash, newHash string) [32]byte {
	buf := make([]byte, 0, len(utxoID)+len(oldHash)+len(newHash))
	buf = append(buf, []byte(utxoID)...)
	buf = append(buf, []byte(oldHash)...)
	buf = append(buf, []byte(newHash)...)
	return sha256.Sum256(buf)
}

// resolveIdentity computes an IdentityValidation for a holder, checking
// each claim topic set in requiredMask against the identity collaborator.
// The result lives only for the duration of the calling validation.
func resolveIdentity(
	ctx context.Context, provider ports.IdentityProvider, holder string, requiredMask uint64,
) (domain.IdentityValidation, error) {
	identity, err := provider.GetIdentity(ctx, holder)
	if err != nil {
		return domain.IdentityValidation{}, err
	}
	if identity == "" {
		return domain.IdentityValidation{}, nil
	}

	country, investorType, accreditation, err := provider.GetHolderInfo(ctx, identity)
	if err != nil {
		return domain.IdentityValidation{}, err
	}

	validation := domain.IdentityValidation{
		HasValidIdentity: true,
		Identity:         identity,
		CountryCode:      country,
		InvestorType:     investorType,
		Accreditation:    accreditation,
	}

	now := time.Now().Unix()
	for topic := uint32(0); topic < 64; topic++ {
		if requiredMask&(1<<topic) == 0 {
			continue
		}
		claims, err := provider.GetClaimsByTopic(ctx, identity, topic)
		if err != nil {
			return domain.IdentityValidation{}, err
		}
		for _, claim := range claims {
			if claim.IsExpired(now) {
				continue
			}
			validation.ValidClaims = append(validation.ValidClaims, topic)
			if validation.ClaimsExpireAt == 0 || (claim.ExpiresAt > 0 && claim.ExpiresAt < validation.ClaimsExpireAt) {
				validation.ClaimsExpireAt = claim.ExpiresAt
			}
			break
		}
	}
	return validation, nil
}

// validationHash summarizes a validation outcome so that two computations
// over the same state produce the same hash.
func validationHash(utxoID, complianceHash, code string, signers []string) string {
	sorted := make([]string, len(signers))
	copy(sorted, signers)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(utxoID))
	h.Write([]byte(complianceHash))
	h.Write([]byte(code))
	for _, signer := range sorted {
		h.Write([]byte(signer))
	}
	return hex.EncodeToString(h.Sum(nil))
}
