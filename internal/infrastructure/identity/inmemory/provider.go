package inmemoryidentity

import (
	"context"
	"fmt"
	"sync"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
)

// HolderInfo is the attested profile of an identity.
type HolderInfo struct {
	Country       uint16
	InvestorType  uint8
	Accreditation uint8
}

type key struct {
	Key     string
	Purpose uint8
}

// Provider is an in-process identity collaborator backed by maps. It serves
// single-node deployments and tests; production deployments point the
// validator at an on-chain identity registry instead.
type Provider struct {
	lock       sync.RWMutex
	identities map[string]string // holder -> identity
	keys       map[string][]key
	claims     map[string][]domain.Claim
	info       map[string]HolderInfo
}

func NewIdentityProvider() *Provider {
	return &Provider{
		identities: make(map[string]string),
		keys:       make(map[string][]key),
		claims:     make(map[string][]domain.Claim),
		info:       make(map[string]HolderInfo),
	}
}

var _ ports.IdentityProvider = (*Provider)(nil)

func (p *Provider) GetIdentity(_ context.Context, holder string) (string, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.identities[holder], nil
}

func (p *Provider) KeyHasPurpose(
	_ context.Context, identity, keyHash string, purpose uint8,
) (bool, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for _, k := range p.keys[identity] {
		if k.Key == keyHash && k.Purpose == purpose {
			return true, nil
		}
	}
	return false, nil
}

func (p *Provider) HasValidClaim(
	ctx context.Context, identity string, topic uint32,
) (bool, error) {
	claims, err := p.GetClaimsByTopic(ctx, identity, topic)
	if err != nil {
		return false, err
	}
	return len(claims) > 0, nil
}

func (p *Provider) GetClaimsByTopic(
	_ context.Context, identity string, topic uint32,
) ([]domain.Claim, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	var claims []domain.Claim
	for _, claim := range p.claims[identity] {
		if claim.Topic == topic {
			claims = append(claims, claim)
		}
	}
	return claims, nil
}

func (p *Provider) GetHolderInfo(
	_ context.Context, identity string,
) (uint16, uint8, uint8, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	info, ok := p.info[identity]
	if !ok {
		return 0, 0, 0, fmt.Errorf("no holder info for identity %s", identity)
	}
	return info.Country, info.InvestorType, info.Accreditation, nil
}

// LinkIdentity binds a holder address to its identity reference.
func (p *Provider) LinkIdentity(holder, identity string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.identities[holder] = identity
}

func (p *Provider) AddKey(identity, keyHash string, purpose uint8) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.keys[identity] = append(p.keys[identity], key{Key: keyHash, Purpose: purpose})
}

func (p *Provider) AddClaim(identity string, claim domain.Claim) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.claims[identity] = append(p.claims[identity], claim)
}

func (p *Provider) SetHolderInfo(identity string, info HolderInfo) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.info[identity] = info
}

func (p *Provider) RemoveClaims(identity string, topic uint32) {
	p.lock.Lock()
	defer p.lock.Unlock()

	kept := p.claims[identity][:0]
	for _, claim := range p.claims[identity] {
		if claim.Topic != topic {
			kept = append(kept, claim)
		}
	}
	p.claims[identity] = kept
}
