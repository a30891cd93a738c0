package domain

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type QueryType uint8

const (
	QueryTypeWhitelist QueryType = iota
	QueryTypeBlacklist
)

func (t QueryType) String() string {
	switch t {
	case QueryTypeWhitelist:
		return "whitelist"
	case QueryTypeBlacklist:
		return "blacklist"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

type QueryStatus uint8

const (
	QueryStatusOpen QueryStatus = iota
	QueryStatusResolved
)

func (s QueryStatus) String() string {
	switch s {
	case QueryStatusOpen:
		return "open"
	case QueryStatusResolved:
		return "resolved"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Attestation is a single oracle's signed answer to a query. An oracle
// submits at most one attestation per query: a resubmission replaces the
// previous one.
type Attestation struct {
	OracleID  string
	Result    bool
	Signature string // hex-encoded schnorr signature over the attestation hash
	Timestamp int64
}

// ConsensusQuery collects oracle attestations for a (subject, type) pair
// until the agreeing count reaches the configured threshold. Once resolved
// the result is fixed and the query is never re-opened.
type ConsensusQuery struct {
	ID           string
	Subject      string
	Type         QueryType
	Data         []byte
	Status       QueryStatus
	Attestations map[string]Attestation
	Result       *bool
	Signers      []string
	CreatedAt    int64
	ResolvedAt   int64
}

func NewConsensusQuery(subject string, queryType QueryType, data []byte) *ConsensusQuery {
	return &ConsensusQuery{
		ID:           uuid.New().String(),
		Subject:      subject,
		Type:         queryType,
		Data:         data,
		Status:       QueryStatusOpen,
		Attestations: make(map[string]Attestation),
		CreatedAt:    time.Now().Unix(),
	}
}

func (q ConsensusQuery) String() string {
	// nolint
	b, _ := json.MarshalIndent(q, "", "  ")
	return string(b)
}

// AttestationHash is the message an oracle signs when answering the query
// with the given result.
func (q ConsensusQuery) AttestationHash(result bool) [32]byte {
	resultByte := byte(0)
	if result {
		resultByte = 1
	}
	buf := make([]byte, 0, len(q.ID)+len(q.Subject)+2)
	buf = append(buf, []byte(q.ID)...)
	buf = append(buf, []byte(q.Subject)...)
	buf = append(buf, byte(q.Type), resultByte)
	return sha256.Sum256(buf)
}

// Record stores or replaces the oracle's attestation.
func (q *ConsensusQuery) Record(attestation Attestation) {
	if q.Attestations == nil {
		q.Attestations = make(map[string]Attestation)
	}
	q.Attestations[attestation.OracleID] = attestation
}

// Tally counts attestations per boolean result, restricted to the oracles
// for which counts returns true.
func (q ConsensusQuery) Tally(counts func(oracleID string) bool) (agree, disagree int) {
	for id, attestation := range q.Attestations {
		if counts != nil && !counts(id) {
			continue
		}
		if attestation.Result {
			agree++
		} else {
			disagree++
		}
	}
	return agree, disagree
}

// TryResolve fixes the query result if either boolean answer has reached
// the threshold among counting oracles. Ties below the threshold leave the
// query open: a default is never forced.
func (q *ConsensusQuery) TryResolve(threshold int, counts func(oracleID string) bool) bool {
	if q.Status == QueryStatusResolved || threshold <= 0 {
		return false
	}
	agree, disagree := q.Tally(counts)

	var result bool
	switch {
	case agree >= threshold:
		result = true
	case disagree >= threshold:
		result = false
	default:
		return false
	}

	signers := make([]string, 0, len(q.Attestations))
	for id, attestation := range q.Attestations {
		if counts != nil && !counts(id) {
			continue
		}
		if attestation.Result == result {
			signers = append(signers, id)
		}
	}

	q.Status = QueryStatusResolved
	q.Result = &result
	q.Signers = signers
	q.ResolvedAt = time.Now().Unix()
	return true
}

// Unresolvable reports whether the query can no longer reach the threshold
// even if every remaining counting oracle submitted an agreeing answer.
func (q ConsensusQuery) Unresolvable(countingOracles, threshold int) bool {
	if q.Status == QueryStatusResolved {
		return false
	}
	return countingOracles < threshold
}

// OracleValidation is a consensus snapshot for a subject, combining the
// latest resolved whitelist and blacklist queries.
type OracleValidation struct {
	Whitelisted    bool
	WhitelistTier  uint8
	Blacklisted    bool
	Severity       uint8
	ConsensusCount int
	Signers        []string
	ComputedAt     int64
}

// IsFresh reports whether the snapshot was computed within the given
// recency window.
func (v OracleValidation) IsFresh(now, window int64) bool {
	if window <= 0 {
		return true
	}
	return now-v.ComputedAt <= window
}
