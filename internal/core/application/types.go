package application

import (
	"context"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/pkg/errors"
)

// Reason codes surfaced by read-only validation paths. State-changing paths
// surface the same taxonomy through pkg/errors.
const (
	ReasonValid                 = "VALID"
	ReasonInvalidIdentity       = "INVALID_IDENTITY"
	ReasonInvalidClaims         = "INVALID_CLAIMS"
	ReasonExpiredClaims         = "EXPIRED_CLAIMS"
	ReasonBlacklisted           = "BLACKLISTED"
	ReasonNotWhitelisted        = "NOT_WHITELISTED"
	ReasonJurisdiction          = "JURISDICTION_RESTRICTED"
	ReasonInvestorType          = "INVESTOR_TYPE_RESTRICTED"
	ReasonInsufficientLevel     = "INSUFFICIENT_COMPLIANCE_LEVEL"
	ReasonHoldingPeriod         = "HOLDING_PERIOD_RESTRICTED"
	ReasonOracleConsensusFailed = "ORACLE_CONSENSUS_FAILED"
	ReasonUtxoNotFound          = "UTXO_NOT_FOUND"
	ReasonAlreadySpent          = "UTXO_ALREADY_SPENT"
	ReasonComplianceInvalid     = "COMPLIANCE_INVALID"
	ReasonEmergencyHalt         = "EMERGENCY_HALT"
)

// ValidationResult is the structured outcome of a read-only validation. It
// never aborts the caller: failures are reported through Code and Reason.
type ValidationResult struct {
	Valid  bool
	Code   string
	Reason string
}

func valid() ValidationResult {
	return ValidationResult{Valid: true, Code: ReasonValid, Reason: "all checks passed"}
}

func invalid(code, reason string) ValidationResult {
	return ValidationResult{Valid: false, Code: code, Reason: reason}
}

// TransactionContext describes a proposed transfer submitted for
// validation.
type TransactionContext struct {
	TxHash   string
	TokenID  string
	Sender   string
	Receiver string
	InputIDs []string
	Outputs  []domain.UTXO
}

// RulesEngine evaluates the per-token jurisdiction, investor-type,
// holding-period and compliance-level rules, independent of oracles and
// proofs.
type RulesEngine interface {
	ValidateJurisdiction(ctx context.Context, tokenID string, country uint16) (ValidationResult, error)
	ValidateInvestorType(
		ctx context.Context, tokenID string, investorType, accreditation uint8,
	) (ValidationResult, error)
	ValidateHoldingPeriod(
		ctx context.Context, tokenID, holder string, acquiredAt, now int64,
	) (ValidationResult, error)
	// RecordTransfer is the only mutator of holding-period state. It must
	// be called exactly once per completed transfer, after validation
	// succeeded, never before.
	RecordTransfer(ctx context.Context, tokenID, holder string, at int64) errors.Error
	AggregateComplianceLevels(
		ctx context.Context, tokenID string, levels []domain.ComplianceLevel,
	) (domain.ComplianceLevel, bool, error)
	// ValidateMetadata runs the jurisdiction and investor-type rules
	// against a single UTXO's metadata.
	ValidateMetadata(ctx context.Context, utxo domain.UTXO) (ValidationResult, error)
	IsTrustedContract(ctx context.Context, contract string) (bool, error)
}

// ConsensusService collects oracle attestations and resolves M-of-N
// agreement.
type ConsensusService interface {
	// SubmitQuery opens a query for the (subject, queryType) pair, or
	// returns the identifier of the one already collecting.
	SubmitQuery(
		ctx context.Context, subject string, queryType domain.QueryType, data []byte,
	) (string, errors.Error)
	// SubmitAttestation records a signed oracle answer. A second
	// submission from the same oracle replaces its prior one. Resolution
	// happens here, atomically with the submission that reaches the
	// threshold.
	SubmitAttestation(
		ctx context.Context, queryID, oracleID string, result bool, signature string, timestamp int64,
	) errors.Error
	// CheckConsensus is a pure view over whatever has accumulated so far.
	CheckConsensus(ctx context.Context, queryID string) (*domain.ConsensusQuery, error)
	// ValidateOracleConsensus verifies every signature against the message
	// hash under the claimed oracle's key; any failure rejects the whole
	// call.
	ValidateOracleConsensus(
		ctx context.Context, oracleIDs, signatures []string, messageHash [32]byte,
	) errors.Error
	GetOracleValidation(ctx context.Context, subject string) (*domain.OracleValidation, errors.Error)
	IsUnresolvable(ctx context.Context, queryID string) (bool, error)
}

// UpdateProof authorizes a compliance-hash transition: either an oracle
// signature set or a zero-knowledge proof, selected by the token's update
// policy.
type UpdateProof struct {
	OracleSigners    []string
	OracleSignatures []string

	Circuit      domain.CircuitID
	Proof        *domain.Proof
	PublicInputs [][]byte
}

// ProofService holds one verifying key per registered circuit and checks
// submitted zero-knowledge proofs against public inputs.
type ProofService interface {
	// VerifyProof is the stateless variant: it returns false on any
	// failure and never errors.
	VerifyProof(verifyingKey []byte, proof domain.Proof, publicInputs [][]byte) bool
	// VerifyCircuitProof looks up the key by circuit id and records the
	// outcome in the circuit's audit counters.
	VerifyCircuitProof(
		ctx context.Context, circuitID domain.CircuitID, proof domain.Proof, publicInputs [][]byte,
	) (bool, errors.Error)
	GetCircuit(ctx context.Context, id domain.CircuitID) (*domain.Circuit, error)
}

// RegistryService owns the UTXO metadata lifecycle.
type RegistryService interface {
	CreateUTXO(ctx context.Context, utxo domain.UTXO) (*domain.UTXO, errors.Error)
	SpendUTXO(ctx context.Context, id string, txHash []byte, signature string) errors.Error
	// ValidateUTXO recomputes the compliance validation. Pure read,
	// deterministic given current stored state.
	ValidateUTXO(ctx context.Context, id string) (*domain.ComplianceValidation, error)
	UpdateCompliance(ctx context.Context, id, newHash string, proof UpdateProof) errors.Error
	AggregateCompliance(utxos []domain.UTXO) domain.AggregatedCompliance
	// ValidateTransaction checks inputs and outputs without mutating
	// state; mutation happens only via SpendUTXO/CreateUTXO.
	ValidateTransaction(
		ctx context.Context, inputIDs []string, outputs []domain.UTXO,
	) (ValidationResult, error)
}

// ValidatorService is the top-level orchestrator running the full
// validation pipeline.
type ValidatorService interface {
	ValidateTransaction(ctx context.Context, tx TransactionContext) (ValidationResult, error)
	// ValidateTransferRestrictions is the entry point consumed by the
	// token collaborator before executing a balance change.
	ValidateTransferRestrictions(
		ctx context.Context, tx TransactionContext,
	) (bool, string, error)
}

// AdminService groups the governance entry points: oracle registration,
// consensus threshold, verifying keys, token rules and trusted contracts.
type AdminService interface {
	RegisterOracle(ctx context.Context, id, name string) errors.Error
	RemoveOracle(ctx context.Context, id string) errors.Error
	SetOracleActive(ctx context.Context, id string, active bool) errors.Error
	SetOracleEmergency(ctx context.Context, id string, emergency bool) errors.Error
	AdjustReputation(ctx context.Context, id string, delta int64) errors.Error
	GetOracleInfo(ctx context.Context, id string) (*domain.Oracle, error)
	ListOracles(ctx context.Context) ([]domain.Oracle, error)
	UpdateConsensusThreshold(ctx context.Context, threshold int) errors.Error
	SetVerifyingKey(ctx context.Context, circuitID domain.CircuitID, verifyingKey []byte) errors.Error
	SetTokenRules(ctx context.Context, rules domain.TokenRules) errors.Error
	GetTokenRules(ctx context.Context, tokenID string) (*domain.TokenRules, error)
	AddTrustedContract(ctx context.Context, contract string) errors.Error
	RemoveTrustedContract(ctx context.Context, contract string) errors.Error
	GetTrustedContracts(ctx context.Context) ([]string, error)
	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) errors.Error
}
