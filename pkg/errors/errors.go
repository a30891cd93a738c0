package errors

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code     uint16
	Name     string
	GrpcCode grpccodes.Code
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	GrpcCode() grpccodes.Code
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) GrpcCode() grpccodes.Code {
	return e.code.GrpcCode
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type UtxoMetadata struct {
	UtxoId string `json:"utxo_id"`
}

type SignatureMetadata struct {
	Signer  string `json:"signer"`
	Message string `json:"message"`
}

type IdentityMetadata struct {
	Identity string `json:"identity"`
}

type ClaimsMetadata struct {
	Identity      string   `json:"identity"`
	MissingTopics []uint32 `json:"missing_topics"`
}

type OracleMetadata struct {
	OracleId string `json:"oracle_id"`
}

type ConsensusMetadata struct {
	QueryId   string `json:"query_id"`
	Subject   string `json:"subject"`
	Agreeing  int    `json:"agreeing"`
	Threshold int    `json:"threshold"`
}

type ThresholdMetadata struct {
	Threshold     int `json:"threshold"`
	ActiveOracles int `json:"active_oracles"`
}

type JurisdictionMetadata struct {
	TokenId string `json:"token_id"`
	Country uint16 `json:"country"`
}

type InvestorTypeMetadata struct {
	TokenId       string `json:"token_id"`
	InvestorType  uint8  `json:"investor_type"`
	Accreditation uint8  `json:"accreditation"`
}

type HoldingPeriodMetadata struct {
	TokenId       string `json:"token_id"`
	Holder        string `json:"holder"`
	ElapsedSecs   int64  `json:"elapsed_secs"`
	RequiredSecs  int64  `json:"required_secs"`
	CooldownUntil int64  `json:"cooldown_until"`
}

type ComplianceLevelMetadata struct {
	TokenId  string `json:"token_id"`
	Level    uint8  `json:"level"`
	MinLevel uint8  `json:"min_level"`
	MaxLevel uint8  `json:"max_level"`
}

type CircuitMetadata struct {
	CircuitId string `json:"circuit_id"`
}

type ProofMetadata struct {
	CircuitId    string `json:"circuit_id"`
	PublicInputs int    `json:"public_inputs"`
}

type RulesMetadata struct {
	TokenId string `json:"token_id"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", grpccodes.Internal}

var INVALID_IDENTITY = Code[IdentityMetadata]{
	1,
	"INVALID_IDENTITY",
	grpccodes.FailedPrecondition,
}

var INVALID_CLAIMS = Code[ClaimsMetadata]{2, "INVALID_CLAIMS", grpccodes.FailedPrecondition}
var EXPIRED_CLAIMS = Code[ClaimsMetadata]{3, "EXPIRED_CLAIMS", grpccodes.FailedPrecondition}
var BLACKLISTED = Code[IdentityMetadata]{4, "BLACKLISTED", grpccodes.PermissionDenied}
var NOT_WHITELISTED = Code[IdentityMetadata]{5, "NOT_WHITELISTED", grpccodes.PermissionDenied}

var JURISDICTION_RESTRICTED = Code[JurisdictionMetadata]{
	6,
	"JURISDICTION_RESTRICTED",
	grpccodes.PermissionDenied,
}

var INSUFFICIENT_COMPLIANCE_LEVEL = Code[ComplianceLevelMetadata]{
	7,
	"INSUFFICIENT_COMPLIANCE_LEVEL",
	grpccodes.PermissionDenied,
}

var INVESTOR_TYPE_RESTRICTED = Code[InvestorTypeMetadata]{
	8,
	"INVESTOR_TYPE_RESTRICTED",
	grpccodes.PermissionDenied,
}

var HOLDING_PERIOD_RESTRICTED = Code[HoldingPeriodMetadata]{
	9,
	"HOLDING_PERIOD_RESTRICTED",
	grpccodes.FailedPrecondition,
}

var ORACLE_CONSENSUS_FAILED = Code[ConsensusMetadata]{
	10,
	"ORACLE_CONSENSUS_FAILED",
	grpccodes.FailedPrecondition,
}

var DUPLICATE_UTXO = Code[UtxoMetadata]{11, "DUPLICATE_UTXO", grpccodes.AlreadyExists}
var UTXO_NOT_FOUND = Code[UtxoMetadata]{12, "UTXO_NOT_FOUND", grpccodes.NotFound}
var UTXO_ALREADY_SPENT = Code[UtxoMetadata]{13, "UTXO_ALREADY_SPENT", grpccodes.InvalidArgument}

var COMPLIANCE_INVALID = Code[UtxoMetadata]{
	14,
	"COMPLIANCE_INVALID",
	grpccodes.FailedPrecondition,
}

var BAD_SIGNATURE = Code[SignatureMetadata]{15, "BAD_SIGNATURE", grpccodes.InvalidArgument}
var INVALID_PROOF = Code[ProofMetadata]{16, "INVALID_PROOF", grpccodes.InvalidArgument}
var UNKNOWN_CIRCUIT = Code[CircuitMetadata]{17, "UNKNOWN_CIRCUIT", grpccodes.NotFound}
var QUERY_NOT_FOUND = Code[ConsensusMetadata]{18, "QUERY_NOT_FOUND", grpccodes.NotFound}

var QUERY_ALREADY_RESOLVED = Code[ConsensusMetadata]{
	19,
	"QUERY_ALREADY_RESOLVED",
	grpccodes.FailedPrecondition,
}

var ORACLE_NOT_FOUND = Code[OracleMetadata]{20, "ORACLE_NOT_FOUND", grpccodes.NotFound}

var ORACLE_ALREADY_REGISTERED = Code[OracleMetadata]{
	21,
	"ORACLE_ALREADY_REGISTERED",
	grpccodes.AlreadyExists,
}

var ORACLE_NOT_ACTIVE = Code[OracleMetadata]{
	22,
	"ORACLE_NOT_ACTIVE",
	grpccodes.FailedPrecondition,
}

var INVALID_THRESHOLD = Code[ThresholdMetadata]{
	23,
	"INVALID_THRESHOLD",
	grpccodes.InvalidArgument,
}

var RULES_NOT_FOUND = Code[RulesMetadata]{24, "RULES_NOT_FOUND", grpccodes.NotFound}

var METADATA_VALIDATION_FAILED = Code[map[string]any]{
	25,
	"METADATA_VALIDATION_FAILED",
	grpccodes.InvalidArgument,
}
