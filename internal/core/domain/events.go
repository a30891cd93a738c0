package domain

import "context"

type EventType string

const (
	EventTypeUtxoCreated          EventType = "utxo_created"
	EventTypeUtxoSpent            EventType = "utxo_spent"
	EventTypeComplianceUpdated    EventType = "compliance_updated"
	EventTypeQueryResolved        EventType = "query_resolved"
	EventTypeProofVerified        EventType = "proof_verified"
	EventTypeTransactionValidated EventType = "transaction_validated"
	EventTypeOracleRegistered     EventType = "oracle_registered"
	EventTypeOracleRemoved        EventType = "oracle_removed"
)

const (
	UtxoTopic       = "utxo"
	ConsensusTopic  = "consensus"
	ProofTopic      = "proof"
	ValidationTopic = "validation"
	OracleTopic     = "oracle"
)

type Event interface {
	GetType() EventType
}

type UtxoCreated struct {
	Id      string
	Type    EventType
	Owner   string
	TokenID string
	Value   uint64
}

func (e UtxoCreated) GetType() EventType { return e.Type }

type UtxoSpent struct {
	Id     string
	Type   EventType
	TxHash string
}

func (e UtxoSpent) GetType() EventType { return e.Type }

type ComplianceUpdated struct {
	Id      string
	Type    EventType
	OldHash string
	NewHash string
}

func (e ComplianceUpdated) GetType() EventType { return e.Type }

type QueryResolved struct {
	Id      string
	Type    EventType
	Subject string
	Query   QueryType
	Result  bool
	Signers []string
}

func (e QueryResolved) GetType() EventType { return e.Type }

type ProofVerified struct {
	Id      string
	Type    EventType
	Circuit CircuitID
	Valid   bool
}

func (e ProofVerified) GetType() EventType { return e.Type }

type TransactionValidated struct {
	Id       string // transaction hash
	Type     EventType
	Sender   string
	Receiver string
	Valid    bool
	Reason   string
}

func (e TransactionValidated) GetType() EventType { return e.Type }

type OracleRegistered struct {
	Id   string
	Type EventType
	Name string
}

func (e OracleRegistered) GetType() EventType { return e.Type }

type OracleRemoved struct {
	Id   string
	Type EventType
}

func (e OracleRemoved) GetType() EventType { return e.Type }

type EventRepository interface {
	Save(ctx context.Context, topic, id string, events []Event) error
	RegisterEventsHandler(topic string, handler func(events []Event))
	ClearRegisteredHandlers(topics ...string)
	Close()
}
