package ports

import "github.com/veridex-io/veridexd/internal/core/domain"

type RepoManager interface {
	Events() domain.EventRepository
	Utxos() domain.UtxoRepository
	Rules() domain.RuleRepository
	Oracles() domain.OracleRepository
	Consensus() domain.ConsensusRepository
	Circuits() domain.CircuitRepository
	Transfers() domain.TransferRepository
	Settings() domain.SettingsRepository
	Close()
}
