package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	badgerdb "github.com/veridex-io/veridexd/internal/infrastructure/db/badger"
	pgdb "github.com/veridex-io/veridexd/internal/infrastructure/db/postgres"
)

//go:embed postgres/migration/*
var pgMigration embed.FS

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.EventRepository, error){
		"badger":   badgerdb.NewEventRepository,
		"postgres": pgdb.NewEventRepository,
	}
	utxoStoreTypes = map[string]func(...interface{}) (domain.UtxoRepository, error){
		"badger":   badgerdb.NewUtxoRepository,
		"postgres": pgdb.NewUtxoRepository,
	}
	ruleStoreTypes = map[string]func(...interface{}) (domain.RuleRepository, error){
		"badger":   badgerdb.NewRuleRepository,
		"postgres": pgdb.NewRuleRepository,
	}
	oracleStoreTypes = map[string]func(...interface{}) (domain.OracleRepository, error){
		"badger":   badgerdb.NewOracleRepository,
		"postgres": pgdb.NewOracleRepository,
	}
	consensusStoreTypes = map[string]func(...interface{}) (domain.ConsensusRepository, error){
		"badger":   badgerdb.NewConsensusRepository,
		"postgres": pgdb.NewConsensusRepository,
	}
	circuitStoreTypes = map[string]func(...interface{}) (domain.CircuitRepository, error){
		"badger":   badgerdb.NewCircuitRepository,
		"postgres": pgdb.NewCircuitRepository,
	}
	transferStoreTypes = map[string]func(...interface{}) (domain.TransferRepository, error){
		"badger":   badgerdb.NewTransferRepository,
		"postgres": pgdb.NewTransferRepository,
	}
	settingsStoreTypes = map[string]func(...interface{}) (domain.SettingsRepository, error){
		"badger":   badgerdb.NewSettingsRepository,
		"postgres": pgdb.NewSettingsRepository,
	}
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore     domain.EventRepository
	utxoStore      domain.UtxoRepository
	ruleStore      domain.RuleRepository
	oracleStore    domain.OracleRepository
	consensusStore domain.ConsensusRepository
	circuitStore   domain.CircuitRepository
	transferStore  domain.TransferRepository
	settingsStore  domain.SettingsRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("event store type not supported")
	}
	utxoStoreFactory, ok := utxoStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}
	ruleStoreFactory := ruleStoreTypes[config.DataStoreType]
	oracleStoreFactory := oracleStoreTypes[config.DataStoreType]
	consensusStoreFactory := consensusStoreTypes[config.DataStoreType]
	circuitStoreFactory := circuitStoreTypes[config.DataStoreType]
	transferStoreFactory := transferStoreTypes[config.DataStoreType]
	settingsStoreFactory := settingsStoreTypes[config.DataStoreType]

	svc := &service{}
	var err error

	switch config.EventStoreType {
	case "badger":
		svc.eventStore, err = eventStoreFactory(config.EventStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %s", err)
		}
	case "postgres":
		db, err := openPostgres(config.EventStoreConfig)
		if err != nil {
			return nil, err
		}
		svc.eventStore, err = eventStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %s", err)
		}
	default:
		return nil, fmt.Errorf("unknown event store db type")
	}

	switch config.DataStoreType {
	case "badger":
		stores := config.DataStoreConfig
		if svc.utxoStore, err = utxoStoreFactory(stores...); err != nil {
			return nil, fmt.Errorf("failed to open utxo store: %s", err)
		}
		if svc.ruleStore, err = ruleStoreFactory(stores...); err != nil {
			return nil, fmt.Errorf("failed to open rule store: %s", err)
		}
		if svc.oracleStore, err = oracleStoreFactory(stores...); err != nil {
			return nil, fmt.Errorf("failed to open oracle store: %s", err)
		}
		if svc.consensusStore, err = consensusStoreFactory(stores...); err != nil {
			return nil, fmt.Errorf("failed to open consensus store: %s", err)
		}
		if svc.circuitStore, err = circuitStoreFactory(stores...); err != nil {
			return nil, fmt.Errorf("failed to open circuit store: %s", err)
		}
		if svc.transferStore, err = transferStoreFactory(stores...); err != nil {
			return nil, fmt.Errorf("failed to open transfer store: %s", err)
		}
		if svc.settingsStore, err = settingsStoreFactory(stores...); err != nil {
			return nil, fmt.Errorf("failed to open settings store: %s", err)
		}
	case "postgres":
		db, err := openPostgres(config.DataStoreConfig)
		if err != nil {
			return nil, err
		}

		pgDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %s", err)
		}
		source, err := iofs.New(pgMigration, "postgres/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed postgres migrations: %s", err)
		}
		m, err := migrate.NewWithInstance("iofs", source, "postgres", pgDriver)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres migration instance: %s", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run postgres migrations: %s", err)
		}

		if svc.utxoStore, err = utxoStoreFactory(db); err != nil {
			return nil, fmt.Errorf("failed to open utxo store: %s", err)
		}
		if svc.ruleStore, err = ruleStoreFactory(db); err != nil {
			return nil, fmt.Errorf("failed to open rule store: %s", err)
		}
		if svc.oracleStore, err = oracleStoreFactory(db); err != nil {
			return nil, fmt.Errorf("failed to open oracle store: %s", err)
		}
		if svc.consensusStore, err = consensusStoreFactory(db); err != nil {
			return nil, fmt.Errorf("failed to open consensus store: %s", err)
		}
		if svc.circuitStore, err = circuitStoreFactory(db); err != nil {
			return nil, fmt.Errorf("failed to open circuit store: %s", err)
		}
		if svc.transferStore, err = transferStoreFactory(db); err != nil {
			return nil, fmt.Errorf("failed to open transfer store: %s", err)
		}
		if svc.settingsStore, err = settingsStoreFactory(db); err != nil {
			return nil, fmt.Errorf("failed to open settings store: %s", err)
		}
	default:
		return nil, fmt.Errorf("unknown data store db type")
	}

	return svc, nil
}

func (s *service) Events() domain.EventRepository {
	return s.eventStore
}

func (s *service) Utxos() domain.UtxoRepository {
	return s.utxoStore
}

func (s *service) Rules() domain.RuleRepository {
	return s.ruleStore
}

func (s *service) Oracles() domain.OracleRepository {
	return s.oracleStore
}

func (s *service) Consensus() domain.ConsensusRepository {
	return s.consensusStore
}

func (s *service) Circuits() domain.CircuitRepository {
	return s.circuitStore
}

func (s *service) Transfers() domain.TransferRepository {
	return s.transferStore
}

func (s *service) Settings() domain.SettingsRepository {
	return s.settingsStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.utxoStore.Close()
	s.ruleStore.Close()
	s.oracleStore.Close()
	s.consensusStore.Close()
	s.circuitStore.Close()
	s.transferStore.Close()
	s.settingsStore.Close()
}

func openPostgres(config []interface{}) (*sql.DB, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid store config for postgres")
	}
	dsn, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid DSN for postgres")
	}
	autoCreate, ok := config[1].(bool)
	if !ok {
		return nil, fmt.Errorf("invalid autocreate flag for postgres")
	}
	return pgdb.OpenDb(dsn, autoCreate)
}
