package application

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	inmemoryidentity "github.com/veridex-io/veridexd/internal/infrastructure/identity/inmemory"
	inmemorylivestore "github.com/veridex-io/veridexd/internal/infrastructure/live-store/inmemory"
)

type fakeEventRepo struct {
	lock   sync.Mutex
	events map[string][]domain.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string][]domain.Event)}
}

func (r *fakeEventRepo) Save(_ context.Context, topic, _ string, events []domain.Event) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events[topic] = append(r.events[topic], events...)
	return nil
}

func (r *fakeEventRepo) RegisterEventsHandler(string, func([]domain.Event)) {}
func (r *fakeEventRepo) ClearRegisteredHandlers(...string)                 {}
func (r *fakeEventRepo) Close()                                            {}

func (r *fakeEventRepo) byTopic(topic string) []domain.Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]domain.Event{}, r.events[topic]...)
}

type fakeUtxoRepo struct {
	lock    sync.Mutex
	counter uint64
	utxos   map[string]*domain.UTXO
}

func newFakeUtxoRepo() *fakeUtxoRepo {
	return &fakeUtxoRepo{utxos: make(map[string]*domain.UTXO)}
}

func (r *fakeUtxoRepo) NextCounter(context.Context) (uint64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.counter++
	return r.counter, nil
}

func (r *fakeUtxoRepo) AddUtxo(_ context.Context, utxo domain.UTXO) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.utxos[utxo.ID] = &utxo
	return nil
}

func (r *fakeUtxoRepo) GetUtxo(_ context.Context, id string) (*domain.UTXO, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	utxo, ok := r.utxos[id]
	if !ok {
		return nil, nil
	}
	copied := *utxo
	return &copied, nil
}

func (r *fakeUtxoRepo) GetUtxos(ctx context.Context, ids []string) ([]domain.UTXO, error) {
	utxos := make([]domain.UTXO, 0, len(ids))
	for _, id := range ids {
		utxo, err := r.GetUtxo(ctx, id)
		if err != nil {
			return nil, err
		}
		if utxo != nil {
			utxos = append(utxos, *utxo)
		}
	}
	return utxos, nil
}

func (r *fakeUtxoRepo) GetUtxosByOwner(_ context.Context, owner string) ([]domain.UTXO, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var utxos []domain.UTXO
	for _, utxo := range r.utxos {
		if utxo.Owner == owner {
			utxos = append(utxos, *utxo)
		}
	}
	return utxos, nil
}

func (r *fakeUtxoRepo) GetUnspentUtxosByToken(_ context.Context, tokenID string) ([]domain.UTXO, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var utxos []domain.UTXO
	for _, utxo := range r.utxos {
		if utxo.TokenID == tokenID && !utxo.Spent {
			utxos = append(utxos, *utxo)
		}
	}
	return utxos, nil
}

func (r *fakeUtxoRepo) SpendUtxo(_ context.Context, id, txHash string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if utxo, ok := r.utxos[id]; ok {
		utxo.Spent = true
		utxo.SpentBy = txHash
	}
	return nil
}

func (r *fakeUtxoRepo) UpdateComplianceHash(
	_ context.Context, id, newHash string, validatedAt int64,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if utxo, ok := r.utxos[id]; ok {
		utxo.ComplianceHash = newHash
		utxo.LastValidatedAt = validatedAt
	}
	return nil
}

func (r *fakeUtxoRepo) SetLastValidation(
	_ context.Context, id string, validation domain.ComplianceValidation,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if utxo, ok := r.utxos[id]; ok {
		utxo.LastValidation = &validation
	}
	return nil
}

func (r *fakeUtxoRepo) Close() {}

type fakeRuleRepo struct {
	lock    sync.Mutex
	rules   map[string]*domain.TokenRules
	trusted map[string]struct{}
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{
		rules:   make(map[string]*domain.TokenRules),
		trusted: make(map[string]struct{}),
	}
}

func (r *fakeRuleRepo) SetTokenRules(_ context.Context, rules domain.TokenRules) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.rules[rules.TokenID] = &rules
	return nil
}

func (r *fakeRuleRepo) GetTokenRules(_ context.Context, tokenID string) (*domain.TokenRules, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	rules, ok := r.rules[tokenID]
	if !ok {
		return nil, nil
	}
	copied := *rules
	return &copied, nil
}

func (r *fakeRuleRepo) AddTrustedContract(_ context.Context, contract string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.trusted[contract] = struct{}{}
	return nil
}

func (r *fakeRuleRepo) RemoveTrustedContract(_ context.Context, contract string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.trusted, contract)
	return nil
}

func (r *fakeRuleRepo) IsTrustedContract(_ context.Context, contract string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	_, ok := r.trusted[contract]
	return ok, nil
}

func (r *fakeRuleRepo) GetTrustedContracts(_ context.Context) ([]string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	contracts := make([]string, 0, len(r.trusted))
	for contract := range r.trusted {
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

func (r *fakeRuleRepo) Close() {}

type fakeOracleRepo struct {
	lock    sync.Mutex
	oracles map[string]*domain.Oracle
}

func newFakeOracleRepo() *fakeOracleRepo {
	return &fakeOracleRepo{oracles: make(map[string]*domain.Oracle)}
}

func (r *fakeOracleRepo) AddOracle(_ context.Context, oracle domain.Oracle) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.oracles[oracle.ID] = &oracle
	return nil
}

func (r *fakeOracleRepo) RemoveOracle(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.oracles, id)
	return nil
}

func (r *fakeOracleRepo) GetOracle(_ context.Context, id string) (*domain.Oracle, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	oracle, ok := r.oracles[id]
	if !ok {
		return nil, nil
	}
	copied := *oracle
	return &copied, nil
}

func (r *fakeOracleRepo) GetAllOracles(_ context.Context) ([]domain.Oracle, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	oracles := make([]domain.Oracle, 0, len(r.oracles))
	for _, oracle := range r.oracles {
		oracles = append(oracles, *oracle)
	}
	return oracles, nil
}

func (r *fakeOracleRepo) GetActiveOracles(_ context.Context) ([]domain.Oracle, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var oracles []domain.Oracle
	for _, oracle := range r.oracles {
		if oracle.Active {
			oracles = append(oracles, *oracle)
		}
	}
	return oracles, nil
}

func (r *fakeOracleRepo) UpdateOracle(_ context.Context, oracle domain.Oracle) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.oracles[oracle.ID] = &oracle
	return nil
}

func (r *fakeOracleRepo) Close() {}

type fakeConsensusRepo struct {
	lock    sync.Mutex
	queries map[string]*domain.ConsensusQuery
}

func newFakeConsensusRepo() *fakeConsensusRepo {
	return &fakeConsensusRepo{queries: make(map[string]*domain.ConsensusQuery)}
}

func (r *fakeConsensusRepo) AddQuery(_ context.Context, query domain.ConsensusQuery) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.queries[query.ID] = &query
	return nil
}

func (r *fakeConsensusRepo) GetQuery(_ context.Context, id string) (*domain.ConsensusQuery, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	query, ok := r.queries[id]
	if !ok {
		return nil, nil
	}
	copied := *query
	return &copied, nil
}

func (r *fakeConsensusRepo) GetLatestResolved(
	_ context.Context, subject string, queryType domain.QueryType,
) (*domain.ConsensusQuery, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var latest *domain.ConsensusQuery
	for _, query := range r.queries {
		if query.Subject != subject || query.Type != queryType {
			continue
		}
		if query.Status != domain.QueryStatusResolved {
			continue
		}
		if latest == nil || query.ResolvedAt > latest.ResolvedAt {
			latest = query
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeConsensusRepo) GetResolvedQueries(
	_ context.Context, after, before int64,
) ([]domain.ConsensusQuery, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var queries []domain.ConsensusQuery
	for _, query := range r.queries {
		if query.Status != domain.QueryStatusResolved {
			continue
		}
		if query.ResolvedAt >= after && query.ResolvedAt < before {
			queries = append(queries, *query)
		}
	}
	return queries, nil
}

func (r *fakeConsensusRepo) Close() {}

type fakeCircuitRepo struct {
	lock     sync.Mutex
	circuits map[domain.CircuitID]*domain.Circuit
}

func newFakeCircuitRepo() *fakeCircuitRepo {
	return &fakeCircuitRepo{circuits: make(map[domain.CircuitID]*domain.Circuit)}
}

func (r *fakeCircuitRepo) SetCircuit(_ context.Context, circuit domain.Circuit) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.circuits[circuit.ID] = &circuit
	return nil
}

func (r *fakeCircuitRepo) GetCircuit(_ context.Context, id domain.CircuitID) (*domain.Circuit, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	circuit, ok := r.circuits[id]
	if !ok {
		return nil, nil
	}
	copied := *circuit
	return &copied, nil
}

func (r *fakeCircuitRepo) GetAllCircuits(_ context.Context) ([]domain.Circuit, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	circuits := make([]domain.Circuit, 0, len(r.circuits))
	for _, circuit := range r.circuits {
		circuits = append(circuits, *circuit)
	}
	return circuits, nil
}

func (r *fakeCircuitRepo) IncrementCounters(_ context.Context, id domain.CircuitID, valid bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	circuit, ok := r.circuits[id]
	if !ok {
		return nil
	}
	circuit.TotalVerified++
	if valid {
		circuit.TotalValid++
	}
	return nil
}

func (r *fakeCircuitRepo) Close() {}

type fakeTransferRepo struct {
	lock    sync.Mutex
	records map[string]*domain.TransferRecord
}

func newFakeTransferRepo() *fakeTransferRepo {
	return &fakeTransferRepo{records: make(map[string]*domain.TransferRecord)}
}

func (r *fakeTransferRepo) GetTransferRecord(
	_ context.Context, tokenID, holder string,
) (*domain.TransferRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	record, ok := r.records[tokenID+"/"+holder]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *fakeTransferRepo) RecordTransfer(
	_ context.Context, tokenID, holder string, at int64,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	key := tokenID + "/" + holder
	record, ok := r.records[key]
	if !ok {
		record = &domain.TransferRecord{TokenID: tokenID, Holder: holder}
		r.records[key] = record
	}
	record.LastTransferAt = at
	record.TransferCount++
	return nil
}

func (r *fakeTransferRepo) Close() {}

type fakeSettingsRepo struct {
	lock     sync.Mutex
	settings *domain.Settings
}

func (r *fakeSettingsRepo) Get(_ context.Context) (*domain.Settings, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.settings == nil {
		return nil, nil
	}
	copied := *r.settings
	return &copied, nil
}

func (r *fakeSettingsRepo) Update(_ context.Context, settings domain.Settings) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.settings = &settings
	return nil
}

func (r *fakeSettingsRepo) Close() {}

type fakeRepoManager struct {
	events    *fakeEventRepo
	utxos     *fakeUtxoRepo
	rules     *fakeRuleRepo
	oracles   *fakeOracleRepo
	consensus *fakeConsensusRepo
	circuits  *fakeCircuitRepo
	transfers *fakeTransferRepo
	settings  *fakeSettingsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		events:    newFakeEventRepo(),
		utxos:     newFakeUtxoRepo(),
		rules:     newFakeRuleRepo(),
		oracles:   newFakeOracleRepo(),
		consensus: newFakeConsensusRepo(),
		circuits:  newFakeCircuitRepo(),
		transfers: newFakeTransferRepo(),
		settings:  &fakeSettingsRepo{},
	}
}

func (m *fakeRepoManager) Events() domain.EventRepository       { return m.events }
func (m *fakeRepoManager) Utxos() domain.UtxoRepository         { return m.utxos }
func (m *fakeRepoManager) Rules() domain.RuleRepository         { return m.rules }
func (m *fakeRepoManager) Oracles() domain.OracleRepository     { return m.oracles }
func (m *fakeRepoManager) Consensus() domain.ConsensusRepository {
	return m.consensus
}
func (m *fakeRepoManager) Circuits() domain.CircuitRepository   { return m.circuits }
func (m *fakeRepoManager) Transfers() domain.TransferRepository { return m.transfers }
func (m *fakeRepoManager) Settings() domain.SettingsRepository  { return m.settings }
func (m *fakeRepoManager) Close()                               {}

// fakeVerifier answers every pairing check with a fixed outcome and counts
// how often it was consulted, so tests can observe cache behavior.
type fakeVerifier struct {
	lock  sync.Mutex
	ok    bool
	err   error
	calls int
}

func (v *fakeVerifier) Verify([]byte, domain.Proof, [][]byte) (bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.calls++
	return v.ok, v.err
}

func (v *fakeVerifier) callCount() int {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.calls
}

type fakeScheduler struct {
	lock    sync.Mutex
	tasks   []func()
	started bool
	stopped bool
}

func (s *fakeScheduler) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.started = true
}

func (s *fakeScheduler) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stopped = true
}

func (s *fakeScheduler) ScheduleTaskEvery(_ time.Duration, task func()) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *fakeScheduler) runAll() {
	s.lock.Lock()
	tasks := append([]func(){}, s.tasks...)
	s.lock.Unlock()
	for _, task := range tasks {
		task()
	}
}

// testServices wires the full application stack on in-memory adapters.
type testServices struct {
	repo      *fakeRepoManager
	liveStore ports.LiveStore
	identity  *inmemoryidentity.Provider
	verifier  *fakeVerifier

	rules     RulesEngine
	consensus ConsensusService
	proofs    ProofService
	registry  RegistryService
	validator ValidatorService
	admin     AdminService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	repo := newFakeRepoManager()
	liveStore := inmemorylivestore.NewLiveStore()
	identity := inmemoryidentity.NewIdentityProvider()
	verifier := &fakeVerifier{ok: true}

	rules := NewRulesEngine(repo)
	consensus := NewConsensusService(repo, liveStore)
	proofs, err := NewProofService(repo, verifier, 16)
	require.NoError(t, err)
	registry := NewRegistryService(repo, rules, consensus, proofs, identity)
	validator := NewValidatorService(repo, rules, consensus, registry, identity)
	admin := NewAdminService(repo)

	return &testServices{
		repo:      repo,
		liveStore: liveStore,
		identity:  identity,
		verifier:  verifier,
		rules:     rules,
		consensus: consensus,
		proofs:    proofs,
		registry:  registry,
		validator: validator,
		admin:     admin,
	}
}

type testOracle struct {
	privKey *btcec.PrivateKey
	id      string
}

func newTestOracle(t *testing.T) testOracle {
	t.Helper()
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return testOracle{
		privKey: privKey,
		id:      hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey())),
	}
}

func (o testOracle) sign(t *testing.T, msg [32]byte) string {
	t.Helper()
	sig, err := schnorr.Sign(o.privKey, msg[:])
	require.NoError(t, err)
	return hex.EncodeToString(sig.Serialize())
}

// registerOracles seeds n active oracles directly in the repository.
func registerOracles(t *testing.T, repo *fakeRepoManager, n int) []testOracle {
	t.Helper()
	ctx := context.Background()
	oracles := make([]testOracle, 0, n)
	for i := 0; i < n; i++ {
		oracle := newTestOracle(t)
		require.NoError(t, repo.Oracles().AddOracle(ctx, domain.Oracle{
			ID:           oracle.id,
			Name:         "oracle",
			Active:       true,
			RegisteredAt: time.Now().Unix(),
		}))
		oracles = append(oracles, oracle)
	}
	return oracles
}

// linkHolder binds a holder to a fresh identity with the given profile.
func linkHolder(
	s *testServices, holder, identityRef string, info inmemoryidentity.HolderInfo,
) {
	s.identity.LinkIdentity(holder, identityRef)
	s.identity.SetHolderInfo(identityRef, info)
}
