package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/veridex-io/veridexd/internal/core/application"
	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	"github.com/veridex-io/veridexd/internal/infrastructure/db"
	inmemoryidentity "github.com/veridex-io/veridexd/internal/infrastructure/identity/inmemory"
	inmemorylivestore "github.com/veridex-io/veridexd/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/veridex-io/veridexd/internal/infrastructure/live-store/redis"
	timescheduler "github.com/veridex-io/veridexd/internal/infrastructure/scheduler/gocron"
	gnarkverifier "github.com/veridex-io/veridexd/internal/infrastructure/zk/gnark"
)

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}

var (
	supportedEventDbs = supportedType{
		"badger":   {},
		"postgres": {},
	}
	supportedDbs = supportedType{
		"badger":   {},
		"postgres": {},
	}
	supportedLiveStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
	supportedIdentityProviders = supportedType{
		"inmemory": {},
	}
)

type Config struct {
	Datadir  string
	LogLevel int

	DbType              string
	EventDbType         string
	DbDir               string
	DbUrl               string
	EventDbDir          string
	EventDbUrl          string
	LiveStoreType       string
	RedisUrl            string
	RedisTxNumOfRetries int
	IdentityProvider    string

	ProofCacheSize   int
	SweepInterval    int64
	QueryMaxAge      int64
	FreshnessWindow  int64
	ValidationTTL    int64
	InitialThreshold int

	repo         ports.RepoManager
	liveStore    ports.LiveStore
	scheduler    ports.SchedulerService
	identity     ports.IdentityProvider
	verifier     ports.PairingVerifier
	rulesEngine  application.RulesEngine
	consensusSvc application.ConsensusService
	proofSvc     application.ProofService
	registrySvc  application.RegistryService
	validatorSvc application.ValidatorService
	adminSvc     application.AdminService
}

func (c *Config) String() string {
	clone := *c
	if clone.RedisUrl != "" {
		clone.RedisUrl = "••••••"
	}
	json, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultDatadir             = dataDir()
	defaultLogLevel            = 4
	defaultDbType              = "badger"
	defaultEventDbType         = "badger"
	defaultLiveStoreType       = "inmemory"
	defaultIdentityProvider    = "inmemory"
	defaultRedisTxNumOfRetries = 10
	defaultProofCacheSize      = 1024
	defaultSweepInterval       = 300    // 5 minutes
	defaultQueryMaxAge         = 3600   // 1 hour
	defaultFreshnessWindow     = 3600   // 1 hour
	defaultValidationTTL       = 86400  // 24 hours
	defaultInitialThreshold    = 1
)

// env returns a list of strings prefixed with `VERIDEXD_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("VERIDEXD_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (postgres, badger)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	DbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if VERIDEXD_DB_TYPE is set to postgres",
		Name:  "pg-db-url", EnvVars: env("PG_DB_URL"),
	}

	EventDbType = &cli.StringFlag{
		Usage: "Event database type (postgres, badger)",
		Name:  "event-db-type", EnvVars: env("EVENT_DB_TYPE"),
		Value: defaultEventDbType,
	}

	EventDbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if VERIDEXD_EVENT_DB_TYPE is set to postgres",
		Name:  "pg-event-db-url", EnvVars: env("PG_EVENT_DB_URL"),
	}

	LiveStoreType = &cli.StringFlag{
		Usage: "Cache service type (redis, inmemory)",
		Name:  "live-store-type", EnvVars: env("LIVE_STORE_TYPE"),
		Value: defaultLiveStoreType,
	}

	RedisUrl = &cli.StringFlag{
		Usage: "Redis db connection url if VERIDEXD_LIVE_STORE_TYPE is set to redis",
		Name:  "redis-url", EnvVars: env("REDIS_URL"),
	}

	RedisTxNumOfRetries = &cli.IntFlag{
		Usage: "Maximum number of retries for Redis write operations in case of conflicts",
		Name:  "redis-num-of-retries", EnvVars: env("REDIS_NUM_OF_RETRIES"),
		Value: defaultRedisTxNumOfRetries,
	}

	IdentityProvider = &cli.StringFlag{
		Usage: "Identity provider type (inmemory)",
		Name:  "identity-provider", EnvVars: env("IDENTITY_PROVIDER"),
		Value: defaultIdentityProvider,
	}

	ProofCacheSize = &cli.IntFlag{
		Usage: "Number of proof verification results to cache",
		Name:  "proof-cache-size", EnvVars: env("PROOF_CACHE_SIZE"),
		Value: defaultProofCacheSize,
	}

	SweepInterval = &cli.Int64Flag{
		Usage: "Interval in seconds between sweeps of stale consensus queries",
		Name:  "sweep-interval", EnvVars: env("SWEEP_INTERVAL"),
		Value: int64(defaultSweepInterval),
	}

	QueryMaxAge = &cli.Int64Flag{
		Usage: "Seconds after which an open consensus query is dropped",
		Name:  "query-max-age", EnvVars: env("QUERY_MAX_AGE"),
		Value: int64(defaultQueryMaxAge),
	}

	FreshnessWindow = &cli.Int64Flag{
		Usage: "Seconds a resolved consensus snapshot stays usable",
		Name:  "freshness-window", EnvVars: env("FRESHNESS_WINDOW"),
		Value: int64(defaultFreshnessWindow),
	}

	ValidationTTL = &cli.Int64Flag{
		Usage: "Seconds a utxo compliance validation stays fresh",
		Name:  "validation-ttl", EnvVars: env("VALIDATION_TTL"),
		Value: int64(defaultValidationTTL),
	}

	InitialThreshold = &cli.IntFlag{
		Usage: "Consensus threshold used until an admin updates it",
		Name:  "initial-threshold", EnvVars: env("INITIAL_THRESHOLD"),
		Value: defaultInitialThreshold,
	}
)

var Flags = []cli.Flag{
	Datadir,
	LogLevel,
	DbType,
	DbUrl,
	EventDbType,
	EventDbUrl,
	LiveStoreType,
	RedisUrl,
	RedisTxNumOfRetries,
	IdentityProvider,
	ProofCacheSize,
	SweepInterval,
	QueryMaxAge,
	FreshnessWindow,
	ValidationTTL,
	InitialThreshold,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(c.String(Datadir.Name), "db")

	var eventDbUrl string
	if c.String(EventDbType.Name) == "postgres" {
		eventDbUrl = c.String(EventDbUrl.Name)
		if eventDbUrl == "" {
			return nil, fmt.Errorf("event db type set to 'postgres' but event db url is missing")
		}
	}

	var dbUrl string
	if c.String(DbType.Name) == "postgres" {
		dbUrl = c.String(DbUrl.Name)
		if dbUrl == "" {
			return nil, fmt.Errorf("db type set to 'postgres' but db url is missing")
		}
	}

	var redisUrl string
	if c.String(LiveStoreType.Name) == "redis" {
		redisUrl = c.String(RedisUrl.Name)
		if redisUrl == "" {
			return nil, fmt.Errorf("live store type set to 'redis' but redis url is missing")
		}
	}

	return &Config{
		Datadir:             c.String(Datadir.Name),
		LogLevel:            c.Int(LogLevel.Name),
		DbType:              c.String(DbType.Name),
		EventDbType:         c.String(EventDbType.Name),
		DbDir:               dbPath,
		DbUrl:               dbUrl,
		EventDbDir:          dbPath,
		EventDbUrl:          eventDbUrl,
		LiveStoreType:       c.String(LiveStoreType.Name),
		RedisUrl:            redisUrl,
		RedisTxNumOfRetries: c.Int(RedisTxNumOfRetries.Name),
		IdentityProvider:    c.String(IdentityProvider.Name),
		ProofCacheSize:      c.Int(ProofCacheSize.Name),
		SweepInterval:       c.Int64(SweepInterval.Name),
		QueryMaxAge:         c.Int64(QueryMaxAge.Name),
		FreshnessWindow:     c.Int64(FreshnessWindow.Name),
		ValidationTTL:       c.Int64(ValidationTTL.Name),
		InitialThreshold:    c.Int(InitialThreshold.Name),
	}, nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0o755)
	}
	return nil
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".veridexd")
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf(
			"event db type not supported, please select one of: %s",
			supportedEventDbs,
		)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if len(c.LiveStoreType) > 0 && !supportedLiveStores.supports(c.LiveStoreType) {
		return fmt.Errorf(
			"live store type not supported, please select one of: %s",
			supportedLiveStores,
		)
	}
	if !supportedIdentityProviders.supports(c.IdentityProvider) {
		return fmt.Errorf(
			"identity provider not supported, please select one of: %s",
			supportedIdentityProviders,
		)
	}
	if c.InitialThreshold < 1 {
		return fmt.Errorf("invalid initial threshold, must be at least 1")
	}
	if c.SweepInterval < 1 {
		return fmt.Errorf("invalid sweep interval, must be at least 1 second")
	}
	if c.QueryMaxAge < 1 {
		return fmt.Errorf("invalid query max age, must be at least 1 second")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.identityService(); err != nil {
		return err
	}
	if err := c.appServices(); err != nil {
		return err
	}
	return c.seedSettings()
}

// seedSettings stores the flag-provided governance defaults on first start.
// Once settings exist in the store they are owned by the admin service and
// the flags are ignored.
func (c *Config) seedSettings() error {
	ctx := context.Background()

	settings, err := c.repo.Settings().Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %s", err)
	}
	if settings != nil {
		return nil
	}

	return c.repo.Settings().Update(ctx, domain.Settings{
		ConsensusThreshold: c.InitialThreshold,
		FreshnessWindow:    c.FreshnessWindow,
		ValidationTTL:      c.ValidationTTL,
		UpdatedAt:          time.Now(),
	})
}

func (c *Config) RulesEngine() application.RulesEngine {
	return c.rulesEngine
}

func (c *Config) ConsensusService() application.ConsensusService {
	return c.consensusSvc
}

func (c *Config) ProofService() application.ProofService {
	return c.proofSvc
}

func (c *Config) RegistryService() application.RegistryService {
	return c.registrySvc
}

func (c *Config) ValidatorService() application.ValidatorService {
	return c.validatorSvc
}

func (c *Config) AdminService() application.AdminService {
	return c.adminSvc
}

func (c *Config) RepoManager() ports.RepoManager {
	return c.repo
}

func (c *Config) LiveStore() ports.LiveStore {
	return c.liveStore
}

func (c *Config) Sweeper() *application.Sweeper {
	return application.NewSweeper(
		c.repo, c.liveStore, c.scheduler, c.consensusSvc,
		time.Duration(c.SweepInterval)*time.Second,
		time.Duration(c.QueryMaxAge)*time.Second,
	)
}

func (c *Config) repoManager() error {
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	case "postgres":
		eventStoreConfig = []interface{}{c.EventDbUrl}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "postgres":
		dataStoreConfig = []interface{}{c.DbUrl}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) liveStoreService() error {
	switch c.LiveStoreType {
	case "inmemory":
		c.liveStore = inmemorylivestore.NewLiveStore()
	case "redis":
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		c.liveStore = redislivestore.NewLiveStore(rdb, c.RedisTxNumOfRetries)
	default:
		return fmt.Errorf("unknown live store type")
	}
	return nil
}

func (c *Config) schedulerService() error {
	c.scheduler = timescheduler.NewScheduler()
	return nil
}

func (c *Config) identityService() error {
	switch c.IdentityProvider {
	case "inmemory":
		c.identity = inmemoryidentity.NewIdentityProvider()
	default:
		return fmt.Errorf("unknown identity provider")
	}
	return nil
}

func (c *Config) appServices() error {
	c.verifier = gnarkverifier.NewVerifier()
	c.rulesEngine = application.NewRulesEngine(c.repo)
	c.consensusSvc = application.NewConsensusService(c.repo, c.liveStore)

	proofSvc, err := application.NewProofService(c.repo, c.verifier, c.ProofCacheSize)
	if err != nil {
		return err
	}
	c.proofSvc = proofSvc

	c.registrySvc = application.NewRegistryService(
		c.repo, c.rulesEngine, c.consensusSvc, c.proofSvc, c.identity,
	)
	c.validatorSvc = application.NewValidatorService(
		c.repo, c.rulesEngine, c.consensusSvc, c.registrySvc, c.identity,
	)
	c.adminSvc = application.NewAdminService(c.repo)
	return nil
}
