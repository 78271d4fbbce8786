package config

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/arkade-os/depositd/internal/core/application"
	"github.com/arkade-os/depositd/internal/core/ports"
	"github.com/arkade-os/depositd/internal/infrastructure/alertsmanager"
	"github.com/arkade-os/depositd/internal/infrastructure/db"
	pgdb "github.com/arkade-os/depositd/internal/infrastructure/db/postgres"
	inmemorylivestore "github.com/arkade-os/depositd/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/arkade-os/depositd/internal/infrastructure/live-store/redis"
	"github.com/arkade-os/depositd/internal/infrastructure/metrics"
	watermillpublisher "github.com/arkade-os/depositd/internal/infrastructure/publisher/watermill"
	blockscheduler "github.com/arkade-os/depositd/internal/infrastructure/scheduler/block"
	timescheduler "github.com/arkade-os/depositd/internal/infrastructure/scheduler/gocron"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	supportedDbs = supportedType{
		"badger":   {},
		"sqlite":   {},
		"postgres": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
		"block":  {},
	}
	supportedLiveStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
	supportedEventBuses = supportedType{
		"inmemory": {},
		"postgres": {},
	}
)

type Config struct {
	Datadir         string
	Port            uint32
	LogLevel        int
	MaxSnapshotSize int64
	NoMetrics       bool

	IndexName          string
	ExpectedHeight     uint32
	CheckpointInterval int64

	DbType              string
	DbDir               string
	DbUrl               string
	DbAutoCreate        bool
	SchedulerType       string
	LiveStoreType       string
	RedisUrl            string
	RedisTxNumOfRetries int
	EventBusType        string
	EventDbUrl          string
	AlertManagerURL     string
	AlertRollbackDepth  uint32

	repo      ports.RepoManager
	svc       application.Service
	scheduler ports.SchedulerService
	liveStore ports.LiveStore
	publisher ports.EventPublisher
	metrics   *metrics.Collector
	alerts    ports.Alerts
}

func (c *Config) String() string {
	clone := *c
	if clone.DbUrl != "" {
		clone.DbUrl = maskUrl(clone.DbUrl)
	}
	if clone.EventDbUrl != "" {
		clone.EventDbUrl = maskUrl(clone.EventDbUrl)
	}
	if clone.RedisUrl != "" {
		clone.RedisUrl = maskUrl(clone.RedisUrl)
	}
	json, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultDatadir             = btcutil.AppDataDir("depositd", false)
	DefaultPort                = 7080
	defaultLogLevel            = 4
	defaultIndexName           = "deposits"
	defaultDbType              = "badger"
	defaultSchedulerType       = "gocron"
	defaultLiveStoreType       = "inmemory"
	defaultRedisTxNumOfRetries = 10
	defaultCheckpointInterval  = 60 // seconds or blocks, depending on the scheduler
	defaultMaxSnapshotSize     = int64(1 << 30)
	defaultAlertRollbackDepth  = 6
)

// env returns a list of strings prefixed with `DEPOSITD_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("DEPOSITD_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	Port = &cli.UintFlag{
		Usage: "Port to listen on",
		Name:  "port", EnvVars: env("PORT"),
		Value: uint(DefaultPort),
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	MaxSnapshotSize = &cli.Int64Flag{
		Usage: "Max size in bytes of an imported snapshot",
		Name:  "max-snapshot-size", EnvVars: env("MAX_SNAPSHOT_SIZE"),
		Value: defaultMaxSnapshotSize,
	}

	NoMetrics = &cli.BoolFlag{
		Usage: "Disable the prometheus /metrics endpoint",
		Name:  "no-metrics", EnvVars: env("NO_METRICS"),
	}

	IndexName = &cli.StringFlag{
		Usage: "Name of the deposit index, used as storage key",
		Name:  "index-name", EnvVars: env("INDEX_NAME"),
		Value: defaultIndexName,
	}

	ExpectedHeight = &cli.UintFlag{
		Usage: "Expected chain height, used to preallocate the index",
		Name:  "expected-height", EnvVars: env("EXPECTED_HEIGHT"),
	}

	CheckpointInterval = &cli.Int64Flag{
		Usage: "Interval between snapshots, in seconds for gocron or in blocks for block scheduler (0 disables)",
		Name:  "checkpoint-interval", EnvVars: env("CHECKPOINT_INTERVAL"),
		Value: int64(defaultCheckpointInterval),
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (postgres, sqlite, badger)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	DbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if DEPOSITD_DB_TYPE is set to postgres",
		Name:  "pg-db-url", EnvVars: env("PG_DB_URL"),
	}

	DbAutoCreate = &cli.BoolFlag{
		Usage: "Create the postgres database if it does not exist",
		Name:  "pg-db-autocreate", EnvVars: env("PG_DB_AUTOCREATE"),
	}

	SchedulerType = &cli.StringFlag{
		Usage: "Checkpoint scheduler type (gocron, block)",
		Name:  "scheduler-type", EnvVars: env("SCHEDULER_TYPE"),
		Value: defaultSchedulerType,
	}

	LiveStoreType = &cli.StringFlag{
		Usage: "Tip cache type (redis, inmemory)",
		Name:  "live-store-type", EnvVars: env("LIVE_STORE_TYPE"),
		Value: defaultLiveStoreType,
	}

	RedisUrl = &cli.StringFlag{
		Usage: "Redis db connection url if DEPOSITD_LIVE_STORE_TYPE is set to redis",
		Name:  "redis-url", EnvVars: env("REDIS_URL"),
	}

	RedisTxNumOfRetries = &cli.IntFlag{
		Usage: "Maximum number of retries for Redis write operations in case of conflicts",
		Name:  "redis-num-of-retries", EnvVars: env("REDIS_NUM_OF_RETRIES"),
		Value: defaultRedisTxNumOfRetries,
	}

	EventBusType = &cli.StringFlag{
		Usage: "Event bus type (inmemory, postgres), events are not published if unset",
		Name:  "event-bus-type", EnvVars: env("EVENT_BUS_TYPE"),
	}

	EventDbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if DEPOSITD_EVENT_BUS_TYPE is set to postgres",
		Name:  "pg-event-db-url", EnvVars: env("PG_EVENT_DB_URL"),
	}

	AlertManagerURL = &cli.StringFlag{
		Usage: "AlertManager alerts endpoint, alerts are disabled if unset",
		Name:  "alert-manager-url", EnvVars: env("ALERT_MANAGER_URL"),
	}

	AlertRollbackDepth = &cli.UintFlag{
		Usage: "Number of blocks removed by a rollback that triggers an alert (0 disables)",
		Name:  "alert-rollback-depth", EnvVars: env("ALERT_ROLLBACK_DEPTH"),
		Value: uint(defaultAlertRollbackDepth),
	}
)

var Flags = []cli.Flag{
	Datadir,
	Port,
	LogLevel,
	MaxSnapshotSize,
	NoMetrics,
	IndexName,
	ExpectedHeight,
	CheckpointInterval,
	DbType,
	DbUrl,
	DbAutoCreate,
	SchedulerType,
	LiveStoreType,
	RedisUrl,
	RedisTxNumOfRetries,
	EventBusType,
	EventDbUrl,
	AlertManagerURL,
	AlertRollbackDepth,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(c.String(Datadir.Name), "db")

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

	var eventDbUrl string
	if c.String(EventBusType.Name) == "postgres" {
		eventDbUrl = c.String(EventDbUrl.Name)
		if eventDbUrl == "" {
			// Events share the index database by default.
			eventDbUrl = dbUrl
		}
		if eventDbUrl == "" {
			return nil, fmt.Errorf(
				"event bus type set to 'postgres' but event db url is missing",
			)
		}
	}

	port, err := uint32Value(c, Port)
	if err != nil {
		return nil, err
	}
	expectedHeight, err := uint32Value(c, ExpectedHeight)
	if err != nil {
		return nil, err
	}
	alertRollbackDepth, err := uint32Value(c, AlertRollbackDepth)
	if err != nil {
		return nil, err
	}

	return &Config{
		Datadir:             c.String(Datadir.Name),
		Port:                port,
		LogLevel:            c.Int(LogLevel.Name),
		MaxSnapshotSize:     c.Int64(MaxSnapshotSize.Name),
		NoMetrics:           c.Bool(NoMetrics.Name),
		IndexName:           c.String(IndexName.Name),
		ExpectedHeight:      expectedHeight,
		CheckpointInterval:  c.Int64(CheckpointInterval.Name),
		DbType:              c.String(DbType.Name),
		DbDir:               dbPath,
		DbUrl:               dbUrl,
		DbAutoCreate:        c.Bool(DbAutoCreate.Name),
		SchedulerType:       c.String(SchedulerType.Name),
		LiveStoreType:       c.String(LiveStoreType.Name),
		RedisUrl:            redisUrl,
		RedisTxNumOfRetries: c.Int(RedisTxNumOfRetries.Name),
		EventBusType:        c.String(EventBusType.Name),
		EventDbUrl:          eventDbUrl,
		AlertManagerURL:     c.String(AlertManagerURL.Name),
		AlertRollbackDepth:  alertRollbackDepth,
	}, nil
}

func uint32Value(c *cli.Context, flag *cli.UintFlag) (uint32, error) {
	v := uint64(c.Uint(flag.Name))
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("invalid %s %d, must not exceed %d", flag.Name, v, uint32(math.MaxUint32))
	}
	return uint32(v), nil
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

// Validate checks the config and builds every service but the app one.
func (c *Config) Validate() error {
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf(
			"scheduler type not supported, please select one of: %s",
			supportedSchedulers,
		)
	}
	if len(c.LiveStoreType) > 0 && !supportedLiveStores.supports(c.LiveStoreType) {
		return fmt.Errorf(
			"live store type not supported, please select one of: %s",
			supportedLiveStores,
		)
	}
	if len(c.EventBusType) > 0 && !supportedEventBuses.supports(c.EventBusType) {
		return fmt.Errorf(
			"event bus type not supported, please select one of: %s",
			supportedEventBuses,
		)
	}
	if len(c.IndexName) == 0 {
		return fmt.Errorf("missing index name")
	}
	if c.Port == 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("invalid checkpoint interval, must not be negative")
	}
	if c.CheckpointInterval == 0 {
		log.Debug("periodic checkpoints are disabled")
	}
	if c.MaxSnapshotSize <= 0 {
		return fmt.Errorf("invalid max snapshot size, must be greater than 0")
	}
	if c.SchedulerType == "block" && c.LiveStoreType == "" {
		return fmt.Errorf("block scheduler requires a live store")
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
	if err := c.publisherService(); err != nil {
		return err
	}
	c.metricsService()
	c.alertsService()
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

// MetricsHandler returns nil if metrics are disabled.
func (c *Config) MetricsHandler() http.Handler {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Handler()
}

func (c *Config) repoManager() error {
	var dataStoreConfig []interface{}
	logger := log.New()
	logger.SetLevel(log.Level(c.LogLevel))

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	case "postgres":
		dataStoreConfig = []interface{}{c.DbUrl, c.DbAutoCreate}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		DataStoreType:   c.DbType,
		DataStoreConfig: dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) liveStoreService() error {
	var liveStoreSvc ports.LiveStore
	var err error
	switch c.LiveStoreType {
	case "":
		return nil
	case "inmemory":
		liveStoreSvc = inmemorylivestore.NewLiveStore()
	case "redis":
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		liveStoreSvc = redislivestore.NewLiveStore(rdb, c.RedisTxNumOfRetries)
	default:
		err = fmt.Errorf("unknown liveStore type")
	}

	if err != nil {
		return err
	}

	c.liveStore = liveStoreSvc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	case "block":
		svc, err = blockscheduler.NewScheduler(c.liveStore, c.IndexName)
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}

	c.scheduler = svc
	return nil
}

func (c *Config) publisherService() error {
	switch c.EventBusType {
	case "":
		return nil
	case "inmemory":
		c.publisher, _ = watermillpublisher.NewGoChannelPublisher(0)
	case "postgres":
		eventDb, err := pgdb.OpenDb(c.EventDbUrl, false)
		if err != nil {
			return fmt.Errorf("failed to open event db: %w", err)
		}
		publisher, err := watermillpublisher.NewPostgresPublisher(eventDb)
		if err != nil {
			return err
		}
		c.publisher = publisher
	default:
		return fmt.Errorf("unknown event bus type")
	}
	return nil
}

func (c *Config) metricsService() {
	if c.NoMetrics {
		return
	}
	c.metrics = metrics.NewCollector()
}

func (c *Config) alertsService() {
	if c.AlertManagerURL == "" {
		return
	}
	c.alerts = alertsmanager.NewService(c.AlertManagerURL)
}

func (c *Config) appService() error {
	if c.repo == nil {
		return fmt.Errorf("repo manager not set, config must be validated first")
	}

	// A nil *Collector must not end up in a non-nil interface.
	var metricsSvc ports.Metrics
	if c.metrics != nil {
		metricsSvc = c.metrics
	}

	svc, err := application.NewService(
		application.Config{
			IndexName:          c.IndexName,
			ExpectedHeight:     c.ExpectedHeight,
			CheckpointInterval: c.CheckpointInterval,
			AlertRollbackDepth: c.AlertRollbackDepth,
		},
		c.repo, c.liveStore, c.scheduler, c.publisher, metricsSvc, c.alerts,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

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

func maskUrl(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return "••••••"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "••••••" + rest[at:]
	}
	return scheme + "://" + rest
}
