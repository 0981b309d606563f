// Package testing provides test utilities and database setup for repository and flow integration tests
package testing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/treebio/treebio/models"
)

// ErrDatabaseUnavailable means neither a configured server nor a container runtime could be reached.
// Integration tests skip on it.
var ErrDatabaseUnavailable = errors.New("no test database available")

const postgresImage = "postgres:16-alpine"

// TestDBConfig holds configuration for test database connections
type TestDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// GetTestDBConfig loads test database configuration from environment variables.
// It returns nil when TEST_DB_HOST is not set.
func GetTestDBConfig() *TestDBConfig {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return nil
	}
	return &TestDBConfig{
		Host:     host,
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		SSLMode:  getEnv("TEST_DB_SSL_MODE", "disable"),
	}
}

// TestDB represents a migrated test database. It is backed either by a throwaway
// database on a configured server or by a disposable postgres container.
type TestDB struct {
	DB   *gorm.DB
	Name string

	config    *TestDBConfig
	container *tcpostgres.PostgresContainer
}

// SetupTestDB creates a fresh database and migrates every model
func SetupTestDB(ctx context.Context) (*TestDB, error) {
	var (
		tdb *TestDB
		err error
	)
	if cfg := GetTestDBConfig(); cfg != nil {
		tdb, err = setupOnServer(cfg)
	} else {
		tdb, err = setupInContainer(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := tdb.DB.AutoMigrate(models.AllModels()...); err != nil {
		_ = tdb.TeardownTestDB(ctx)
		return nil, fmt.Errorf("failed to migrate test database %s: %w", tdb.Name, err)
	}
	return tdb, nil
}

func setupOnServer(cfg *TestDBConfig) (*TestDB, error) {
	dbName := fmt.Sprintf("treebio_test_%d_%d", time.Now().Unix(), rand.IntN(10000))

	adminDB, err := openSilent(serverDSN(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer closeDB(adminDB)

	if err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)).Error; err != nil {
		return nil, fmt.Errorf("failed to create test database %s: %w", dbName, err)
	}

	db, err := openSilent(serverDSN(cfg, dbName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database %s: %w", dbName, err)
	}
	return &TestDB{DB: db, Name: dbName, config: cfg}, nil
}

func setupInContainer(ctx context.Context) (tdb *TestDB, err error) {
	// testcontainers panics on some hosts without a Docker socket
	defer func() {
		if r := recover(); r != nil {
			tdb, err = nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, r)
		}
	}()

	const dbName = "treebio_test"
	ctr, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		if ctr != nil {
			_ = testcontainers.TerminateContainer(ctr)
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return nil, fmt.Errorf("failed to read container connection string: %w", err)
	}

	db, err := openSilent(dsn)
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return nil, fmt.Errorf("failed to connect to container database: %w", err)
	}
	return &TestDB{DB: db, Name: dbName, container: ctr}, nil
}

// TeardownTestDB drops the test database or terminates its container
func (tdb *TestDB) TeardownTestDB(ctx context.Context) error {
	if tdb.DB != nil {
		closeDB(tdb.DB)
	}

	if tdb.container != nil {
		return testcontainers.TerminateContainer(tdb.container)
	}

	adminDB, err := openSilent(serverDSN(tdb.config, ""))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL for cleanup: %w", err)
	}
	defer closeDB(adminDB)

	// Force disconnect all connections to the test database
	adminDB.WithContext(ctx).Exec(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = ? AND pid <> pg_backend_pid()",
		tdb.Name)

	if err := adminDB.WithContext(ctx).Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", tdb.Name)).Error; err != nil {
		return fmt.Errorf("failed to drop test database %s: %w", tdb.Name, err)
	}
	return nil
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	// Order matters due to foreign key constraints
	tables := []string{
		"link_clicks",
		"profile_visits",
		"social_links",
		"links",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

func serverDSN(cfg *TestDBConfig, dbName string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.SSLMode)
	if dbName != "" {
		dsn += " dbname=" + dbName
	}
	return dsn
}

func openSilent(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
