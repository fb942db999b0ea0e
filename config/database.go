package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DriverMySQL  = "mysql"
	DriverSqlite = "sqlite"
)

var (
	db       *gorm.DB
	dbDriver string
)

func GetDB() *gorm.DB {
	return db
}

// GetDBDriver reports which dialect the global DB was opened with.
func GetDBDriver() string {
	return dbDriver
}

func init() {
	// Load env from .env
	godotenv.Load()
	// IMPORTANT (Cloud Run):
	// Do NOT block startup in init() waiting for DB.
	// Cloud Run requires the container to start listening on $PORT quickly.
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
//
// DB_DRIVER selects the dialect:
//   - mysql (default): DB_USER, DB_PASSWORD, DB_HOST, DB_PORT, DB_NAME
//   - sqlite: DB_NAME is the file path or DSN ("file::memory:?cache=shared" when empty),
//     used for local development and tests
func ConnectDatabaseWithRetry() {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = DriverMySQL
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSqlite:
		dsn := strings.TrimSpace(os.Getenv("DB_NAME"))
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	default:
		driver = DriverMySQL
		dialector = mysql.Open(mysqlDSN())
	}

	var attempt int
	for {
		attempt++
		conn, err := gorm.Open(dialector, initConfig())
		if err == nil {
			if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
				if driver == DriverSqlite {
					// sqlite allows a single writer; one connection serializes review transactions.
					sqlDB.SetMaxOpenConns(1)
				} else {
					// Env overrides (optional):
					// - DB_MAX_OPEN_CONNS (default 50)
					// - DB_MAX_IDLE_CONNS (default 25)
					// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
					// - DB_CONN_MAX_IDLE_TIME_SECONDS (default 60)
					maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 50)
					maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 25)
					connMaxLife := time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second
					connMaxIdle := time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second

					if maxOpen > 0 {
						sqlDB.SetMaxOpenConns(maxOpen)
					}
					if maxIdle >= 0 {
						sqlDB.SetMaxIdleConns(maxIdle)
					}
					if connMaxLife > 0 {
						sqlDB.SetConnMaxLifetime(connMaxLife)
					}
					if connMaxIdle > 0 {
						sqlDB.SetConnMaxIdleTime(connMaxIdle)
					}
				}
			}

			if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			db = conn
			dbDriver = driver
			log.Printf("connected to database (driver=%s attempt=%d)", driver, attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (driver=%s attempt=%d): %v; retrying in %s", driver, attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// CloseDatabase closes the global connection pool (tests and one-shot tools).
func CloseDatabase() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mysqlDSN() string {
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")

	network := "tcp"
	address := fmt.Sprintf("%s:%s", dbHost, dbPort)

	// Cloud Run + Cloud SQL: when DB_HOST is "/cloudsql/<CONNECTION_NAME>",
	// connect using a Unix domain socket provided by Cloud SQL Auth Proxy.
	if strings.HasPrefix(dbHost, "/cloudsql/") {
		network = "unix"
		address = dbHost
	}

	return fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
		dbUser,
		dbPassword,
		network,
		address,
		dbName,
	)
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// InitConfig Initialize Config
func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         WriteGormLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// InitLog Connection Log Configuration
func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Output to standard output
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error, // Adjust log level as needed
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
	return newLogger
}

// InitNamingStrategy Init NamingStrategy
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}

// WriteGormLog sends SQL logs to GORM_LOG when set (verbose, for debugging),
// otherwise falls back to error-level stdout logging.
func WriteGormLog() logger.Interface {
	logFile := os.Getenv("GORM_LOG")
	if logFile == "" {
		return initLog()
	}
	f, err := os.Create(logFile)
	if err != nil {
		log.Printf("cannot create GORM_LOG file %s: %v", logFile, err)
		return initLog()
	}
	newLogger := logger.New(log.New(io.MultiWriter(f), "\r\n", log.LstdFlags), logger.Config{
		Colorful:      true,
		LogLevel:      logger.Info,
		SlowThreshold: time.Second,
	})
	return newLogger
}
