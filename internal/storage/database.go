package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"mediguide/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the SQL database configured for dbType (sqlite3 or mysql).
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// every pooled connection to :memory: would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	case "mysql":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.DBName,
				dbCfg.Params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the symptom document table is present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS symptom_documents (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				doc_id TEXT NOT NULL UNIQUE,
				department TEXT NOT NULL,
				symptom TEXT NOT NULL,
				question TEXT NOT NULL,
				answer TEXT NOT NULL,
				embedding TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_symptom_documents_department ON symptom_documents(department)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS symptom_documents (
				seq BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				doc_id VARCHAR(64) NOT NULL,
				department VARCHAR(255) NOT NULL,
				symptom VARCHAR(255) NOT NULL,
				question MEDIUMTEXT NOT NULL,
				answer MEDIUMTEXT NOT NULL,
				embedding MEDIUMTEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (seq),
				UNIQUE KEY uniq_symptom_documents_doc (doc_id),
				INDEX idx_symptom_documents_department (department)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
