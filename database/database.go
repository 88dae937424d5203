// Package database provides database initialization and connection management
// for the operational log store.
package database

import (
	"database/sql"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// Initialize opens a connection to the SQLite log database and runs
// migrations. The database path is provided from the configuration.
// Returns an error if the database cannot be opened or migrations fail.
func Initialize(dbPath string) error {
	log.Printf("Initializing log database at: %s", dbPath)

	// WAL keeps concurrent handler writes from blocking audit reads.
	var err error
	db, err = sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		return err
	}

	// The log store is write-mostly and low volume
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	// Test connection
	if err := db.Ping(); err != nil {
		log.Printf("Failed to ping database: %v", err)
		return err
	}

	// Run migrations
	if err := migrate(); err != nil {
		log.Printf("Failed to run migrations: %v", err)
		return err
	}

	log.Println("Database initialized successfully")
	return nil
}

// GetDB returns the active database connection.
// Initialize() must be called before using this function.
func GetDB() *sql.DB {
	return db
}

// Close closes the database connection.
// This should be called during application shutdown.
func Close() error {
	if db != nil {
		log.Println("Closing database connection")
		return db.Close()
	}
	return nil
}
