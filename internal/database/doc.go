// Package database opens the stores backing the signal journal: a pgx
// connection pool for PostgreSQL and a pure-Go SQLite database through gorm.
package database
