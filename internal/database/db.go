// Package database opens and configures the MySQL connection pool.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection before returning.
// parseTime maps DATETIME columns onto time.Time and loc=UTC keeps
// every stored timestamp in UTC; bid ordering depends on a single
// clock domain.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Bid commits hold short row locks, so favour a wider pool of
	// short-lived connections over a few long ones.
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
