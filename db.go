package main

import (
	"database/sql"
	"log"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func initDB() *sql.DB {
	// Get database URL from environment variable, fallback to default for development
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = "user=fluide password=fluide dbname=fluidedb sslmode=disable"
		log.Println("Warning: DATABASE_URL not set, using default connection string")
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Error connecting to the database:", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Cannot reach the database:", err)
	}
	log.Println("Database connection established successfully")

	// The schema is applied manually for now (psql -f schema.sql).
	return db
}
