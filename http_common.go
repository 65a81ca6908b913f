package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
)

// --- Response helpers ---

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeValidationError reports a 400 with the individual field problems.
func writeValidationError(w http.ResponseWriter, errs []string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"message": "Validation failed",
		"errors":  errs,
	})
}

// decodeJSON decodes a request body into dst and reports a uniform 400 on
// malformed JSON. Returns false when the response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// withTx wraps a function in a database transaction.
// - Ensures COMMIT on success, ROLLBACK on errors or panics.
// - Keeps call sites tiny and all state changes atomic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		// If the callback panics, make sure to rollback before re-panicking
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
