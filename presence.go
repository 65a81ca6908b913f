package main

import "net/http"

// POST /api/me/ping — mark this user as online "now". The online window is
// 90 seconds, enforced in SQL by the store.
func mePingHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// authenticate already touched last_online; this is just the ack
		w.WriteHeader(http.StatusNoContent)
	})
}
