package main

import (
	"log"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"
)

// GET /api/chats/summary
// One row per matched peer: display name, photo, online flag, latest
// message timestamp and unread flag, for sidebar ordering.
func chatSummaryHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		summaries, err := st.ChatSummaries(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not load chat summary")
			log.Println("Error loading chat summaries:", err)
			return
		}

		// Batch all peer profile lookups into one query
		loader := newProfileLoader(st)
		thunks := make([]dataloader.Thunk[*Profile], len(summaries))
		for i, s := range summaries {
			thunks[i] = loader.Load(r.Context(), s.PeerID)
		}
		for i := range summaries {
			p, err := thunks[i]()
			if err != nil {
				log.Println("Error batch-loading profile:", err)
				continue
			}
			if p != nil {
				summaries[i].PeerName = p.DisplayName
				summaries[i].PeerPhoto = p.PhotoFile
			}
			if online, err := st.IsOnlineNow(summaries[i].PeerID); err == nil {
				summaries[i].IsOnline = online
			}
		}

		writeJSON(w, http.StatusOK, summaries)
	})
}
