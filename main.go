package main

import (
	"log"
	"net/http"
	"os"
)

func main() {
	db := initDB()
	st := newPGStore(db)
	authStrategy = selectAuthStrategy(st)
	assistant := newAssistant(newModelGateway())

	if os.Getenv("AI_API_KEY") == "" {
		log.Println("Warning: AI_API_KEY not set, model-backed endpoints will serve fallbacks")
	}

	// Make sure the upload directory for profile photos exists
	_ = os.MkdirAll(photoRoot, 0o755)

	mux := http.NewServeMux()

	// Accounts
	mux.Handle("/api/register", registerHandler(st))
	mux.Handle("/api/login", loginHandler(st))
	mux.Handle("/api/me/ping", mePingHandler(st))       // POST
	mux.Handle("/api/me/photo", mePhotoHandler(st))     // POST & DELETE
	mux.Handle("/api/photos/", getPhotoHandler())       // GET /api/photos/{file}

	// Profiles
	mux.Handle("/api/profiles", createProfileHandler(st)) // POST
	mux.Handle("/api/profiles/", profilesDispatcher(st))  // me, search, {id}

	// Model-backed features
	mux.Handle("/api/ai/compatibility", compatibilityHandler(st, assistant))
	mux.Handle("/api/ai/assistant", assistantHandler(st, assistant))
	mux.Handle("/api/ai/moderate", moderateHandler(st, assistant))
	mux.Handle("/api/ai/conversation-starters", conversationStartersHandler(st, assistant))
	mux.Handle("/api/ai/event-recommendations", eventRecommendationsHandler(st, assistant))

	// Events
	mux.Handle("/api/events", eventsHandler(st)) // GET & POST

	// Likes & matches
	mux.Handle("/api/likes/", likesRouter(st)) // POST/DELETE /api/likes/{id}
	mux.Handle("/api/matches", matchesHandler(st))

	// Messaging
	mux.Handle("/ws/chat", wsChatHandler(st))
	mux.Handle("/api/chats/summary", chatSummaryHandler(st)) // GET
	mux.Handle("/api/chats/", chatHistoryHandler(st))        // GET /api/chats/{id}/messages

	// Health check endpoint for Docker
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("Starting Fluide backend on port " + port + "...")
	if err := http.ListenAndServe(":"+port, withCORS(mux)); err != nil {
		log.Fatal(err)
	}
}
