package api

import (
	"log"
	"net/http"

	"katalog-linkow/internal/auth"
	"katalog-linkow/internal/websocket"
)

func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		log.Println("WS connection attempt without token")
		return
	}

	if _, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret); err != nil {
		log.Printf("WS connection attempt with invalid token: %v", err)
		return
	}

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	client := websocket.NewClient(s.wsHub, conn)
	s.wsHub.Register <- client

	go client.ReadPump()
	go client.WritePump()
}
