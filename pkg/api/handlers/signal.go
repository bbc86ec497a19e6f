package handlers

import (
	"net/http"

	"github.com/cbodonnell/pyramid/pkg/game"
	"github.com/cbodonnell/pyramid/pkg/network"
)

func HandlePresence(gateway *game.Gateway, clientManager *network.ClientManager) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		if _, err := gateway.Member(r.Context(), roomID, uid); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PresenceResponse{Roles: clientManager.Presence(roomID)})
	})
}

// HandleSignal upgrades a member's request to the room's signal socket.
func HandleSignal(gateway *game.Gateway, clientManager *network.ClientManager) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		me, err := gateway.Member(r.Context(), roomID, uid)
		if err != nil {
			writeError(w, err)
			return
		}
		clientManager.ServeSignal(w, r, roomID, uid, me.Role)
	})
}
