package handlers

import (
	"net/http"

	"github.com/cbodonnell/pyramid/pkg/game"
	"github.com/gorilla/mux"
)

// roomHandler is the shape shared by every room-scoped endpoint.
type roomHandler func(w http.ResponseWriter, r *http.Request, roomID, userID string)

func withRoom(h roomHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		h(w, r, mux.Vars(r)["roomID"], uid)
	}
}

func HandleCreateRoom(gateway *game.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		snap, err := gateway.CreateRoom(r.Context(), uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, RoomResponse{Snapshot: snap, Me: snap.PlayerByUserID(uid)})
	}
}

func HandleJoinRoom(gateway *game.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		var req JoinRoomRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Code == "" {
			http.Error(w, "Missing code", http.StatusBadRequest)
			return
		}
		snap, me, err := gateway.JoinRoom(r.Context(), req.Code, uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, RoomResponse{Snapshot: snap, Me: me})
	}
}

func HandleSnapshot(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		snap, err := gateway.Snapshot(r.Context(), roomID, uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})
}

func HandleAirSeconds(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		air, err := gateway.AirSeconds(r.Context(), roomID, uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AirResponse{AirSeconds: air})
	})
}

func HandleBarrierStatus(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		status, err := gateway.BarrierStatus(r.Context(), roomID, uid, mux.Vars(r)["step"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	})
}

func HandleVariant(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		variant, err := gateway.Variant(r.Context(), roomID, uid, mux.Vars(r)["puzzle"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, variant)
	})
}

func HandleInitRoomEntities(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		if err := gateway.InitRoomEntities(r.Context(), roomID, uid); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func HandleStartRoom(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		room, err := gateway.StartRoom(r.Context(), roomID, uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	})
}

func HandleMarkLessonRead(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		if err := gateway.MarkLessonRead(r.Context(), roomID, uid, mux.Vars(r)["puzzle"]); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func HandleSolvePuzzle(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		var req SolveRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		result, err := gateway.SolvePuzzle(r.Context(), roomID, uid, mux.Vars(r)["puzzle"], req.Answer)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})
}

func HandleGrantArtifact(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		req := GrantArtifactRequest{Qty: 1}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		artifact, err := gateway.GrantArtifact(r.Context(), roomID, uid, mux.Vars(r)["key"], req.Qty)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, artifact)
	})
}

func HandleOpenDoor(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		door, err := gateway.OpenDoor(r.Context(), roomID, uid, mux.Vars(r)["key"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, door)
	})
}

func HandleIncrementAir(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		var req IncrementAirRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		air, err := gateway.IncrementAir(r.Context(), roomID, uid, req.Delta)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AirResponse{AirSeconds: air})
	})
}

func HandleSetRequiredReady(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		var req SetRequiredRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		status, err := gateway.SetRequiredReady(r.Context(), roomID, uid, mux.Vars(r)["step"], req.Count)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	})
}

func HandleMarkReady(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		status, err := gateway.MarkReady(r.Context(), roomID, uid, mux.Vars(r)["step"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	})
}

func HandlePerformFinal(gateway *game.Gateway) http.HandlerFunc {
	return withRoom(func(w http.ResponseWriter, r *http.Request, roomID, uid string) {
		var req FinalRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		result, err := gateway.PerformFinal(r.Context(), roomID, uid, req.Mode, req.Item)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})
}
