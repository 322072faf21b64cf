package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/mayankgaur0405/Dev2Gether/internal/room"
)

// RoomsAPI is a read-only window into the live rooms for operational
// visibility. All mutation goes over the websocket; nothing here persists
// past a room's lifetime.
type RoomsAPI struct{ Reg *room.Registry }

// List returns every live room with its roster and language.
func (a *RoomsAPI) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.Reg.List())
}

// Get returns one room's snapshot, 404 once it has been destroyed.
func (a *RoomsAPI) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	info, ok := a.Reg.Snapshot(id)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
