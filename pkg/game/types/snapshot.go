package types

import "sort"

// Snapshot is the read model handed to clients. Slices are sorted by key
// so two snapshots of the same state encode identically.
type Snapshot struct {
	Room      Room        `json:"room"`
	Players   []*Player   `json:"players"`
	Doors     []*Door     `json:"doors"`
	Artifacts []*Artifact `json:"artifacts"`
	Progress  []*Progress `json:"progress"`
}

func (s *RoomState) Snapshot() *Snapshot {
	snap := &Snapshot{
		Room:      s.Room.Copy(),
		Players:   make([]*Player, 0, len(s.Players)),
		Doors:     make([]*Door, 0, len(s.Doors)),
		Artifacts: make([]*Artifact, 0, len(s.Artifacts)),
		Progress:  make([]*Progress, 0, len(s.Progress)),
	}
	for _, p := range s.Players {
		snap.Players = append(snap.Players, p.Copy())
	}
	sort.Slice(snap.Players, func(i, j int) bool { return snap.Players[i].Role < snap.Players[j].Role })
	for _, d := range s.Doors {
		door := *d
		snap.Doors = append(snap.Doors, &door)
	}
	sort.Slice(snap.Doors, func(i, j int) bool { return snap.Doors[i].Key < snap.Doors[j].Key })
	for _, a := range s.Artifacts {
		artifact := *a
		snap.Artifacts = append(snap.Artifacts, &artifact)
	}
	sort.Slice(snap.Artifacts, func(i, j int) bool { return snap.Artifacts[i].Key < snap.Artifacts[j].Key })
	for _, p := range s.Progress {
		snap.Progress = append(snap.Progress, p.Copy())
	}
	sort.Slice(snap.Progress, func(i, j int) bool { return snap.Progress[i].PuzzleKey < snap.Progress[j].PuzzleKey })
	return snap
}

// Door returns the door with key, or nil.
func (s *Snapshot) Door(key string) *Door {
	for _, d := range s.Doors {
		if d.Key == key {
			return d
		}
	}
	return nil
}

// ArtifactQty returns the room's quantity of key.
func (s *Snapshot) ArtifactQty(key string) int {
	for _, a := range s.Artifacts {
		if a.Key == key {
			return a.Qty
		}
	}
	return 0
}

// ProgressFor returns the progress row of puzzleKey, or nil.
func (s *Snapshot) ProgressFor(puzzleKey string) *Progress {
	for _, p := range s.Progress {
		if p.PuzzleKey == puzzleKey {
			return p
		}
	}
	return nil
}

// PlayerByUserID returns the member row of userID, or nil.
func (s *Snapshot) PlayerByUserID(userID string) *Player {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}
