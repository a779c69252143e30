// Package account stores player melon accounts.
//
// Reads return immutable, cached Snapshots. Writes go through a Mutable
// obtained from FindMutable: the melon count is written as a delta so
// concurrent credits never overwrite each other, the rank as an absolute
// value, and the player id scopes every UPDATE.
package account

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/lanatus/internal/holder"
)

const (
	// Table stores one row per player.
	Table = "lanatus_player"

	// LedgerTable records every credit.
	LedgerTable = "lanatus_melon_ledger"

	// DefaultRank is the rank of a player without a row.
	DefaultRank = "default"
)

// Column names.
const (
	colPlayerID    = "player_id"
	colMelonsCount = "melons_count"
	colLastRank    = "last_rank"
	colDelta       = "melons_delta"
	colComment     = "comment"
)

// Snapshot is an immutable view of an account at the time it was read.
type Snapshot struct {
	PlayerID    uuid.UUID `json:"player_id"`
	MelonsCount int64     `json:"melons_count"`
	LastRank    string    `json:"last_rank"`
}

// DefaultSnapshot is the account of a player that has none stored.
func DefaultSnapshot(id uuid.UUID) *Snapshot {
	return &Snapshot{PlayerID: id, LastRank: DefaultRank}
}

// String implements fmt.Stringer.
func (s *Snapshot) String() string {
	return fmt.Sprintf("%s melons=%d rank=%s", s.PlayerID, s.MelonsCount, s.LastRank)
}

// Mutable is a local, writable copy of an account. It is not safe for
// concurrent use.
type Mutable struct {
	id        uuid.UUID
	playerID  *holder.Identity[string]
	melons    *holder.Delta[int64]
	rank      *holder.Value[string]
	persisted bool
}

// newMutable creates the copy of an account that has no row yet.
func newMutable(id uuid.UUID) *Mutable {
	return &Mutable{
		id:       id,
		playerID: holder.NewIdentity(colPlayerID, id.String()),
		melons:   holder.NewDelta[int64](colMelonsCount, 0),
		rank:     holder.NewPending(colLastRank, DefaultRank),
	}
}

// mutableFrom creates the copy of a stored account.
func mutableFrom(s *Snapshot) *Mutable {
	return &Mutable{
		id:        s.PlayerID,
		playerID:  holder.NewIdentity(colPlayerID, s.PlayerID.String()),
		melons:    holder.NewDelta(colMelonsCount, s.MelonsCount),
		rank:      holder.NewValue(colLastRank, s.LastRank),
		persisted: true,
	}
}

// PlayerID returns the account owner.
func (m *Mutable) PlayerID() uuid.UUID { return m.id }

// MelonsCount returns the local melon count, pending changes included.
func (m *Mutable) MelonsCount() int64 { return m.melons.Get() }

// LastRank returns the local rank.
func (m *Mutable) LastRank() string { return m.rank.Get() }

// ModifyMelonsCount adds delta to the melon count.
func (m *Mutable) ModifyMelonsCount(delta int64) { m.melons.Add(delta) }

// SetMelonsCount sets the melon count. It is written as the difference to
// the count this copy was read with.
func (m *Mutable) SetMelonsCount(n int64) { m.melons.Set(n) }

// SetLastRank sets the rank.
func (m *Mutable) SetLastRank(rank string) { m.rank.Set(rank) }

// Dirty reports whether Save would write anything.
func (m *Mutable) Dirty() bool {
	return m.melons.Dirty() || m.rank.Dirty()
}

// Snapshot returns the local state as a snapshot.
func (m *Mutable) Snapshot() *Snapshot {
	return &Snapshot{PlayerID: m.id, MelonsCount: m.MelonsCount(), LastRank: m.LastRank()}
}

// Key implements engine.Writable.
func (m *Mutable) Key() uuid.UUID { return m.id }

// Table implements engine.Writable.
func (m *Mutable) Table() string { return Table }

// Persisted implements engine.Writable.
func (m *Mutable) Persisted() bool { return m.persisted }

// MarkPersisted implements engine.Writable.
func (m *Mutable) MarkPersisted() { m.persisted = true }

// Holders implements engine.Writable.
func (m *Mutable) Holders() []holder.Source {
	return []holder.Source{m.playerID, m.melons, m.rank}
}
