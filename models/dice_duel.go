package models

import (
	"time"
)

// DiceRoll records a single two-dice roll by one seat
type DiceRoll struct {
	D1       int       `json:"d1"`
	D2       int       `json:"d2"`
	Total    int       `json:"total"`
	RolledAt time.Time `json:"rolled_at"`
}

// DiceDuelHistoryEntry records the outcome of one duel round: who rolled
// what, who lost, and how much moved between the running sub-balances
type DiceDuelHistoryEntry struct {
	Round     int       `json:"round"`
	Rolls     map[int]DiceRoll `json:"rolls"`
	LoserSeat int       `json:"loser_seat"`
	Damage    int64     `json:"damage"`
	Forfeit   bool      `json:"forfeit"`
	Draw      bool      `json:"draw"`
	CreatedAt time.Time `json:"created_at"`
}

// DiceDuelRound holds the per-variant turn state of a dice duel room.
// Balances are the running sub-balances each player stands to win or lose;
// they always sum to 2x stake until the duel resolves.
type DiceDuelRound struct {
	Starter      int                    `json:"starter"`
	DuelRound    int                    `json:"duel_round"`
	Rolls        map[int]*DiceRoll      `json:"rolls"`
	Balances     map[int]int64          `json:"balances"`
	History      []DiceDuelHistoryEntry `json:"history"`
	TurnDeadline *time.Time             `json:"turn_deadline,omitempty"`
}

// NewDiceDuelRound initializes turn state for a fresh duel with both seats
// staked at the room's stake amount
func NewDiceDuelRound(stake int64) *DiceDuelRound {
	return &DiceDuelRound{
		Starter:   1,
		DuelRound: 1,
		Rolls:     make(map[int]*DiceRoll),
		Balances:  map[int]int64{1: stake, 2: stake},
	}
}

// HasRolled checks whether the given seat has rolled this duel round
func (d *DiceDuelRound) HasRolled(seat int) bool {
	return d.Rolls[seat] != nil
}

// NextToRoll returns the seat whose roll is pending, honoring strict turn
// order: the starter rolls first, then the other seat
func (d *DiceDuelRound) NextToRoll() int {
	if !d.HasRolled(d.Starter) {
		return d.Starter
	}
	return OtherSeat(d.Starter)
}

// BothRolled checks whether both seats have rolled this duel round
func (d *DiceDuelRound) BothRolled() bool {
	return d.HasRolled(1) && d.HasRolled(2)
}

// Bankrupt returns the seat whose running sub-balance has reached zero,
// or 0 if neither has
func (d *DiceDuelRound) Bankrupt() int {
	for seat, balance := range d.Balances {
		if balance <= 0 {
			return seat
		}
	}
	return 0
}

// Pot returns the sum of both running sub-balances
func (d *DiceDuelRound) Pot() int64 {
	return d.Balances[1] + d.Balances[2]
}

// ClearRolls resets per-round roll state for the next duel round
func (d *DiceDuelRound) ClearRolls() {
	d.Rolls = make(map[int]*DiceRoll)
	d.DuelRound++
	d.TurnDeadline = nil
}

// OtherSeat returns the opposing seat in a two-seat room
func OtherSeat(seat int) int {
	if seat == 1 {
		return 2
	}
	return 1
}
