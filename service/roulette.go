package service

import (
	"fmt"
	"sort"
	"time"

	"gamehall/config"
	"gamehall/fair"
	"gamehall/models"
	log "github.com/sirupsen/logrus"
)

// rouletteVariant implements the rules for the 12-seat roulette pool: the
// room waits out a fill window, bots take any seats left over, and one seat
// wins the whole pot at a fixed multiplier.
type rouletteVariant struct {
	cfg *config.Config
}

// NewRouletteVariant creates the roulette rule module
func NewRouletteVariant(cfg *config.Config) GameVariant {
	return &rouletteVariant{cfg: cfg}
}

func (v *rouletteVariant) Kind() models.GameKind {
	return models.GameKindRoulette
}

func (v *rouletteVariant) RequiredCapacity() int {
	return v.cfg.RouletteCapacity
}

// AutoLockDeadline returns the moment after which maintenance force-fills
// and resolves the room
func (v *rouletteVariant) AutoLockDeadline(room *models.Room, now time.Time) *time.Time {
	deadline := now.Add(v.cfg.RouletteWaitWindow)
	return &deadline
}

// SelectWinner draws the winning entry from the committed seed, or honors an
// explicit preselected seat. The override branch is logged loudly so audits
// can tell overridden rounds from organic ones.
func (v *rouletteVariant) SelectWinner(room *models.Room, entries []*models.Entry) (*models.Entry, bool, error) {
	if len(entries) == 0 {
		return nil, false, fmt.Errorf("no entries to select a winner from")
	}

	if room.PreselectedSeat != nil {
		if !room.ValidPreselection() {
			return nil, false, fmt.Errorf("preselected seat %d is outside room capacity", *room.PreselectedSeat)
		}
		for _, entry := range entries {
			if entry.Position == *room.PreselectedSeat {
				log.WithFields(log.Fields{
					"roomID": room.ID,
					"round":  room.Round,
					"seat":   *room.PreselectedSeat,
					"userID": entry.UserID,
				}).Warn("Preselected winner override applied, bypassing fair draw")
				return entry, true, nil
			}
		}
		return nil, false, fmt.Errorf("preselected seat %d is not occupied", *room.PreselectedSeat)
	}

	// Sort by entry ID so the draw index maps onto the same ordering an
	// external verifier reconstructs from the client seed
	sorted := make([]*models.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	ids := make([]int64, len(sorted))
	for i, entry := range sorted {
		ids[i] = entry.ID
	}

	index, err := fair.Reveal(room.SeedSecret, fair.ClientSeed(ids), room.Round, len(sorted))
	if err != nil {
		return nil, false, fmt.Errorf("failed to draw winner: %w", err)
	}

	return sorted[index], false, nil
}

// Prize pays the full pot at the configured multiplier
func (v *rouletteVariant) Prize(room *models.Room) int64 {
	return room.Stake * v.cfg.RouletteMultiplier
}

// ApplyTurn is not supported: roulette has no turns
func (v *rouletteVariant) ApplyTurn(room *models.Room, entries []*models.Entry, seat int, action TurnAction, now time.Time) (*TurnOutcome, error) {
	return nil, ErrWrongVariant
}
