package service

import (
	"fmt"
	"time"

	"gamehall/config"
	"gamehall/fair"
	"gamehall/models"
	log "github.com/sirupsen/logrus"
)

// diceDuelVariant implements the 2-seat dice duel: seats roll two dice in
// strict turn order, the loser of each round bleeds a fixed fraction of the
// stake into the winner's running sub-balance, and bankruptcy ends the duel.
type diceDuelVariant struct {
	cfg *config.Config
}

// NewDiceDuelVariant creates the dice duel rule module
func NewDiceDuelVariant(cfg *config.Config) GameVariant {
	return &diceDuelVariant{cfg: cfg}
}

func (v *diceDuelVariant) Kind() models.GameKind {
	return models.GameKindDiceDuel
}

func (v *diceDuelVariant) RequiredCapacity() int {
	return 2
}

// AutoLockDeadline returns nil: dice duels are maintained on every access,
// driven by the per-turn deadline inside the duel state
func (v *diceDuelVariant) AutoLockDeadline(room *models.Room, now time.Time) *time.Time {
	return nil
}

// SelectWinner returns the surviving seat once the opponent is bankrupt.
// A preselected seat is honored the same way as in roulette.
func (v *diceDuelVariant) SelectWinner(room *models.Room, entries []*models.Entry) (*models.Entry, bool, error) {
	if room.DiceRound == nil {
		return nil, false, ErrDuelNotRunning
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

	bankrupt := room.DiceRound.Bankrupt()
	if bankrupt == 0 {
		return nil, false, fmt.Errorf("duel has no bankrupt seat yet")
	}

	winnerSeat := models.OtherSeat(bankrupt)
	for _, entry := range entries {
		if entry.Position == winnerSeat {
			return entry, false, nil
		}
	}

	return nil, false, fmt.Errorf("winning seat %d has no entry", winnerSeat)
}

// Prize pays the sum of both running sub-balances, which stays 2x stake
// until resolution
func (v *diceDuelVariant) Prize(room *models.Room) int64 {
	if room.DiceRound == nil {
		return 2 * room.Stake
	}
	return room.DiceRound.Pot()
}

// ApplyTurn advances the duel by one roll, timeout or forfeit. Rolls are
// derived from the committed seed so the whole duel is verifiable after the
// seed is revealed.
func (v *diceDuelVariant) ApplyTurn(room *models.Room, entries []*models.Entry, seat int, action TurnAction, now time.Time) (*TurnOutcome, error) {
	duel := room.DiceRound
	if duel == nil {
		return nil, ErrDuelNotRunning
	}
	if seat != 1 && seat != 2 {
		return nil, ErrInvalidSeat
	}

	outcome := &TurnOutcome{Seat: seat}

	switch action {
	case TurnActionRoll:
		if duel.HasRolled(seat) {
			return nil, ErrAlreadyRolled
		}
		if duel.NextToRoll() != seat {
			return nil, ErrNotYourTurn
		}

		roll, err := v.rollDice(room, entries, seat, now)
		if err != nil {
			return nil, err
		}
		duel.Rolls[seat] = roll
		outcome.Roll = roll

		if duel.BothRolled() {
			v.resolveDuelRound(room, outcome, 0, now)
		}

	case TurnActionTimeout, TurnActionForfeit:
		// A missed or conceded turn loses the round outright through the
		// same damage-transfer path as a losing roll
		outcome.Forfeit = true
		v.resolveDuelRound(room, outcome, seat, now)

	default:
		return nil, fmt.Errorf("unknown turn action %q", action)
	}

	if outcome.Finished {
		duel.TurnDeadline = nil
	} else {
		deadline := now.Add(v.cfg.DiceDuelTurnTimeout)
		duel.TurnDeadline = &deadline
	}

	return outcome, nil
}

// rollDice derives two dice from the committed seed. The nonce space is
// partitioned per duel round and seat so no two rolls share a nonce.
func (v *diceDuelVariant) rollDice(room *models.Room, entries []*models.Entry, seat int, now time.Time) (*models.DiceRoll, error) {
	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	clientSeed := fair.ClientSeed(ids)

	base := room.DiceRound.DuelRound*10 + seat*2
	d1, err := fair.Reveal(room.SeedSecret, clientSeed, base, 6)
	if err != nil {
		return nil, fmt.Errorf("failed to roll dice: %w", err)
	}
	d2, err := fair.Reveal(room.SeedSecret, clientSeed, base+1, 6)
	if err != nil {
		return nil, fmt.Errorf("failed to roll dice: %w", err)
	}

	return &models.DiceRoll{
		D1:       d1 + 1,
		D2:       d2 + 1,
		Total:    d1 + d2 + 2,
		RolledAt: now,
	}, nil
}

// resolveDuelRound settles one duel round. forfeitSeat is non-zero when the
// round ends by timeout or concession; otherwise both rolls are compared.
func (v *diceDuelVariant) resolveDuelRound(room *models.Room, outcome *TurnOutcome, forfeitSeat int, now time.Time) {
	duel := room.DiceRound
	outcome.RoundResolved = true

	history := models.DiceDuelHistoryEntry{
		Round:     duel.DuelRound,
		Rolls:     make(map[int]models.DiceRoll),
		Forfeit:   forfeitSeat != 0,
		CreatedAt: now,
	}
	for seat, roll := range duel.Rolls {
		history.Rolls[seat] = *roll
	}

	loser := forfeitSeat
	if loser == 0 {
		ones, twos := duel.Rolls[1].Total, duel.Rolls[2].Total
		switch {
		case ones == twos:
			// Draw round: no damage, roll again
			outcome.Draw = true
			history.Draw = true
			duel.History = append(duel.History, history)
			duel.ClearRolls()
			v.maybeRotateStarter(duel)
			return
		case ones < twos:
			loser = 1
		default:
			loser = 2
		}
	}
	winner := models.OtherSeat(loser)

	damage := room.Stake / v.cfg.DiceDuelDamageDivisor
	if damage > duel.Balances[loser] {
		damage = duel.Balances[loser]
	}
	duel.Balances[loser] -= damage
	duel.Balances[winner] += damage

	history.LoserSeat = loser
	history.Damage = damage
	duel.History = append(duel.History, history)
	duel.ClearRolls()
	v.maybeRotateStarter(duel)

	outcome.LoserSeat = loser
	outcome.Damage = damage

	if duel.Balances[loser] <= 0 {
		outcome.Finished = true
		outcome.WinnerSeat = winner
	}
}

func (v *diceDuelVariant) maybeRotateStarter(duel *models.DiceDuelRound) {
	if v.cfg.DiceDuelStartingRotate {
		duel.Starter = models.OtherSeat(duel.Starter)
	}
}
