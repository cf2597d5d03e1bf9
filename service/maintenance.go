package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gamehall/events"
	"gamehall/models"

	log "github.com/sirupsen/logrus"
)

// EnsureMaintained advances a stalled room if its timers require it.
// Idempotent and safe to call on every read: when nothing is due it only
// performs a single room fetch.
func (s *roomService) EnsureMaintained(ctx context.Context, roomID int64) (*models.Room, error) {
	now := s.clock.Now()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	switch {
	case rouletteMaintenanceDue(room, now):
		if err := s.maintainRoulette(ctx, room, now); err != nil {
			return nil, err
		}
	case duelMaintenanceDue(room, now):
		if err := s.maintainDiceDuel(ctx, room, now); err != nil {
			return nil, err
		}
	default:
		return room, nil
	}

	room, err = s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (s *roomService) loadRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	room, err := uow.RoomRepository().GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func rouletteMaintenanceDue(room *models.Room, now time.Time) bool {
	return room.Kind == models.GameKindRoulette && room.IsOpen() && room.DeadlineExpired(now)
}

func duelMaintenanceDue(room *models.Room, now time.Time) bool {
	if room.Kind != models.GameKindDiceDuel || !room.IsLocked() || room.DiceRound == nil {
		return false
	}
	deadline := room.DiceRound.TurnDeadline
	return deadline != nil && now.After(*deadline)
}

// maintainRoulette handles an expired fill window. The deadline claim runs
// in its own committed transaction so exactly one caller proceeds; losers
// see the deadline already gone and return immediately.
func (s *roomService) maintainRoulette(ctx context.Context, room *models.Room, now time.Time) error {
	claimUow := s.uowFactory.Create()
	if err := claimUow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer claimUow.Rollback()

	claimed, err := claimUow.RoomRepository().ClaimAutoLock(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("failed to claim auto-lock deadline: %w", err)
	}
	if !claimed {
		return nil
	}
	if err := claimUow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Past this point the claim is consumed. If the fill work fails for any
	// reason its transaction rolls back, so the retry deadline must be put
	// back in a fresh one or the room would never be picked up again.
	if err := s.fillAndResolveRoulette(ctx, room, now); err != nil {
		if restoreErr := s.restoreFillRetry(ctx, room.ID, now); restoreErr != nil {
			log.WithFields(log.Fields{
				"roomID": room.ID,
				"error":  restoreErr,
			}).Error("Failed to restore fill deadline after maintenance error")
		}
		if errors.Is(err, ErrInsufficientBalance) {
			// A bot lost a concurrent balance race with another room's
			// fill; the rescheduled pass draws from the pool again
			log.WithFields(log.Fields{
				"roomID": room.ID,
				"round":  room.Round,
			}).Warn("Bot lost balance race during fill, rescheduling")
			return nil
		}
		return err
	}
	return nil
}

// fillAndResolveRoulette runs the claimed maintenance work: re-verify the
// room under a row lock, top the seats up with bots and lock the round
func (s *roomService) fillAndResolveRoulette(ctx context.Context, room *models.Room, now time.Time) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	locked, err := uow.RoomRepository().GetByIDForUpdate(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if locked == nil || !locked.IsOpen() || locked.Round != room.Round {
		return nil
	}

	entries, err := uow.EntryRepository().GetActiveByRoom(ctx, locked.ID, locked.Round)
	if err != nil {
		return fmt.Errorf("failed to get entries: %w", err)
	}

	// A window that lapses on an empty room goes out quietly; the next seat
	// starts a fresh one
	if len(entries) == 0 {
		log.WithFields(log.Fields{
			"roomID": locked.ID,
			"round":  locked.Round,
		}).Debug("Fill window expired on empty room, nothing to do")
		return nil
	}

	if need := locked.Capacity - len(entries); need > 0 {
		filled, err := s.fillWithBots(ctx, uow, locked, entries, need)
		if err != nil {
			return err
		}
		if filled == nil {
			// Bot pool ran short; push the deadline out and let a later
			// access retry the fill
			if err := uow.RoomRepository().RestoreAutoLock(ctx, locked.ID, now.Add(s.cfg.RouletteFillRetry)); err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"roomID": locked.ID,
				"round":  locked.Round,
				"needed": need,
			}).Warn("Not enough available bots to fill room, rescheduling")
			return uow.Commit()
		}
		entries = filled
	}

	if err := s.lockFilledRoom(ctx, uow, locked, entries, now); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// restoreFillRetry re-arms a consumed fill deadline in its own transaction
func (s *roomService) restoreFillRetry(ctx context.Context, roomID int64, now time.Time) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.RoomRepository().RestoreAutoLock(ctx, roomID, now.Add(s.cfg.RouletteFillRetry)); err != nil {
		return err
	}
	return uow.Commit()
}

// fillWithBots seats bot accounts on the free positions, staking each one.
// Returns nil (and no error) when the pool cannot cover the shortfall.
func (s *roomService) fillWithBots(ctx context.Context, uow UnitOfWork, room *models.Room, entries []*models.Entry, need int) ([]*models.Entry, error) {
	bots, err := uow.UserRepository().FindAvailableBots(ctx, room.ID, room.Round, room.Stake, need)
	if err != nil {
		return nil, fmt.Errorf("failed to find available bots: %w", err)
	}
	if len(bots) < need {
		return nil, nil
	}

	taken := make(map[int]bool, len(entries))
	for _, entry := range entries {
		taken[entry.Position] = true
	}
	free := make([]int, 0, need)
	for position := 1; position <= room.Capacity; position++ {
		if !taken[position] {
			free = append(free, position)
		}
	}
	rand.Shuffle(len(free), func(i, j int) {
		free[i], free[j] = free[j], free[i]
	})

	botEntries := make([]*models.Entry, 0, need)
	for i, bot := range bots[:need] {
		if err := uow.UserRepository().DeductBalance(ctx, bot.ID, room.Stake); err != nil {
			return nil, fmt.Errorf("failed to stake bot %d: %w", bot.ID, err)
		}
		if err := RecordTransaction(ctx, uow, &models.WalletTransaction{
			UserID:        bot.ID,
			Amount:        -room.Stake,
			BalanceBefore: bot.Balance,
			BalanceAfter:  bot.Balance - room.Stake,
			Kind:          models.TransactionKindJoinDebit,
			Reason:        "bot fill stake",
			Metadata:      map[string]any{"room_id": room.ID, "round": room.Round, "seat": free[i]},
			RoomID:        &room.ID,
		}); err != nil {
			return nil, err
		}
		botEntries = append(botEntries, &models.Entry{
			RoomID:   room.ID,
			UserID:   bot.ID,
			Position: free[i],
			Round:    room.Round,
			IsBot:    true,
		})
	}

	if err := uow.EntryRepository().CreateBatch(ctx, botEntries); err != nil {
		return nil, fmt.Errorf("failed to create bot entries: %w", err)
	}

	for _, entry := range botEntries {
		uow.EventBus().Publish(events.SeatJoinedEvent{
			RoomID:       room.ID,
			RoomPublicID: room.PublicID.String(),
			UserID:       entry.UserID,
			Position:     entry.Position,
			Round:        room.Round,
			IsBot:        true,
		})
	}

	return append(entries, botEntries...), nil
}

// maintainDiceDuel times out the seat whose turn deadline has passed,
// applying the forfeit under the room row lock
func (s *roomService) maintainDiceDuel(ctx context.Context, room *models.Room, now time.Time) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	locked, err := uow.RoomRepository().GetByIDForUpdate(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if locked == nil || !duelMaintenanceDue(locked, now) || locked.Round != room.Round {
		return nil
	}

	entries, err := uow.EntryRepository().GetActiveByRoom(ctx, locked.ID, locked.Round)
	if err != nil {
		return fmt.Errorf("failed to get entries: %w", err)
	}

	seat := locked.DiceRound.NextToRoll()
	var timedOut *models.Entry
	for _, entry := range entries {
		if entry.Position == seat {
			timedOut = entry
		}
	}
	if timedOut == nil {
		return fmt.Errorf("timed-out seat %d of room %d has no entry", seat, locked.ID)
	}

	variant := s.variants[models.GameKindDiceDuel]
	outcome, err := variant.ApplyTurn(locked, entries, seat, TurnActionTimeout, now)
	if err != nil {
		return fmt.Errorf("failed to apply turn timeout: %w", err)
	}

	uow.EventBus().Publish(events.DiceRolledEvent{
		RoomID:       locked.ID,
		RoomPublicID: locked.PublicID.String(),
		UserID:       timedOut.UserID,
		Position:     seat,
		Forfeit:      true,
	})

	log.WithFields(log.Fields{
		"roomID": locked.ID,
		"round":  locked.Round,
		"seat":   seat,
	}).Info("Dice duel turn timed out, forfeiting round for seat")

	if outcome.Finished {
		if err := s.resolveRoom(ctx, uow, locked, entries, now); err != nil {
			return err
		}
	} else {
		if err := uow.RoomRepository().Update(ctx, locked); err != nil {
			return err
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// resolveRoom selects the winner, pays the prize, records the result and
// reveals the seed, all inside the caller's transaction
func (s *roomService) resolveRoom(ctx context.Context, uow UnitOfWork, room *models.Room, entries []*models.Entry, now time.Time) error {
	variant, err := s.variant(room.Kind)
	if err != nil {
		return err
	}

	winner, preselected, err := variant.SelectWinner(room, entries)
	if err != nil {
		return fmt.Errorf("failed to select winner: %w", err)
	}
	prize := variant.Prize(room)

	transitioned, err := uow.RoomRepository().TransitionState(ctx, room.ID, models.RoomStateLocked, models.RoomStateFinished, now)
	if err != nil {
		return err
	}
	if !transitioned {
		// Another caller finished this round first
		return nil
	}

	if err := s.creditUser(ctx, uow, winner.UserID, prize, models.TransactionKindWinCredit,
		"round win", room.ID, room.Round); err != nil {
		return err
	}

	seed := room.SeedSecret
	oldState := room.State
	room.State = models.RoomStateFinished
	room.FinishedAt = &now
	room.Seed = &seed
	room.WinningEntryID = &winner.ID
	room.Prize = &prize
	if err := uow.RoomRepository().Update(ctx, room); err != nil {
		return err
	}

	if err := uow.GameResultRepository().Create(ctx, &models.GameResult{
		RoomID:         room.ID,
		Round:          room.Round,
		WinnerUserID:   winner.UserID,
		WinningEntryID: winner.ID,
		Prize:          prize,
		Seed:           seed,
	}); err != nil {
		return fmt.Errorf("failed to record game result: %w", err)
	}

	uow.EventBus().Publish(events.RoomStateChangedEvent{
		RoomID:       room.ID,
		RoomPublicID: room.PublicID.String(),
		OldState:     oldState,
		NewState:     models.RoomStateFinished,
		Round:        room.Round,
	})
	uow.EventBus().Publish(events.RoundFinishedEvent{
		RoomID:       room.ID,
		RoomPublicID: room.PublicID.String(),
		Round:        room.Round,
		WinnerUserID: winner.UserID,
		WinnerSeat:   winner.Position,
		Prize:        prize,
		Seed:         seed,
		SeedHash:     room.SeedHash,
		Preselected:  preselected,
	})

	return nil
}
