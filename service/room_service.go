package service

import (
	"context"
	"fmt"
	"time"

	"gamehall/config"
	"gamehall/events"
	"gamehall/fair"
	"gamehall/models"

	"github.com/google/uuid"
)

type roomService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
	clock      Clock
	variants   map[models.GameKind]GameVariant
}

// NewRoomService creates a new room service with the standard variant set
func NewRoomService(uowFactory UnitOfWorkFactory, cfg *config.Config, clock Clock) RoomService {
	return &roomService{
		uowFactory: uowFactory,
		cfg:        cfg,
		clock:      clock,
		variants: map[models.GameKind]GameVariant{
			models.GameKindRoulette: NewRouletteVariant(cfg),
			models.GameKindDiceDuel: NewDiceDuelVariant(cfg),
		},
	}
}

func (s *roomService) variant(kind models.GameKind) (GameVariant, error) {
	variant, ok := s.variants[kind]
	if !ok {
		return nil, fmt.Errorf("unknown game kind %q", kind)
	}
	return variant, nil
}

// CreateRoom creates a new open room with a committed seed pair
func (s *roomService) CreateRoom(ctx context.Context, kind models.GameKind, stake int64) (*models.Room, error) {
	if stake <= 0 {
		return nil, fmt.Errorf("stake must be positive")
	}
	variant, err := s.variant(kind)
	if err != nil {
		return nil, err
	}

	seed, hash, err := fair.CommitSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to commit seed: %w", err)
	}

	now := s.clock.Now()
	room := &models.Room{
		PublicID:   uuid.New(),
		Kind:       kind,
		Stake:      stake,
		Capacity:   variant.RequiredCapacity(),
		State:      models.RoomStateOpen,
		Round:      1,
		SeedHash:   hash,
		SeedSecret: seed,
	}

	// With the fill-from-first-seat policy the window starts on the first
	// join instead of room creation
	if kind == models.GameKindRoulette && !s.cfg.RouletteFillFromFirst {
		room.AutoLockAt = variant.AutoLockDeadline(room, now)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.RoomRepository().Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return room, nil
}

// GetRoom returns a room by public ID after running any due maintenance
func (s *roomService) GetRoom(ctx context.Context, publicID uuid.UUID) (*models.Room, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	room, err := uow.RoomRepository().GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if err := uow.Rollback(); err != nil {
		return nil, err
	}

	return s.EnsureMaintained(ctx, room.ID)
}

// Join seats a user in a room, debiting the stake. Filling the last seat
// locks the room: roulette resolves immediately, a dice duel begins.
func (s *roomService) Join(ctx context.Context, roomID, userID int64, seatPreference int) (*models.Entry, error) {
	if _, err := s.EnsureMaintained(ctx, roomID); err != nil {
		return nil, err
	}

	now := s.clock.Now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	room, err := uow.RoomRepository().GetByIDForUpdate(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if !room.IsOpen() {
		return nil, ErrRoomNotOpen
	}
	variant, err := s.variant(room.Kind)
	if err != nil {
		return nil, err
	}

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	existing, err := uow.EntryRepository().Get(ctx, roomID, userID, room.Round)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing entry: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadySeated
	}

	entries, err := uow.EntryRepository().GetActiveByRoom(ctx, roomID, room.Round)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	if len(entries) >= room.Capacity {
		return nil, ErrRoomFull
	}

	position, err := pickSeat(room, entries, seatPreference)
	if err != nil {
		return nil, err
	}

	// Stake is taken up front; a refund happens only on leave-before-lock
	// or admin force-reset
	if err := uow.UserRepository().DeductBalance(ctx, userID, room.Stake); err != nil {
		return nil, err
	}
	if err := RecordTransaction(ctx, uow, &models.WalletTransaction{
		UserID:        userID,
		Amount:        -room.Stake,
		BalanceBefore: user.Balance,
		BalanceAfter:  user.Balance - room.Stake,
		Kind:          models.TransactionKindJoinDebit,
		Reason:        "room join stake",
		Metadata:      map[string]any{"room_id": room.ID, "round": room.Round, "seat": position},
		RoomID:        &room.ID,
	}); err != nil {
		return nil, err
	}

	entry := &models.Entry{
		RoomID:   roomID,
		UserID:   userID,
		Position: position,
		Round:    room.Round,
		IsBot:    user.IsBot,
	}
	if err := uow.EntryRepository().Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	uow.EventBus().Publish(events.SeatJoinedEvent{
		RoomID:       room.ID,
		RoomPublicID: room.PublicID.String(),
		UserID:       userID,
		Position:     position,
		Round:        room.Round,
		IsBot:        user.IsBot,
	})

	// Start the fill window on the first seat if it is not running yet
	if room.Kind == models.GameKindRoulette && room.AutoLockAt == nil {
		if deadline := variant.AutoLockDeadline(room, now); deadline != nil {
			if _, err := uow.RoomRepository().SetAutoLock(ctx, room.ID, *deadline); err != nil {
				return nil, err
			}
		}
	}

	if len(entries)+1 >= room.Capacity {
		entries = append(entries, entry)
		if err := s.lockFilledRoom(ctx, uow, room, entries, now); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entry, nil
}

// pickSeat validates a seat preference or assigns the lowest free position
func pickSeat(room *models.Room, entries []*models.Entry, preference int) (int, error) {
	taken := make(map[int]bool, len(entries))
	for _, entry := range entries {
		taken[entry.Position] = true
	}

	if preference != 0 {
		if preference < 1 || preference > room.Capacity {
			return 0, ErrInvalidSeat
		}
		if taken[preference] {
			return 0, ErrSeatTaken
		}
		return preference, nil
	}

	for position := 1; position <= room.Capacity; position++ {
		if !taken[position] {
			return position, nil
		}
	}
	return 0, ErrRoomFull
}

// lockFilledRoom transitions a just-filled room to locked and starts (dice
// duel) or resolves (roulette) the round in the same transaction
func (s *roomService) lockFilledRoom(ctx context.Context, uow UnitOfWork, room *models.Room, entries []*models.Entry, now time.Time) error {
	locked, err := uow.RoomRepository().TransitionState(ctx, room.ID, models.RoomStateOpen, models.RoomStateLocked, now)
	if err != nil {
		return err
	}
	if !locked {
		// Another caller moved the room first; nothing left to do here
		return nil
	}

	oldState := room.State
	room.State = models.RoomStateLocked
	room.LockedAt = &now
	uow.EventBus().Publish(events.RoomStateChangedEvent{
		RoomID:       room.ID,
		RoomPublicID: room.PublicID.String(),
		OldState:     oldState,
		NewState:     models.RoomStateLocked,
		Round:        room.Round,
	})

	switch room.Kind {
	case models.GameKindRoulette:
		return s.resolveRoom(ctx, uow, room, entries, now)
	case models.GameKindDiceDuel:
		duel := models.NewDiceDuelRound(room.Stake)
		deadline := now.Add(s.cfg.DiceDuelTurnTimeout)
		duel.TurnDeadline = &deadline
		room.DiceRound = duel
		return uow.RoomRepository().Update(ctx, room)
	}
	return nil
}

// Roll performs a dice duel roll for the acting user
func (s *roomService) Roll(ctx context.Context, roomID, userID int64) (*models.DiceDuelRound, error) {
	return s.applyDuelAction(ctx, roomID, userID, TurnActionRoll)
}

// Forfeit concedes the current duel round, taking the usual damage
func (s *roomService) Forfeit(ctx context.Context, roomID, userID int64) (*models.DiceDuelRound, error) {
	return s.applyDuelAction(ctx, roomID, userID, TurnActionForfeit)
}

func (s *roomService) applyDuelAction(ctx context.Context, roomID, userID int64, action TurnAction) (*models.DiceDuelRound, error) {
	if _, err := s.EnsureMaintained(ctx, roomID); err != nil {
		return nil, err
	}

	now := s.clock.Now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	room, err := uow.RoomRepository().GetByIDForUpdate(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if room.Kind != models.GameKindDiceDuel {
		return nil, ErrWrongVariant
	}
	if !room.IsLocked() {
		return nil, ErrDuelNotRunning
	}

	entry, err := uow.EntryRepository().Get(ctx, roomID, userID, room.Round)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	if entry == nil {
		return nil, ErrNotSeated
	}

	entries, err := uow.EntryRepository().GetActiveByRoom(ctx, roomID, room.Round)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}

	variant := s.variants[models.GameKindDiceDuel]
	outcome, err := variant.ApplyTurn(room, entries, entry.Position, action, now)
	if err != nil {
		return nil, err
	}

	rolled := events.DiceRolledEvent{
		RoomID:       room.ID,
		RoomPublicID: room.PublicID.String(),
		UserID:       userID,
		Position:     entry.Position,
		Forfeit:      outcome.Forfeit,
	}
	if outcome.Roll != nil {
		rolled.D1, rolled.D2 = outcome.Roll.D1, outcome.Roll.D2
	}
	uow.EventBus().Publish(rolled)

	if outcome.Finished {
		if err := s.resolveRoom(ctx, uow, room, entries, now); err != nil {
			return nil, err
		}
	} else {
		if err := uow.RoomRepository().Update(ctx, room); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return room.DiceRound, nil
}

// Leave vacates a seat. Before lock the stake is refunded; leaving a running
// duel forfeits the remaining pot to the opponent and resets the room so a
// new pairing can form.
func (s *roomService) Leave(ctx context.Context, roomID, userID int64) error {
	if _, err := s.EnsureMaintained(ctx, roomID); err != nil {
		return err
	}

	now := s.clock.Now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	room, err := uow.RoomRepository().GetByIDForUpdate(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return ErrRoomNotFound
	}

	entry, err := uow.EntryRepository().Get(ctx, roomID, userID, room.Round)
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}
	if entry == nil {
		return ErrNotSeated
	}

	switch {
	case room.IsOpen():
		if err := s.refundSeat(ctx, uow, room, entry, "left room before lock"); err != nil {
			return err
		}
		if _, err := uow.EntryRepository().Delete(ctx, entry.ID); err != nil {
			return err
		}
		uow.EventBus().Publish(events.SeatLeftEvent{
			RoomID:       room.ID,
			RoomPublicID: room.PublicID.String(),
			UserID:       userID,
			Position:     entry.Position,
			Round:        room.Round,
		})

	case room.IsLocked() && room.Kind == models.GameKindDiceDuel:
		if err := s.abandonDuel(ctx, uow, room, entry, now); err != nil {
			return err
		}

	default:
		return ErrRoomNotOpen
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// abandonDuel hands the whole remaining pot to the opponent and resets the
// room to open without recording a finished round
func (s *roomService) abandonDuel(ctx context.Context, uow UnitOfWork, room *models.Room, leaver *models.Entry, now time.Time) error {
	if room.DiceRound == nil {
		return ErrDuelNotRunning
	}

	entries, err := uow.EntryRepository().GetActiveByRoom(ctx, room.ID, room.Round)
	if err != nil {
		return fmt.Errorf("failed to get entries: %w", err)
	}

	opponentSeat := models.OtherSeat(leaver.Position)
	var opponent *models.Entry
	for _, entry := range entries {
		if entry.Position == opponentSeat {
			opponent = entry
		}
	}
	if opponent == nil {
		return fmt.Errorf("duel has no opponent entry at seat %d", opponentSeat)
	}

	pot := room.DiceRound.Pot()
	if err := s.creditUser(ctx, uow, opponent.UserID, pot, models.TransactionKindWinCredit,
		"opponent abandoned duel", room.ID, room.Round); err != nil {
		return err
	}

	uow.EventBus().Publish(events.SeatLeftEvent{
		RoomID:       room.ID,
		RoomPublicID: room.PublicID.String(),
		UserID:       leaver.UserID,
		Position:     leaver.Position,
		Round:        room.Round,
	})

	return s.resetRoom(ctx, uow, room, models.RoomStateLocked)
}

// Reset moves a finished room back to open for the next round. Admins may
// force-reset from any state, refunding active-round stakes first.
func (s *roomService) Reset(ctx context.Context, roomID, actorID int64) (*models.Room, error) {
	now := s.clock.Now()
	admin := s.isAdmin(actorID)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	room, err := uow.RoomRepository().GetByIDForUpdate(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	if room.IsFinished() {
		if !admin && !room.CanReset(now, s.cfg.ResetDwell) {
			return nil, ErrResetTooSoon
		}
		if err := s.resetRoom(ctx, uow, room, models.RoomStateFinished); err != nil {
			return nil, err
		}
	} else {
		if !admin {
			return nil, ErrNotAuthorized
		}
		// Forced reset refunds every staked seat of the active round before
		// the round is cleared. Bots staked through the same wallet path as
		// humans, so they are refunded the same way to keep the books closed.
		entries, err := uow.EntryRepository().GetActiveByRoom(ctx, roomID, room.Round)
		if err != nil {
			return nil, fmt.Errorf("failed to get entries: %w", err)
		}
		for _, entry := range entries {
			if err := s.refundSeat(ctx, uow, room, entry, "admin force reset"); err != nil {
				return nil, err
			}
		}
		if err := s.resetRoom(ctx, uow, room, room.State); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.EnsureMaintained(ctx, roomID)
}

// resetRoom commits the room to a fresh seed pair and advances the round.
// The conditional update collapses concurrent reset attempts to one winner;
// losing is not an error.
func (s *roomService) resetRoom(ctx context.Context, uow UnitOfWork, room *models.Room, from models.RoomState) error {
	seed, hash, err := fair.CommitSeed()
	if err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	reset, err := uow.RoomRepository().ResetForNextRound(ctx, room.ID, from, seed, hash)
	if err != nil {
		return err
	}
	if !reset {
		return nil
	}

	oldState := room.State
	room.State = models.RoomStateOpen
	room.Round++
	room.SeedSecret = seed
	room.SeedHash = hash
	room.Seed = nil
	room.DiceRound = nil
	room.AutoLockAt = nil
	room.PreselectedSeat = nil
	room.WinningEntryID = nil
	room.Prize = nil
	room.LockedAt = nil
	room.FinishedAt = nil

	uow.EventBus().Publish(events.RoomStateChangedEvent{
		RoomID:       room.ID,
		RoomPublicID: room.PublicID.String(),
		OldState:     oldState,
		NewState:     models.RoomStateOpen,
		Round:        room.Round,
	})

	return nil
}

// Archive soft-deletes an empty room
func (s *roomService) Archive(ctx context.Context, roomID, actorID int64) error {
	if !s.isAdmin(actorID) {
		return ErrNotAuthorized
	}

	now := s.clock.Now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	room, err := uow.RoomRepository().GetByIDForUpdate(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return ErrRoomNotFound
	}

	count, err := uow.EntryRepository().CountActive(ctx, roomID, room.Round)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	if count > 0 {
		return ErrRoomNotEmpty
	}

	archived, err := uow.RoomRepository().SoftDelete(ctx, roomID, now)
	if err != nil {
		return err
	}
	if !archived {
		return ErrRoomNotOpen
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *roomService) isAdmin(userID int64) bool {
	for _, adminID := range s.cfg.AdminUserIDs {
		if userID == adminID {
			return true
		}
	}
	return false
}

// refundSeat returns a seat's stake to its owner with a REFUND ledger entry
func (s *roomService) refundSeat(ctx context.Context, uow UnitOfWork, room *models.Room, entry *models.Entry, reason string) error {
	return s.creditUser(ctx, uow, entry.UserID, room.Stake, models.TransactionKindRefund, reason, room.ID, room.Round)
}

// creditUser adds funds to a wallet and records the ledger entry in the
// same transaction
func (s *roomService) creditUser(ctx context.Context, uow UnitOfWork, userID, amount int64, kind models.TransactionKind, reason string, roomID int64, round int) error {
	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := uow.UserRepository().AddBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, err)
	}

	return RecordTransaction(ctx, uow, &models.WalletTransaction{
		UserID:        userID,
		Amount:        amount,
		BalanceBefore: user.Balance,
		BalanceAfter:  user.Balance + amount,
		Kind:          kind,
		Reason:        reason,
		Metadata:      map[string]any{"room_id": roomID, "round": round},
		RoomID:        &roomID,
	})
}
