package service

import (
	"context"
	"testing"
	"time"

	"gamehall/config"
	"gamehall/events"
	"gamehall/fair"
	"gamehall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func serviceTestConfig() *config.Config {
	return &config.Config{
		StartingBalance:       100000,
		RouletteCapacity:      12,
		RouletteMultiplier:    10,
		RouletteWaitWindow:    60 * time.Second,
		RouletteFillRetry:     15 * time.Second,
		DiceDuelTurnTimeout:   30 * time.Second,
		DiceDuelDamageDivisor: 5,
		ResetDwell:            10 * time.Second,
		AdminUserIDs:          []int64{900},
	}
}

// roomServiceMocks bundles the wired-up mocks behind a room service under test
type roomServiceMocks struct {
	factory    *MockUnitOfWorkFactory
	uow        *MockUnitOfWork
	roomRepo   *MockRoomRepository
	entryRepo  *MockEntryRepository
	userRepo   *MockUserRepository
	walletRepo *MockWalletTransactionRepository
	resultRepo *MockGameResultRepository
	bus        *CapturingEventPublisher
	clock      *fixedClock
}

func newRoomServiceMocks(now time.Time) (*roomService, *roomServiceMocks) {
	m := &roomServiceMocks{
		factory:    new(MockUnitOfWorkFactory),
		uow:        new(MockUnitOfWork),
		roomRepo:   new(MockRoomRepository),
		entryRepo:  new(MockEntryRepository),
		userRepo:   new(MockUserRepository),
		walletRepo: new(MockWalletTransactionRepository),
		resultRepo: new(MockGameResultRepository),
		bus:        &CapturingEventPublisher{},
		clock:      newFixedClock(now),
	}
	m.uow.SetRepositories(m.roomRepo, m.entryRepo, m.userRepo, m.walletRepo, m.resultRepo)
	m.uow.SetEventBus(m.bus)
	m.factory.On("Create").Return(m.uow)
	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)

	svc := NewRoomService(m.factory, serviceTestConfig(), m.clock).(*roomService)
	return svc, m
}

func openRouletteRoom(now time.Time) *models.Room {
	deadline := now.Add(60 * time.Second)
	return &models.Room{
		ID:         10,
		Kind:       models.GameKindRoulette,
		Stake:      1000,
		Capacity:   12,
		State:      models.RoomStateOpen,
		Round:      1,
		AutoLockAt: &deadline,
		SeedSecret: "f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0f",
		SeedHash:   "unused-in-unit-tests",
	}
}

func TestRoomService_CreateRoom(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	m.roomRepo.On("Create", ctx, mock.MatchedBy(func(r *models.Room) bool {
		return r.Kind == models.GameKindRoulette &&
			r.State == models.RoomStateOpen &&
			r.Round == 1 &&
			r.Capacity == 12 &&
			r.Stake == 2500 &&
			r.SeedSecret != "" &&
			fair.Verify(r.SeedSecret, r.SeedHash) &&
			r.AutoLockAt != nil &&
			r.AutoLockAt.Equal(now.Add(60*time.Second))
	})).Return(nil)

	room, err := svc.CreateRoom(ctx, models.GameKindRoulette, 2500)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.NotEqual(t, "", room.PublicID.String())

	m.roomRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_FillFromFirstSeatDefersWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)
	svc.cfg.RouletteFillFromFirst = true

	m.roomRepo.On("Create", ctx, mock.MatchedBy(func(r *models.Room) bool {
		return r.AutoLockAt == nil
	})).Return(nil)

	_, err := svc.CreateRoom(ctx, models.GameKindRoulette, 1000)
	require.NoError(t, err)
	m.roomRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_InvalidStake(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRoomServiceMocks(time.Now())

	_, err := svc.CreateRoom(ctx, models.GameKindRoulette, 0)
	assert.Error(t, err)

	_, err = svc.CreateRoom(ctx, models.GameKindDiceDuel, -100)
	assert.Error(t, err)
}

func TestRoomService_Join_Success(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	room := openRouletteRoom(now)
	user := &models.User{ID: 501, Username: "alice", Balance: 50000}

	m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
	m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
	m.userRepo.On("GetByID", ctx, int64(501)).Return(user, nil)
	m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(nil, nil)
	m.entryRepo.On("GetActiveByRoom", ctx, int64(10), 1).Return([]*models.Entry{
		{ID: 90, RoomID: 10, UserID: 777, Position: 1, Round: 1},
	}, nil)
	m.userRepo.On("DeductBalance", ctx, int64(501), int64(1000)).Return(nil)
	m.walletRepo.On("Record", ctx, mock.MatchedBy(func(tx *models.WalletTransaction) bool {
		return tx.UserID == 501 &&
			tx.Amount == -1000 &&
			tx.BalanceBefore == 50000 &&
			tx.BalanceAfter == 49000 &&
			tx.Kind == models.TransactionKindJoinDebit
	})).Return(nil)
	m.entryRepo.On("Create", ctx, mock.MatchedBy(func(e *models.Entry) bool {
		return e.RoomID == 10 && e.UserID == 501 && e.Position == 2 && e.Round == 1
	})).Return(nil)

	entry, err := svc.Join(ctx, 10, 501, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Position) // lowest free seat

	joined := m.bus.ByType(events.EventTypeSeatJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, int64(501), joined[0].(events.SeatJoinedEvent).UserID)

	m.roomRepo.AssertExpectations(t)
	m.userRepo.AssertExpectations(t)
	m.entryRepo.AssertExpectations(t)
	m.walletRepo.AssertExpectations(t)
}

func TestRoomService_Join_StartsFillWindowOnFirstSeat(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)
	svc.cfg.RouletteFillFromFirst = true

	room := openRouletteRoom(now)
	room.AutoLockAt = nil
	user := &models.User{ID: 501, Username: "alice", Balance: 50000}

	m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
	m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
	m.userRepo.On("GetByID", ctx, int64(501)).Return(user, nil)
	m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(nil, nil)
	m.entryRepo.On("GetActiveByRoom", ctx, int64(10), 1).Return([]*models.Entry{}, nil)
	m.userRepo.On("DeductBalance", ctx, int64(501), int64(1000)).Return(nil)
	m.walletRepo.On("Record", ctx, mock.Anything).Return(nil)
	m.entryRepo.On("Create", ctx, mock.Anything).Return(nil)
	m.roomRepo.On("SetAutoLock", ctx, int64(10), now.Add(60*time.Second)).Return(true, nil)

	_, err := svc.Join(ctx, 10, 501, 0)
	require.NoError(t, err)
	m.roomRepo.AssertExpectations(t)
}

func TestRoomService_Join_Guards(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("room not found", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(nil, nil)

		_, err := svc.Join(ctx, 10, 501, 0)
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("room not open", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := openRouletteRoom(now)
		room.State = models.RoomStateLocked
		room.AutoLockAt = nil
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)

		_, err := svc.Join(ctx, 10, 501, 0)
		assert.ErrorIs(t, err, ErrRoomNotOpen)
	})

	t.Run("already seated", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := openRouletteRoom(now)
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.userRepo.On("GetByID", ctx, int64(501)).Return(&models.User{ID: 501, Balance: 5000}, nil)
		m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(&models.Entry{ID: 91}, nil)

		_, err := svc.Join(ctx, 10, 501, 0)
		assert.ErrorIs(t, err, ErrAlreadySeated)
	})

	t.Run("seat taken", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := openRouletteRoom(now)
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.userRepo.On("GetByID", ctx, int64(501)).Return(&models.User{ID: 501, Balance: 5000}, nil)
		m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(nil, nil)
		m.entryRepo.On("GetActiveByRoom", ctx, int64(10), 1).Return([]*models.Entry{
			{ID: 90, Position: 3},
		}, nil)

		_, err := svc.Join(ctx, 10, 501, 3)
		assert.ErrorIs(t, err, ErrSeatTaken)
	})

	t.Run("seat preference out of range", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := openRouletteRoom(now)
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.userRepo.On("GetByID", ctx, int64(501)).Return(&models.User{ID: 501, Balance: 5000}, nil)
		m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(nil, nil)
		m.entryRepo.On("GetActiveByRoom", ctx, int64(10), 1).Return([]*models.Entry{}, nil)

		_, err := svc.Join(ctx, 10, 501, 13)
		assert.ErrorIs(t, err, ErrInvalidSeat)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := openRouletteRoom(now)
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.userRepo.On("GetByID", ctx, int64(501)).Return(&models.User{ID: 501, Balance: 100}, nil)
		m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(nil, nil)
		m.entryRepo.On("GetActiveByRoom", ctx, int64(10), 1).Return([]*models.Entry{}, nil)
		m.userRepo.On("DeductBalance", ctx, int64(501), int64(1000)).
			Return(ErrInsufficientBalance)

		_, err := svc.Join(ctx, 10, 501, 0)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})
}

func TestRoomService_Join_LastSeatStartsDiceDuel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	room := &models.Room{
		ID:         20,
		Kind:       models.GameKindDiceDuel,
		Stake:      1000,
		Capacity:   2,
		State:      models.RoomStateOpen,
		Round:      1,
		SeedSecret: "0011223344556677889900112233445566778899001122334455667788990011",
	}
	user := &models.User{ID: 602, Username: "bob", Balance: 20000}

	m.roomRepo.On("GetByID", ctx, int64(20)).Return(room, nil)
	m.roomRepo.On("GetByIDForUpdate", ctx, int64(20)).Return(room, nil)
	m.userRepo.On("GetByID", ctx, int64(602)).Return(user, nil)
	m.entryRepo.On("Get", ctx, int64(20), int64(602), 1).Return(nil, nil)
	m.entryRepo.On("GetActiveByRoom", ctx, int64(20), 1).Return([]*models.Entry{
		{ID: 201, RoomID: 20, UserID: 601, Position: 1, Round: 1},
	}, nil)
	m.userRepo.On("DeductBalance", ctx, int64(602), int64(1000)).Return(nil)
	m.walletRepo.On("Record", ctx, mock.Anything).Return(nil)
	m.entryRepo.On("Create", ctx, mock.Anything).Return(nil)
	m.roomRepo.On("TransitionState", ctx, int64(20), models.RoomStateOpen, models.RoomStateLocked, now).
		Return(true, nil)
	m.roomRepo.On("Update", ctx, room).Return(nil)

	_, err := svc.Join(ctx, 20, 602, 0)
	require.NoError(t, err)

	require.NotNil(t, room.DiceRound)
	assert.Equal(t, int64(1000), room.DiceRound.Balances[1])
	assert.Equal(t, int64(1000), room.DiceRound.Balances[2])
	assert.Equal(t, 1, room.DiceRound.Starter)
	require.NotNil(t, room.DiceRound.TurnDeadline)
	assert.Equal(t, now.Add(30*time.Second), *room.DiceRound.TurnDeadline)

	changed := m.bus.ByType(events.EventTypeRoomStateChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, models.RoomStateLocked, changed[0].(events.RoomStateChangedEvent).NewState)

	m.roomRepo.AssertExpectations(t)
}

func TestRoomService_Join_LastSeatResolvesRoulette(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	seed := "aa55aa55aa55aa55aa55aa55aa55aa55aa55aa55aa55aa55aa55aa55aa55aa55"
	room := openRouletteRoom(now)
	room.Capacity = 2
	room.SeedSecret = seed
	existing := &models.Entry{ID: 100, RoomID: 10, UserID: 777, Position: 1, Round: 1}
	user := &models.User{ID: 501, Username: "alice", Balance: 50000}

	m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
	m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
	m.userRepo.On("GetByID", ctx, int64(501)).Return(user, nil).Once()
	m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(nil, nil)
	m.entryRepo.On("GetActiveByRoom", ctx, int64(10), 1).Return([]*models.Entry{existing}, nil)
	m.userRepo.On("DeductBalance", ctx, int64(501), int64(1000)).Return(nil)
	m.walletRepo.On("Record", ctx, mock.Anything).Return(nil)
	m.entryRepo.On("Create", ctx, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Entry).ID = 101
	})
	m.roomRepo.On("TransitionState", ctx, int64(10), models.RoomStateOpen, models.RoomStateLocked, now).
		Return(true, nil)
	m.roomRepo.On("TransitionState", ctx, int64(10), models.RoomStateLocked, models.RoomStateFinished, now).
		Return(true, nil)

	// Who wins is fixed by the seed and entry IDs
	index, err := fair.Reveal(seed, fair.ClientSeed([]int64{100, 101}), 1, 2)
	require.NoError(t, err)
	winnerUserID := []int64{777, 501}[index]
	winnerBalance := map[int64]int64{777: 0, 501: 49000}[winnerUserID]

	m.userRepo.On("GetByID", ctx, winnerUserID).
		Return(&models.User{ID: winnerUserID, Balance: winnerBalance}, nil)
	m.userRepo.On("AddBalance", ctx, winnerUserID, int64(10000)).Return(nil)
	m.roomRepo.On("Update", ctx, room).Return(nil)
	m.resultRepo.On("Create", ctx, mock.MatchedBy(func(result *models.GameResult) bool {
		return result.RoomID == 10 &&
			result.Round == 1 &&
			result.WinnerUserID == winnerUserID &&
			result.Prize == 10000 &&
			result.Seed == seed
	})).Return(nil)

	_, err = svc.Join(ctx, 10, 501, 0)
	require.NoError(t, err)

	assert.Equal(t, models.RoomStateFinished, room.State)
	require.NotNil(t, room.Seed)
	assert.Equal(t, seed, *room.Seed)

	finished := m.bus.ByType(events.EventTypeRoundFinished)
	require.Len(t, finished, 1)
	payload := finished[0].(events.RoundFinishedEvent)
	assert.Equal(t, winnerUserID, payload.WinnerUserID)
	assert.Equal(t, int64(10000), payload.Prize)
	assert.Equal(t, seed, payload.Seed)
	assert.False(t, payload.Preselected)

	m.roomRepo.AssertExpectations(t)
	m.resultRepo.AssertExpectations(t)
	m.userRepo.AssertExpectations(t)
}

func TestRoomService_Leave_BeforeLockRefunds(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	room := openRouletteRoom(now)
	entry := &models.Entry{ID: 90, RoomID: 10, UserID: 501, Position: 4, Round: 1}

	m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
	m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
	m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(entry, nil)
	m.userRepo.On("GetByID", ctx, int64(501)).Return(&models.User{ID: 501, Balance: 49000}, nil)
	m.userRepo.On("AddBalance", ctx, int64(501), int64(1000)).Return(nil)
	m.walletRepo.On("Record", ctx, mock.MatchedBy(func(tx *models.WalletTransaction) bool {
		return tx.UserID == 501 && tx.Amount == 1000 && tx.Kind == models.TransactionKindRefund
	})).Return(nil)
	m.entryRepo.On("Delete", ctx, int64(90)).Return(true, nil)

	err := svc.Leave(ctx, 10, 501)
	require.NoError(t, err)

	left := m.bus.ByType(events.EventTypeSeatLeft)
	require.Len(t, left, 1)
	assert.Equal(t, 4, left[0].(events.SeatLeftEvent).Position)

	m.entryRepo.AssertExpectations(t)
	m.walletRepo.AssertExpectations(t)
}

func TestRoomService_Leave_NotSeated(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	room := openRouletteRoom(now)
	m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)
	m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
	m.entryRepo.On("Get", ctx, int64(10), int64(501), 1).Return(nil, nil)

	err := svc.Leave(ctx, 10, 501)
	assert.ErrorIs(t, err, ErrNotSeated)
}

func TestRoomService_Leave_AbandonsRunningDuel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	room := &models.Room{
		ID:         20,
		Kind:       models.GameKindDiceDuel,
		Stake:      1000,
		Capacity:   2,
		State:      models.RoomStateLocked,
		Round:      3,
		SeedSecret: "1122334455667788990011223344556677889900112233445566778899001122",
	}
	room.DiceRound = models.NewDiceDuelRound(1000)
	room.DiceRound.Balances[1] = 600
	room.DiceRound.Balances[2] = 1400
	deadline := now.Add(10 * time.Second)
	room.DiceRound.TurnDeadline = &deadline

	leaver := &models.Entry{ID: 201, RoomID: 20, UserID: 601, Position: 1, Round: 3}
	opponent := &models.Entry{ID: 202, RoomID: 20, UserID: 602, Position: 2, Round: 3}

	m.roomRepo.On("GetByID", ctx, int64(20)).Return(room, nil)
	m.roomRepo.On("GetByIDForUpdate", ctx, int64(20)).Return(room, nil)
	m.entryRepo.On("Get", ctx, int64(20), int64(601), 3).Return(leaver, nil)
	m.entryRepo.On("GetActiveByRoom", ctx, int64(20), 3).Return([]*models.Entry{leaver, opponent}, nil)
	m.userRepo.On("GetByID", ctx, int64(602)).Return(&models.User{ID: 602, Balance: 9000}, nil)
	m.userRepo.On("AddBalance", ctx, int64(602), int64(2000)).Return(nil) // whole pot
	m.walletRepo.On("Record", ctx, mock.MatchedBy(func(tx *models.WalletTransaction) bool {
		return tx.UserID == 602 && tx.Amount == 2000 && tx.Kind == models.TransactionKindWinCredit
	})).Return(nil)
	m.roomRepo.On("ResetForNextRound", ctx, int64(20), models.RoomStateLocked,
		mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(true, nil)

	err := svc.Leave(ctx, 20, 601)
	require.NoError(t, err)

	assert.Equal(t, models.RoomStateOpen, room.State)
	assert.Equal(t, 4, room.Round)
	assert.Nil(t, room.DiceRound)

	m.roomRepo.AssertExpectations(t)
	m.userRepo.AssertExpectations(t)
	m.walletRepo.AssertExpectations(t)
}

func TestRoomService_Reset_FinishedRoom(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	finishedRoom := func() *models.Room {
		finishedAt := now.Add(-30 * time.Second)
		seed := "aabb"
		return &models.Room{
			ID:         10,
			Kind:       models.GameKindRoulette,
			Stake:      1000,
			Capacity:   12,
			State:      models.RoomStateFinished,
			Round:      5,
			Seed:       &seed,
			FinishedAt: &finishedAt,
		}
	}

	t.Run("after dwell elapses", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := finishedRoom()

		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.roomRepo.On("ResetForNextRound", ctx, int64(10), models.RoomStateFinished,
			mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(true, nil)
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)

		reset, err := svc.Reset(ctx, 10, 501)
		require.NoError(t, err)
		assert.Equal(t, models.RoomStateOpen, reset.State)
		assert.Equal(t, 6, reset.Round)
		assert.Nil(t, reset.Seed)
		assert.Nil(t, reset.WinningEntryID)
		m.roomRepo.AssertExpectations(t)
	})

	t.Run("too soon for non-admin", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := finishedRoom()
		justFinished := now.Add(-2 * time.Second)
		room.FinishedAt = &justFinished

		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)

		_, err := svc.Reset(ctx, 10, 501)
		assert.ErrorIs(t, err, ErrResetTooSoon)
	})

	t.Run("admin skips dwell", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := finishedRoom()
		justFinished := now.Add(-2 * time.Second)
		room.FinishedAt = &justFinished

		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.roomRepo.On("ResetForNextRound", ctx, int64(10), models.RoomStateFinished,
			mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(true, nil)
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)

		_, err := svc.Reset(ctx, 10, 900)
		require.NoError(t, err)
	})

	t.Run("lost reset race is not an error", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := finishedRoom()

		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.roomRepo.On("ResetForNextRound", ctx, int64(10), models.RoomStateFinished,
			mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(false, nil)
		m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)

		_, err := svc.Reset(ctx, 10, 501)
		require.NoError(t, err)
		// Room state untouched by the losing caller
		assert.Equal(t, 5, room.Round)
	})
}

func TestRoomService_Reset_ForcedByAdminRefundsEverySeat(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	room := openRouletteRoom(now)
	room.Round = 2
	human := &models.Entry{ID: 301, RoomID: 10, UserID: 501, Position: 1, Round: 2}
	bot := &models.Entry{ID: 302, RoomID: 10, UserID: 1, Position: 2, Round: 2, IsBot: true}

	m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
	m.entryRepo.On("GetActiveByRoom", ctx, int64(10), 2).Return([]*models.Entry{human, bot}, nil)
	m.userRepo.On("GetByID", ctx, int64(501)).Return(&models.User{ID: 501, Balance: 49000}, nil)
	m.userRepo.On("GetByID", ctx, int64(1)).Return(&models.User{ID: 1, IsBot: true, Balance: 99000}, nil)
	m.userRepo.On("AddBalance", ctx, int64(501), int64(1000)).Return(nil)
	m.userRepo.On("AddBalance", ctx, int64(1), int64(1000)).Return(nil)
	m.walletRepo.On("Record", ctx, mock.MatchedBy(func(tx *models.WalletTransaction) bool {
		return tx.Kind == models.TransactionKindRefund && tx.Amount == 1000
	})).Return(nil).Twice()
	m.roomRepo.On("ResetForNextRound", ctx, int64(10), models.RoomStateOpen,
		mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(true, nil)
	m.roomRepo.On("GetByID", ctx, int64(10)).Return(room, nil)

	_, err := svc.Reset(ctx, 10, 900)
	require.NoError(t, err)

	// Bot seats staked like everyone else, so they are refunded the same way
	m.userRepo.AssertExpectations(t)
	m.roomRepo.AssertExpectations(t)
	m.walletRepo.AssertExpectations(t)
}

func TestRoomService_Reset_NonAdminCannotForce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, m := newRoomServiceMocks(now)

	room := openRouletteRoom(now)
	m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)

	_, err := svc.Reset(ctx, 10, 501)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestRoomService_Archive(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty room archived", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := openRouletteRoom(now)
		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.entryRepo.On("CountActive", ctx, int64(10), 1).Return(0, nil)
		m.roomRepo.On("SoftDelete", ctx, int64(10), now).Return(true, nil)

		err := svc.Archive(ctx, 10, 900)
		require.NoError(t, err)
		m.roomRepo.AssertExpectations(t)
	})

	t.Run("occupied room rejected", func(t *testing.T) {
		svc, m := newRoomServiceMocks(now)
		room := openRouletteRoom(now)
		m.roomRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(room, nil)
		m.entryRepo.On("CountActive", ctx, int64(10), 1).Return(3, nil)

		err := svc.Archive(ctx, 10, 900)
		assert.ErrorIs(t, err, ErrRoomNotEmpty)
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		svc, _ := newRoomServiceMocks(now)

		err := svc.Archive(ctx, 10, 501)
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})
}
