package service

import (
	"testing"
	"time"

	"gamehall/config"
	"gamehall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diceDuelTestConfig() *config.Config {
	return &config.Config{
		DiceDuelTurnTimeout:   30 * time.Second,
		DiceDuelDamageDivisor: 5,
	}
}

func diceDuelTestRoom(stake int64) *models.Room {
	room := &models.Room{
		ID:         2,
		Kind:       models.GameKindDiceDuel,
		Stake:      stake,
		Capacity:   2,
		State:      models.RoomStateLocked,
		Round:      1,
		SeedSecret: "9f8e7d6c5b4a3928170f6e5d4c3b2a1908f7e6d5c4b3a2918070f6e5d4c3b2a1",
	}
	room.DiceRound = models.NewDiceDuelRound(stake)
	return room
}

func diceDuelTestEntries() []*models.Entry {
	return []*models.Entry{
		{ID: 201, RoomID: 2, UserID: 601, Position: 1, Round: 1},
		{ID: 202, RoomID: 2, UserID: 602, Position: 2, Round: 1},
	}
}

func TestDiceDuelVariant_ApplyTurn_EnforcesTurnOrder(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()
	now := time.Now().UTC()

	// Seat 2 may not jump ahead of the starter
	_, err := variant.ApplyTurn(room, entries, 2, TurnActionRoll, now)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	outcome, err := variant.ApplyTurn(room, entries, 1, TurnActionRoll, now)
	require.NoError(t, err)
	require.NotNil(t, outcome.Roll)
	assert.False(t, outcome.RoundResolved)

	// Same seat may not roll again within the round
	_, err = variant.ApplyTurn(room, entries, 1, TurnActionRoll, now)
	assert.ErrorIs(t, err, ErrAlreadyRolled)
}

func TestDiceDuelVariant_ApplyTurn_RollsAreSeedDerived(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	entries := diceDuelTestEntries()
	now := time.Now().UTC()

	first := diceDuelTestRoom(1000)
	second := diceDuelTestRoom(1000)

	outcomeA, err := variant.ApplyTurn(first, entries, 1, TurnActionRoll, now)
	require.NoError(t, err)
	outcomeB, err := variant.ApplyTurn(second, entries, 1, TurnActionRoll, now)
	require.NoError(t, err)

	assert.Equal(t, outcomeA.Roll.D1, outcomeB.Roll.D1)
	assert.Equal(t, outcomeA.Roll.D2, outcomeB.Roll.D2)
	assert.GreaterOrEqual(t, outcomeA.Roll.D1, 1)
	assert.LessOrEqual(t, outcomeA.Roll.D1, 6)
	assert.GreaterOrEqual(t, outcomeA.Roll.D2, 1)
	assert.LessOrEqual(t, outcomeA.Roll.D2, 6)
}

func TestDiceDuelVariant_ApplyTurn_ResolvesRoundOnSecondRoll(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()
	now := time.Now().UTC()

	_, err := variant.ApplyTurn(room, entries, 1, TurnActionRoll, now)
	require.NoError(t, err)
	outcome, err := variant.ApplyTurn(room, entries, 2, TurnActionRoll, now)
	require.NoError(t, err)

	assert.True(t, outcome.RoundResolved)
	duel := room.DiceRound
	assert.Equal(t, 2, duel.DuelRound)
	assert.Empty(t, duel.Rolls)
	require.Len(t, duel.History, 1)

	if outcome.Draw {
		assert.Equal(t, int64(1000), duel.Balances[1])
		assert.Equal(t, int64(1000), duel.Balances[2])
	} else {
		assert.Equal(t, int64(200), outcome.Damage) // stake / divisor
		assert.Equal(t, int64(800), duel.Balances[outcome.LoserSeat])
		assert.Equal(t, int64(1200), duel.Balances[models.OtherSeat(outcome.LoserSeat)])
	}
	// Sub-balances always conserve the combined stake until resolution
	assert.Equal(t, int64(2000), duel.Pot())
}

func TestDiceDuelVariant_ResolveDuelRound_Draw(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig()).(*diceDuelVariant)
	room := diceDuelTestRoom(1000)
	now := time.Now().UTC()

	room.DiceRound.Rolls[1] = &models.DiceRoll{D1: 3, D2: 4, Total: 7, RolledAt: now}
	room.DiceRound.Rolls[2] = &models.DiceRoll{D1: 5, D2: 2, Total: 7, RolledAt: now}

	outcome := &TurnOutcome{Seat: 2}
	variant.resolveDuelRound(room, outcome, 0, now)

	assert.True(t, outcome.Draw)
	assert.False(t, outcome.Finished)
	assert.Zero(t, outcome.Damage)
	assert.Equal(t, int64(1000), room.DiceRound.Balances[1])
	assert.Equal(t, int64(1000), room.DiceRound.Balances[2])
	require.Len(t, room.DiceRound.History, 1)
	assert.True(t, room.DiceRound.History[0].Draw)
}

func TestDiceDuelVariant_ApplyTurn_ForfeitTransfersDamage(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()
	now := time.Now().UTC()

	outcome, err := variant.ApplyTurn(room, entries, 1, TurnActionForfeit, now)
	require.NoError(t, err)

	assert.True(t, outcome.Forfeit)
	assert.True(t, outcome.RoundResolved)
	assert.Equal(t, 1, outcome.LoserSeat)
	assert.Equal(t, int64(200), outcome.Damage)
	assert.Equal(t, int64(800), room.DiceRound.Balances[1])
	assert.Equal(t, int64(1200), room.DiceRound.Balances[2])
	require.Len(t, room.DiceRound.History, 1)
	assert.True(t, room.DiceRound.History[0].Forfeit)
}

func TestDiceDuelVariant_ApplyTurn_DamageClampedAtBankruptcy(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()
	now := time.Now().UTC()

	// Seat 2 is one sliver away from bankrupt; the standard 200 damage must
	// clamp to what is left
	room.DiceRound.Balances[1] = 1870
	room.DiceRound.Balances[2] = 130

	outcome, err := variant.ApplyTurn(room, entries, 2, TurnActionForfeit, now)
	require.NoError(t, err)

	assert.Equal(t, int64(130), outcome.Damage)
	assert.True(t, outcome.Finished)
	assert.Equal(t, 1, outcome.WinnerSeat)
	assert.Equal(t, int64(0), room.DiceRound.Balances[2])
	assert.Equal(t, int64(2000), room.DiceRound.Balances[1])
	assert.Nil(t, room.DiceRound.TurnDeadline)
}

func TestDiceDuelVariant_ApplyTurn_SetsNextTurnDeadline(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := variant.ApplyTurn(room, entries, 1, TurnActionRoll, now)
	require.NoError(t, err)

	require.NotNil(t, room.DiceRound.TurnDeadline)
	assert.Equal(t, now.Add(30*time.Second), *room.DiceRound.TurnDeadline)
}

func TestDiceDuelVariant_ApplyTurn_TimeoutLosesRound(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()
	now := time.Now().UTC()

	outcome, err := variant.ApplyTurn(room, entries, 2, TurnActionTimeout, now)
	require.NoError(t, err)

	assert.True(t, outcome.Forfeit)
	assert.Equal(t, 2, outcome.LoserSeat)
	assert.Equal(t, int64(1200), room.DiceRound.Balances[1])
	assert.Equal(t, int64(800), room.DiceRound.Balances[2])
}

func TestDiceDuelVariant_StarterRotation(t *testing.T) {
	cfg := diceDuelTestConfig()
	cfg.DiceDuelStartingRotate = true
	variant := NewDiceDuelVariant(cfg)
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()
	now := time.Now().UTC()

	assert.Equal(t, 1, room.DiceRound.Starter)

	_, err := variant.ApplyTurn(room, entries, 1, TurnActionForfeit, now)
	require.NoError(t, err)

	assert.Equal(t, 2, room.DiceRound.Starter)
	assert.Equal(t, 2, room.DiceRound.NextToRoll())
}

func TestDiceDuelVariant_SelectWinner_SurvivingSeat(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()

	room.DiceRound.Balances[1] = 0
	room.DiceRound.Balances[2] = 2000

	winner, preselected, err := variant.SelectWinner(room, entries)
	require.NoError(t, err)
	assert.False(t, preselected)
	assert.Equal(t, 2, winner.Position)
}

func TestDiceDuelVariant_SelectWinner_NoBankruptSeat(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	entries := diceDuelTestEntries()

	_, _, err := variant.SelectWinner(room, entries)
	assert.Error(t, err)
}

func TestDiceDuelVariant_Prize_PaysPot(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)

	assert.Equal(t, int64(2000), variant.Prize(room))

	room.DiceRound.Balances[1] = 2000
	room.DiceRound.Balances[2] = 0
	assert.Equal(t, int64(2000), variant.Prize(room))
}

func TestDiceDuelVariant_ApplyTurn_RequiresRunningDuel(t *testing.T) {
	variant := NewDiceDuelVariant(diceDuelTestConfig())
	room := diceDuelTestRoom(1000)
	room.DiceRound = nil

	_, err := variant.ApplyTurn(room, diceDuelTestEntries(), 1, TurnActionRoll, time.Now())
	assert.ErrorIs(t, err, ErrDuelNotRunning)
}
