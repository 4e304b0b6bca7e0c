package actor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepo stores committed snapshots in memory, standing in for redis.
type memoryRepo struct {
	mu    sync.Mutex
	rooms map[string]*entity.Room
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rooms: make(map[string]*entity.Room)}
}

func (that *memoryRepo) CreateOrUpdate(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.rooms[room.ID] = room.Clone()
	return nil
}

func (that *memoryRepo) get(id string) *entity.Room {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.rooms[id]
}

var errOracleDown = errors.New("oracle down")

// brokenOracle fails every call, as if the rule service were unreachable.
type brokenOracle struct{}

func (that *brokenOracle) IsLegalMove(_ context.Context, _ entity.Board, _, _ int) (bool, error) {
	return false, errOracleDown
}

func (that *brokenOracle) Outcome(_ context.Context, _ entity.Board, _, _ int, _ string) (string, error) {
	return "", errOracleDown
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startRoom(t *testing.T, oracle ruleOracle, room *entity.Room, timeout time.Duration) (*Room, *memoryRepo) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	repo := newMemoryRepo()
	require.NoError(t, repo.CreateOrUpdate(ctx, room))

	roomActor := New(testLogger(), repo, oracle, room, Config{MoveTimeout: timeout})
	roomActor.Start(ctx)

	return roomActor, repo
}

func awaitAck(t *testing.T, ack <-chan error) error {
	t.Helper()

	select {
	case err := <-ack:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("event was not processed in time")
		return nil
	}
}

func awaitDone(t *testing.T, roomActor *Room) {
	t.Helper()

	select {
	case <-roomActor.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("room did not finish in time")
	}
}

func TestRoom_EndToEndWin(t *testing.T) {
	// Given: a fresh room created by p1
	roomActor, _ := startRoom(t, rules.NewLocalOracle(), entity.NewRoom("room-1", "p1"), time.Minute)

	state := roomActor.State()
	assert.Equal(t, entity.StatusWaiting, state.Status)
	require.Len(t, state.Players, 1)
	assert.Equal(t, entity.MarkX, state.Players[0].Mark)

	// When: p2 joins
	require.NoError(t, awaitAck(t, roomActor.Join("p2")))

	// Then: the game activates with p1 to move and a deadline armed
	state = roomActor.State()
	assert.Equal(t, entity.StatusActive, state.Status)
	assert.Equal(t, "p1", state.CurrentTurn)
	require.Len(t, state.Players, 2)
	assert.Equal(t, entity.MarkO, state.Players[1].Mark)
	require.NotNil(t, state.MoveDeadline)

	// When: the players trade moves until p1 completes column 0
	moves := []struct {
		player string
		x, y   int
	}{
		{"p1", 0, 0},
		{"p2", 1, 1},
		{"p1", 0, 1},
		{"p2", 2, 2},
		{"p1", 0, 2},
	}

	for _, move := range moves {
		require.NoError(t, awaitAck(t, roomActor.Move(move.player, move.x, move.y)))
	}

	// Then: p1 wins and the run produces a final record
	awaitDone(t, roomActor)

	state = roomActor.State()
	assert.Equal(t, entity.StatusFinished, state.Status)
	assert.Equal(t, "p1", state.Winner)
	assert.Equal(t, entity.MarkX, state.Board.Cell(0, 0))
	assert.Equal(t, entity.MarkX, state.Board.Cell(0, 1))
	assert.Equal(t, entity.MarkX, state.Board.Cell(0, 2))
	assert.Empty(t, state.CurrentTurn)
	assert.Nil(t, state.MoveDeadline)

	result := roomActor.Result()
	require.NotNil(t, result)
	assert.Equal(t, "room-1", result.RoomID)
	assert.Equal(t, entity.ResultWin, result.FinalResult)
	assert.Equal(t, "p1", result.State.Winner)
}

func TestRoom_TurnAlternation(t *testing.T) {
	roomActor, _ := startRoom(t, rules.NewLocalOracle(), entity.NewRoom("room-1", "p1"), time.Minute)
	require.NoError(t, awaitAck(t, roomActor.Join("p2")))

	// After every accepted ongoing move the turn belongs to the other player.
	require.NoError(t, awaitAck(t, roomActor.Move("p1", 0, 0)))
	assert.Equal(t, "p2", roomActor.State().CurrentTurn)

	require.NoError(t, awaitAck(t, roomActor.Move("p2", 1, 1)))
	assert.Equal(t, "p1", roomActor.State().CurrentTurn)

	require.NoError(t, awaitAck(t, roomActor.Move("p1", 2, 2)))
	assert.Equal(t, "p2", roomActor.State().CurrentTurn)
}

func TestRoom_IllegalMovesAreIdempotent(t *testing.T) {
	roomActor, _ := startRoom(t, rules.NewLocalOracle(), entity.NewRoom("room-1", "p1"), time.Minute)
	require.NoError(t, awaitAck(t, roomActor.Join("p2")))
	require.NoError(t, awaitAck(t, roomActor.Move("p1", 0, 0)))

	before := roomActor.State()

	// Occupied cell, out-of-range coordinates and wrong-turn moves, repeated.
	for i := 0; i < 3; i++ {
		require.NoError(t, awaitAck(t, roomActor.Move("p2", 0, 0)))
		require.NoError(t, awaitAck(t, roomActor.Move("p2", 3, 0)))
		require.NoError(t, awaitAck(t, roomActor.Move("p2", -1, 2)))
		require.NoError(t, awaitAck(t, roomActor.Move("p1", 1, 1)))
	}

	after := roomActor.State()
	assert.Equal(t, before.Board, after.Board)
	assert.Equal(t, before.CurrentTurn, after.CurrentTurn)
	assert.Equal(t, before.Status, after.Status)
}

func TestRoom_JoinLimits(t *testing.T) {
	roomActor, _ := startRoom(t, rules.NewLocalOracle(), entity.NewRoom("room-1", "p1"), time.Minute)

	// The creator re-joining is a no-op.
	require.NoError(t, awaitAck(t, roomActor.Join("p1")))
	assert.Equal(t, entity.StatusWaiting, roomActor.State().Status)

	require.NoError(t, awaitAck(t, roomActor.Join("p2")))

	// A third player and a duplicate second join change nothing.
	require.NoError(t, awaitAck(t, roomActor.Join("p3")))
	require.NoError(t, awaitAck(t, roomActor.Join("p2")))

	state := roomActor.State()
	require.Len(t, state.Players, 2)
	assert.Equal(t, "p1", state.Players[0].ID)
	assert.Equal(t, "p2", state.Players[1].ID)
}

func TestRoom_DrawScenario(t *testing.T) {
	roomActor, _ := startRoom(t, rules.NewLocalOracle(), entity.NewRoom("room-1", "p1"), time.Minute)
	require.NoError(t, awaitAck(t, roomActor.Join("p2")))

	// Fills the grid as X O X / O X X / O X O with no line completed.
	moves := []struct {
		player string
		x, y   int
	}{
		{"p1", 0, 0},
		{"p2", 1, 0},
		{"p1", 1, 1},
		{"p2", 0, 1},
		{"p1", 2, 1},
		{"p2", 0, 2},
		{"p1", 2, 0},
		{"p2", 2, 2},
		{"p1", 1, 2},
	}

	for _, move := range moves {
		require.NoError(t, awaitAck(t, roomActor.Move(move.player, move.x, move.y)))
	}

	awaitDone(t, roomActor)

	state := roomActor.State()
	assert.Equal(t, entity.StatusFinished, state.Status)
	assert.Empty(t, state.Winner)

	result := roomActor.Result()
	require.NotNil(t, result)
	assert.Equal(t, entity.ResultDraw, result.FinalResult)
}

func TestRoom_DeadlineForfeiture(t *testing.T) {
	// Given: an active room with a short move window and no move coming
	roomActor, repo := startRoom(t, rules.NewLocalOracle(), entity.NewRoom("room-1", "p1"), 50*time.Millisecond)
	require.NoError(t, awaitAck(t, roomActor.Join("p2")))

	// Then: the player on turn (p1) forfeits and p2 wins
	awaitDone(t, roomActor)

	state := roomActor.State()
	assert.Equal(t, entity.StatusFinished, state.Status)
	assert.Equal(t, "p2", state.Winner)

	// The forfeit was committed to storage before the run ended.
	persisted := repo.get("room-1")
	require.NotNil(t, persisted)
	assert.Equal(t, entity.StatusFinished, persisted.Status)
	assert.Equal(t, "p2", persisted.Winner)
}

func TestRoom_WaitingRoomHasNoDeadline(t *testing.T) {
	// Given: a room that never reaches two players
	roomActor, _ := startRoom(t, rules.NewLocalOracle(), entity.NewRoom("room-1", "p1"), 30*time.Millisecond)

	// When: several move windows pass
	time.Sleep(150 * time.Millisecond)

	// Then: the room is still waiting
	state := roomActor.State()
	assert.Equal(t, entity.StatusWaiting, state.Status)
	assert.Nil(t, roomActor.Result())
}

func TestRoom_ResumeWithExpiredDeadline(t *testing.T) {
	// Given: a persisted active room whose deadline elapsed while the
	// process was down
	room := entity.NewRoom("room-1", "p1")
	require.NoError(t, room.Seat("p2"))
	room.Status = entity.StatusActive
	room.CurrentTurn = "p2"
	expired := time.Now().Add(-time.Second)
	room.MoveDeadline = &expired

	// When: the actor resumes from that snapshot
	roomActor, _ := startRoom(t, rules.NewLocalOracle(), room, time.Minute)

	// Then: the overdue player forfeits immediately
	awaitDone(t, roomActor)

	state := roomActor.State()
	assert.Equal(t, entity.StatusFinished, state.Status)
	assert.Equal(t, "p1", state.Winner)
}

func TestRoom_TerminalStateIsImmutable(t *testing.T) {
	roomActor, _ := startRoom(t, rules.NewLocalOracle(), entity.NewRoom("room-1", "p1"), time.Minute)
	require.NoError(t, awaitAck(t, roomActor.Join("p2")))

	for _, move := range []struct {
		player string
		x, y   int
	}{
		{"p1", 0, 0}, {"p2", 1, 1}, {"p1", 0, 1}, {"p2", 2, 2}, {"p1", 0, 2},
	} {
		require.NoError(t, awaitAck(t, roomActor.Move(move.player, move.x, move.y)))
	}

	awaitDone(t, roomActor)
	before := roomActor.State()

	// Late signals on a finished room are accepted but ignored.
	require.NoError(t, awaitAck(t, roomActor.Join("p3")))
	require.NoError(t, awaitAck(t, roomActor.Move("p2", 1, 0)))

	after := roomActor.State()
	assert.Equal(t, before.Board, after.Board)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Winner, after.Winner)
	assert.Len(t, after.Players, 2)
}

func TestRoom_OracleFailureLeavesMoveUnapplied(t *testing.T) {
	// Given: an active room whose rule oracle is unreachable
	roomActor, _ := startRoom(t, &brokenOracle{}, activeRoom(t), time.Minute)

	before := roomActor.State()

	// When: the player on turn submits a move
	err := awaitAck(t, roomActor.Move("p1", 0, 0))

	// Then: the failure surfaces as ErrRulesUnavailable and nothing changed
	assert.ErrorIs(t, err, apperror.ErrRulesUnavailable)

	after := roomActor.State()
	assert.Equal(t, before.Board, after.Board)
	assert.Equal(t, before.CurrentTurn, after.CurrentTurn)
	assert.Equal(t, before.Status, after.Status)
}

// activeRoom builds a two-player active aggregate without going through join.
func activeRoom(t *testing.T) *entity.Room {
	t.Helper()

	room := entity.NewRoom("room-1", "p1")
	require.NoError(t, room.Seat("p2"))
	room.Status = entity.StatusActive
	room.CurrentTurn = "p1"
	deadline := time.Now().Add(time.Minute)
	room.MoveDeadline = &deadline

	return room
}
