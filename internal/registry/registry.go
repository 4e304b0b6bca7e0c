// Package registry maps room ids to their actor instances and forwards
// create/join/move/query operations to the matching actor. It is the only
// caller of the actors and owns their lifecycle: resuming persisted rooms on
// boot and archiving results when a run ends.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gameroom-backend/internal/actor"
	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
)

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*entity.Room, error)
}

type resultRepo interface {
	Save(ctx context.Context, result *entity.GameResult) error
}

type archiveRepo interface {
	SaveGame(ctx context.Context, result *entity.GameResult) error
}

type ruleOracle interface {
	IsLegalMove(ctx context.Context, board entity.Board, x, y int) (bool, error)
	Outcome(ctx context.Context, board entity.Board, lastX, lastY int, mark string) (string, error)
}

type Registry struct {
	logger *slog.Logger

	roomRepo    roomRepo
	resultRepo  resultRepo
	archiveRepo archiveRepo
	oracle      ruleOracle
	moveTimeout time.Duration

	mu    sync.RWMutex
	rooms map[string]*actor.Room
}

func New(logger *slog.Logger, roomRepo roomRepo, resultRepo resultRepo, archiveRepo archiveRepo, oracle ruleOracle, moveTimeout time.Duration) *Registry {
	return &Registry{
		logger:      logger,
		roomRepo:    roomRepo,
		resultRepo:  resultRepo,
		archiveRepo: archiveRepo,
		oracle:      oracle,
		moveTimeout: moveTimeout,
		rooms:       make(map[string]*actor.Room),
	}
}

// Resume reloads every non-finished room from storage and restarts its actor
// from the last committed snapshot. A deadline that expired while the process
// was down forfeits as soon as the actor starts waiting.
func (that *Registry) Resume(ctx context.Context) error {
	log := that.logger.With("method", "Resume")

	persisted, err := that.roomRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active rooms: %w", err)
	}

	for _, room := range persisted {
		if room.IsFinished() {
			continue
		}

		that.startActor(ctx, room)
		log.Info("resumed room", "roomID", room.ID, "status", room.Status)
	}

	log.Info("resume complete", "rooms", len(persisted))

	return nil
}

// CreateRoom instantiates a waiting room with the creator seated as X and
// returns its initial snapshot.
func (that *Registry) CreateRoom(ctx context.Context, roomID, creatorID string) (*entity.Room, error) {
	that.mu.RLock()
	_, exists := that.rooms[roomID]
	that.mu.RUnlock()

	if exists {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomAlreadyExists, roomID)
	}

	room := entity.NewRoom(roomID, creatorID)
	if err := that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to persist new room: %w", err)
	}

	roomActor := that.startActor(ctx, room)

	return roomActor.State(), nil
}

// JoinRoom delivers a join signal, waits until the actor has processed it and
// returns the post-operation snapshot. A rejected join is a no-op; the
// snapshot shows that nothing changed.
func (that *Registry) JoinRoom(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	roomActor, err := that.roomByID(roomID)
	if err != nil {
		return nil, err
	}

	select {
	case err = <-roomActor.Join(playerID):
	case <-ctx.Done():
		return nil, fmt.Errorf("join not confirmed: %w", ctx.Err())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	return roomActor.State(), nil
}

// MakeMove delivers a move signal, waits until the actor has processed it and
// returns the post-operation snapshot. Wrong-turn and illegal moves are
// silent no-ops; only a rule-oracle failure surfaces as an error, with the
// move left unapplied.
func (that *Registry) MakeMove(ctx context.Context, roomID, playerID string, x, y int) (*entity.Room, error) {
	roomActor, err := that.roomByID(roomID)
	if err != nil {
		return nil, err
	}

	select {
	case err = <-roomActor.Move(playerID, x, y):
	case <-ctx.Done():
		return nil, fmt.Errorf("move not confirmed: %w", ctx.Err())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to make move: %w", err)
	}

	return roomActor.State(), nil
}

// GetState returns the room's last committed snapshot. Rooms without a live
// actor (for example persisted before a crash but not yet resumed) are read
// straight from storage.
func (that *Registry) GetState(ctx context.Context, roomID string) (*entity.Room, error) {
	that.mu.RLock()
	roomActor, ok := that.rooms[roomID]
	that.mu.RUnlock()

	if ok {
		return roomActor.State(), nil
	}

	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	return room, nil
}

func (that *Registry) roomByID(roomID string) (*actor.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	roomActor, ok := that.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	return roomActor, nil
}

func (that *Registry) startActor(ctx context.Context, room *entity.Room) *actor.Room {
	roomActor := actor.New(that.logger, that.roomRepo, that.oracle, room, actor.Config{
		MoveTimeout: that.moveTimeout,
		OnFinish: func(result *entity.GameResult) {
			that.archive(ctx, result)
		},
	})

	that.mu.Lock()
	that.rooms[room.ID] = roomActor
	that.mu.Unlock()

	roomActor.Start(ctx)

	return roomActor
}

// archive records the final result and retires the hot storage key. The actor
// stays registered so queries keep returning the terminal snapshot.
func (that *Registry) archive(ctx context.Context, result *entity.GameResult) {
	log := that.logger.With("method", "archive", "roomID", result.RoomID)

	if err := that.resultRepo.Save(ctx, result); err != nil {
		log.Error("failed to save final result", "error", err)
	}

	if err := that.archiveRepo.SaveGame(ctx, result); err != nil {
		log.Error("failed to archive finished game", "error", err)
	}

	if err := that.roomRepo.DeleteByID(ctx, result.RoomID); err != nil {
		log.Error("failed to delete finished room", "error", err)
	}

	log.Info("game archived", "result", result.FinalResult)
}
