// Package actor runs one goroutine per game room. The goroutine exclusively
// owns the room aggregate: join and move signals are delivered into an
// ordered inbox and applied one at a time, state queries read the last
// committed snapshot, and an active room forfeits the current player when no
// move arrives before the deadline.
package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/rules"
)

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
}

type ruleOracle interface {
	IsLegalMove(ctx context.Context, board entity.Board, x, y int) (bool, error)
	Outcome(ctx context.Context, board entity.Board, lastX, lastY int, mark string) (string, error)
}

type event interface {
	ackChan() chan error
}

type joinEvent struct {
	playerID string
	ack      chan error
}

func (that *joinEvent) ackChan() chan error { return that.ack }

type moveEvent struct {
	playerID string
	x, y     int
	ack      chan error
}

func (that *moveEvent) ackChan() chan error { return that.ack }

// Config tunes a single room actor.
type Config struct {
	// MoveTimeout is the window a player has to move once the game is active.
	MoveTimeout time.Duration
	// OnFinish is called from the actor goroutine with the final result,
	// right before Done is closed. Optional.
	OnFinish func(result *entity.GameResult)
}

// Room is a single room actor. All state mutation happens on the goroutine
// started by Start; callers only enqueue events and read snapshots.
type Room struct {
	logger *slog.Logger
	repo   roomRepo
	rules  ruleOracle
	config Config

	mu     sync.Mutex
	queue  []event
	closed bool

	notify chan struct{}

	state       *entity.Room
	snapshot    atomic.Pointer[entity.Room]
	deadlineGen uint64

	done   chan struct{}
	result *entity.GameResult
}

// New wraps an existing room aggregate in an actor. The aggregate may be a
// freshly created room or one reloaded from storage after a restart; the
// actor resumes from whatever state it carries.
func New(logger *slog.Logger, repo roomRepo, oracle ruleOracle, room *entity.Room, config Config) *Room {
	that := &Room{
		logger: logger,
		repo:   repo,
		rules:  oracle,
		config: config,
		notify: make(chan struct{}, 1),
		state:  room.Clone(),
		done:   make(chan struct{}),
	}

	that.snapshot.Store(that.state.Clone())

	return that
}

// Start launches the actor goroutine. Canceling the context suspends the
// actor; the last committed state stays in storage and a later resume picks
// up from there.
func (that *Room) Start(ctx context.Context) {
	go that.run(ctx)
}

// Join enqueues a join signal. The returned channel receives exactly one
// value once the signal is processed; rejected joins (room full, seat already
// taken, room finished) are silent no-ops and ack with nil.
func (that *Room) Join(playerID string) <-chan error {
	ev := &joinEvent{playerID: playerID, ack: make(chan error, 1)}
	that.enqueue(ev)

	return ev.ack
}

// Move enqueues a move signal. The ack is nil both for applied moves and for
// rejected ones (wrong turn, illegal cell, room finished); only a rule-oracle
// failure after all retries produces ErrRulesUnavailable, with the move left
// unapplied.
func (that *Room) Move(playerID string, x, y int) <-chan error {
	ev := &moveEvent{playerID: playerID, x: x, y: y, ack: make(chan error, 1)}
	that.enqueue(ev)

	return ev.ack
}

// State returns the last fully committed snapshot. It never observes a
// mutation in progress.
func (that *Room) State() *entity.Room {
	return that.snapshot.Load().Clone()
}

// Done is closed when the actor's run ends.
func (that *Room) Done() <-chan struct{} {
	return that.done
}

// Result returns the final record once Done is closed, nil before that.
func (that *Room) Result() *entity.GameResult {
	select {
	case <-that.done:
		return that.result
	default:
		return nil
	}
}

func (that *Room) run(ctx context.Context) {
	log := that.logger.With("component", "room", "roomID", that.state.ID)
	log.Info("room actor running", "status", that.state.Status)

	for !that.state.IsFinished() {
		if ev, ok := that.pop(); ok {
			that.handle(ctx, ev)
			continue
		}

		if !that.wait(ctx) {
			log.Info("room actor suspended", "status", that.state.Status)
			that.drain()
			close(that.done)

			return
		}
	}

	that.drain()

	that.result = &entity.GameResult{
		RoomID:      that.state.ID,
		State:       that.state.Clone(),
		FinalResult: that.state.FinalResult(),
	}

	if that.config.OnFinish != nil {
		that.config.OnFinish(that.result)
	}

	log.Info("room finished", "result", that.result.FinalResult, "winner", that.state.Winner)
	close(that.done)
}

// wait blocks until the inbox is non-empty or the move deadline elapses.
// It returns false when the context is canceled. A waiting room has no
// deadline and blocks until someone joins.
func (that *Room) wait(ctx context.Context) bool {
	var deadlineCh <-chan time.Time
	var gen uint64

	if that.state.IsActive() && that.state.MoveDeadline != nil {
		gen = that.deadlineGen
		timer := time.NewTimer(time.Until(*that.state.MoveDeadline))
		defer timer.Stop()
		deadlineCh = timer.C
	}

	select {
	case <-ctx.Done():
		return false
	case <-that.notify:
		return true
	case <-deadlineCh:
		if that.pending() > 0 {
			// An event was already queued when the timer fired; it must be
			// processed first and the timeout treated as spurious.
			return true
		}
		if gen != that.deadlineGen {
			// Stale timer from a deadline that has since been refreshed.
			return true
		}

		that.forfeit(ctx)

		return true
	}
}

func (that *Room) handle(ctx context.Context, ev event) {
	switch typed := ev.(type) {
	case *joinEvent:
		typed.ack <- that.handleJoin(ctx, typed)
	case *moveEvent:
		typed.ack <- that.handleMove(ctx, typed)
	}
}

func (that *Room) handleJoin(ctx context.Context, ev *joinEvent) error {
	log := that.logger.With("method", "handleJoin", "roomID", that.state.ID, "playerID", ev.playerID)

	if that.state.IsFinished() {
		log.Info("join ignored", "reason", apperror.ErrRoomFinished)
		return nil
	}

	next := that.state.Clone()
	if err := next.Seat(ev.playerID); err != nil {
		log.Info("join rejected", "reason", err)
		return nil
	}

	if len(next.Players) == 2 {
		next.Status = entity.StatusActive
		next.CurrentTurn = next.Players[0].ID
		that.refreshDeadline(next)
	}

	if err := that.repo.CreateOrUpdate(ctx, next); err != nil {
		log.Error("failed to persist join", "error", err)
		return nil
	}

	that.commit(next)
	log.Info("player joined", "status", next.Status, "turn", next.CurrentTurn)

	return nil
}

func (that *Room) handleMove(ctx context.Context, ev *moveEvent) error {
	log := that.logger.With("method", "handleMove", "roomID", that.state.ID, "playerID", ev.playerID)

	if that.state.IsFinished() {
		log.Info("move ignored", "reason", apperror.ErrRoomFinished)
		return nil
	}

	if !that.state.IsActive() {
		log.Info("move rejected", "reason", apperror.ErrRoomNotStarted)
		return nil
	}

	if that.state.CurrentTurn != ev.playerID {
		log.Info("move rejected", "reason", apperror.ErrNotYourTurn)
		return nil
	}

	legal, err := that.rules.IsLegalMove(ctx, that.state.Board, ev.x, ev.y)
	if err != nil {
		log.Error("legality check failed, move not applied", "error", err)
		return apperror.ErrRulesUnavailable
	}

	if !legal {
		reason := apperror.ErrCellOccupied
		if !that.state.Board.InBounds(ev.x, ev.y) {
			reason = apperror.ErrInvalidCell
		}
		log.Info("move rejected", "reason", reason, "x", ev.x, "y", ev.y)

		return nil
	}

	next := that.state.Clone()
	mark := next.PlayerByID(ev.playerID).Mark
	next.Board.SetCell(ev.x, ev.y, mark)

	outcome, err := that.rules.Outcome(ctx, next.Board, ev.x, ev.y, mark)
	if err != nil {
		// next is discarded, so the board write above never happened.
		log.Error("outcome check failed, move not applied", "error", err)
		return apperror.ErrRulesUnavailable
	}

	switch outcome {
	case rules.OutcomeWin:
		next.Status = entity.StatusFinished
		next.Winner = ev.playerID
		next.CurrentTurn = ""
		next.MoveDeadline = nil
	case rules.OutcomeDraw:
		next.Status = entity.StatusFinished
		next.CurrentTurn = ""
		next.MoveDeadline = nil
	default:
		next.CurrentTurn = next.Opponent(ev.playerID).ID
		that.refreshDeadline(next)
	}

	if err = that.repo.CreateOrUpdate(ctx, next); err != nil {
		log.Error("failed to persist move", "error", err)
		return nil
	}

	that.commit(next)
	log.Info("move applied", "x", ev.x, "y", ev.y, "outcome", outcome)

	return nil
}

// forfeit finishes the game against the player who let the deadline elapse.
func (that *Room) forfeit(ctx context.Context) {
	log := that.logger.With("method", "forfeit", "roomID", that.state.ID)

	next := that.state.Clone()
	loser := next.CurrentTurn
	opponent := next.Opponent(loser)
	if opponent == nil {
		log.Error("no opponent to award the forfeit to", "playerID", loser)
		return
	}

	next.Status = entity.StatusFinished
	next.Winner = opponent.ID
	next.CurrentTurn = ""
	next.MoveDeadline = nil

	if err := that.repo.CreateOrUpdate(ctx, next); err != nil {
		// The deadline stays in the past, so the next wait retries immediately.
		log.Error("failed to persist forfeit", "error", err)
		return
	}

	that.commit(next)
	log.Info("player timed out", "loser", loser, "winner", opponent.ID)
}

func (that *Room) refreshDeadline(next *entity.Room) {
	deadline := time.Now().Add(that.config.MoveTimeout)
	next.MoveDeadline = &deadline
	that.deadlineGen++
}

func (that *Room) commit(next *entity.Room) {
	that.state = next
	that.snapshot.Store(next.Clone())
}

func (that *Room) enqueue(ev event) {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		ev.ackChan() <- nil

		return
	}
	that.queue = append(that.queue, ev)
	that.mu.Unlock()

	select {
	case that.notify <- struct{}{}:
	default:
	}
}

func (that *Room) pop() (event, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.queue) == 0 {
		return nil, false
	}

	ev := that.queue[0]
	that.queue = that.queue[1:]

	return ev, true
}

func (that *Room) pending() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.queue)
}

// drain marks the inbox closed and acks whatever is still queued; late
// signals on a finished room are accepted but ignored.
func (that *Room) drain() {
	that.mu.Lock()
	that.closed = true
	pending := that.queue
	that.queue = nil
	that.mu.Unlock()

	for _, ev := range pending {
		ev.ackChan() <- nil
	}
}
