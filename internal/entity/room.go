package entity

import (
	"time"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusFinished = "finished"
)

const (
	ResultWin  = "win"
	ResultDraw = "draw"
)

const maxPlayers = 2

// Room is the aggregate a single room actor owns. Players keep join order:
// the first entry always holds X, the second O. CurrentTurn and MoveDeadline
// are set only while the room is active; Winner only when it finished with a
// win (a draw leaves it empty).
type Room struct {
	ID           string     `json:"id"`
	Board        Board      `json:"board"`
	Players      []*Player  `json:"players"`
	Status       string     `json:"status"`
	CurrentTurn  string     `json:"current_turn,omitempty"`
	Winner       string     `json:"winner,omitempty"`
	MoveDeadline *time.Time `json:"move_deadline,omitempty"`
}

// GameResult is the final record a room actor produces when its run ends.
type GameResult struct {
	RoomID      string `json:"room_id"`
	State       *Room  `json:"state"`
	FinalResult string `json:"final_result"`
}

// NewRoom creates a waiting room with the creator seated as X.
func NewRoom(id, creatorID string) *Room {
	return &Room{
		ID:     id,
		Status: StatusWaiting,
		Players: []*Player{
			{ID: creatorID, Mark: MarkX},
		},
	}
}

// Seat adds a player to the next free seat. The second entrant gets O.
func (that *Room) Seat(playerID string) error {
	if that.PlayerByID(playerID) != nil {
		return apperror.ErrAlreadyJoined
	}

	if len(that.Players) >= maxPlayers {
		return apperror.ErrRoomFull
	}

	mark := MarkX
	if len(that.Players) == 1 {
		mark = MarkO
	}

	that.Players = append(that.Players, &Player{ID: playerID, Mark: mark})

	return nil
}

func (that *Room) PlayerByID(id string) *Player {
	for _, player := range that.Players {
		if player.ID == id {
			return player
		}
	}
	return nil
}

// Opponent returns the seated player other than the given one.
func (that *Room) Opponent(playerID string) *Player {
	for _, player := range that.Players {
		if player.ID != playerID {
			return player
		}
	}
	return nil
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsActive() bool {
	return that.Status == StatusActive
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

// FinalResult classifies a finished room as a win or a draw.
func (that *Room) FinalResult() string {
	if that.Winner != "" {
		return ResultWin
	}
	return ResultDraw
}

// Clone returns a deep copy, so a committed snapshot can be handed out while
// the actor keeps mutating its working copy.
func (that *Room) Clone() *Room {
	cloned := &Room{
		ID:          that.ID,
		Board:       that.Board,
		Status:      that.Status,
		CurrentTurn: that.CurrentTurn,
		Winner:      that.Winner,
	}

	if that.MoveDeadline != nil {
		deadline := *that.MoveDeadline
		cloned.MoveDeadline = &deadline
	}

	cloned.Players = make([]*Player, 0, len(that.Players))
	for _, player := range that.Players {
		copied := *player
		cloned.Players = append(cloned.Players, &copied)
	}

	return cloned
}
