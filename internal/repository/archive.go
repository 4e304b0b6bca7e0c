package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
)

type ArchivedGame struct {
	RoomID     string
	Outcome    string
	Winner     string
	Board      entity.Board
	FinishedAt time.Time
}

type ArchiveRepository interface {
	SaveGame(ctx context.Context, result *entity.GameResult) error
	GetGame(ctx context.Context, roomID string) (*ArchivedGame, error)
}

type dbArchive struct {
	conn *sql.DB
}

func NewArchiveRepository(conn *sql.DB) ArchiveRepository {
	return &dbArchive{
		conn: conn,
	}
}

func (that *dbArchive) SaveGame(ctx context.Context, result *entity.GameResult) error {
	boardJSON, err := json.Marshal(result.State.Board)
	if err != nil {
		return fmt.Errorf("could not marshal board: %w", err)
	}

	query := `INSERT OR REPLACE INTO games (room_id, outcome, winner, board, finished_at) VALUES (?, ?, ?, ?, ?)`

	_, err = that.conn.ExecContext(ctx, query, result.RoomID, result.FinalResult, result.State.Winner, string(boardJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}

	return nil
}

func (that *dbArchive) GetGame(ctx context.Context, roomID string) (*ArchivedGame, error) {
	query := `SELECT room_id, outcome, winner, board, finished_at FROM games WHERE room_id = ?`

	var game ArchivedGame
	var boardJSON string

	row := that.conn.QueryRowContext(ctx, query, roomID)
	if err := row.Scan(&game.RoomID, &game.Outcome, &game.Winner, &boardJSON, &game.FinishedAt); err != nil {
		return nil, fmt.Errorf("failed to get archived game: %w", err)
	}

	if err := json.Unmarshal([]byte(boardJSON), &game.Board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	return &game, nil
}
