package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/repository/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArchive(t *testing.T) (context.Context, ArchiveRepository) {
	t.Helper()

	ctx := context.Background()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	require.NoError(t, store.Init(ctx))

	return ctx, NewArchiveRepository(store.Connection)
}

func TestArchiveRepository_SaveGame(t *testing.T) {
	t.Run("Archived game round-trips", func(t *testing.T) {
		ctx, archiveRepo := newArchive(t)

		// Given: a finished game
		room := entity.NewRoom("123", "p1")
		require.NoError(t, room.Seat("p2"))
		room.Status = entity.StatusFinished
		room.Winner = "p1"
		room.Board.SetCell(0, 0, entity.MarkX)
		room.Board.SetCell(1, 1, entity.MarkX)
		room.Board.SetCell(2, 2, entity.MarkX)

		result := &entity.GameResult{
			RoomID:      room.ID,
			State:       room,
			FinalResult: entity.ResultWin,
		}

		// When: the game is archived and read back
		require.NoError(t, archiveRepo.SaveGame(ctx, result))

		archived, err := archiveRepo.GetGame(ctx, room.ID)

		// Then: the row matches the final record
		require.NoError(t, err)
		assert.Equal(t, "123", archived.RoomID)
		assert.Equal(t, entity.ResultWin, archived.Outcome)
		assert.Equal(t, "p1", archived.Winner)
		assert.Equal(t, room.Board, archived.Board)
		assert.False(t, archived.FinishedAt.IsZero())
	})

	t.Run("Re-archiving the same room replaces the row", func(t *testing.T) {
		ctx, archiveRepo := newArchive(t)

		room := entity.NewRoom("123", "p1")
		room.Status = entity.StatusFinished

		result := &entity.GameResult{RoomID: room.ID, State: room, FinalResult: entity.ResultDraw}
		require.NoError(t, archiveRepo.SaveGame(ctx, result))

		result.FinalResult = entity.ResultWin
		result.State.Winner = "p1"
		require.NoError(t, archiveRepo.SaveGame(ctx, result))

		archived, err := archiveRepo.GetGame(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.ResultWin, archived.Outcome)
		assert.Equal(t, "p1", archived.Winner)
	})

	t.Run("Missing game returns an error", func(t *testing.T) {
		ctx, archiveRepo := newArchive(t)

		_, err := archiveRepo.GetGame(ctx, "missing")
		require.Error(t, err)
	})
}
