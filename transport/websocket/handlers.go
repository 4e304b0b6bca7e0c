package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/pkg"
)

func (that *Server) handleConnect(_ context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleConnect")

	var payloadReq Payload

	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	playerID := ""
	if payloadReq.Player != nil {
		playerID = payloadReq.Player.ID
	}

	if playerID == "" {
		playerID = pkg.GeneratePlayerID()
	}

	that.connectionsMutex.Lock()
	that.connections[playerID] = bufrw
	that.connectionsMutex.Unlock()

	payloadResp := Payload{
		Player: &entity.Player{ID: playerID},
	}

	if err := that.sendMessage(bufrw, msg.Action, payloadResp); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("successfully connected player", "playerID", playerID)

	return nil
}

func (that *Server) handleNewRoom(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleNewRoom")

	var payloadReq Payload

	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Player == nil || payloadReq.Player.ID == "" {
		log.Error("Player is missing in payload")
		return that.sendErrorResponse(bufrw, msg.Action, "Player is required")
	}

	that.connectionsMutex.Lock()
	that.connections[payloadReq.Player.ID] = bufrw
	that.connectionsMutex.Unlock()

	roomID := pkg.GenerateRoomID()

	room, err := that.registry.CreateRoom(ctx, roomID, payloadReq.Player.ID)
	if err != nil {
		log.Error("failed to create room", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, "failed to create a new room")
	}

	payloadResp := Payload{
		Player: room.PlayerByID(payloadReq.Player.ID),
		Room:   room,
	}

	if err = that.sendMessage(bufrw, msg.Action, payloadResp); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("room created", "roomID", room.ID, "playerID", payloadReq.Player.ID)

	return nil
}

func (that *Server) handleJoinRoom(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleJoinRoom")

	var payloadReq Payload

	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Player == nil || payloadReq.Player.ID == "" {
		log.Error("Player is missing in payload")
		return that.sendErrorResponse(bufrw, msg.Action, "Player is required")
	}

	if payloadReq.Room == nil || payloadReq.Room.ID == "" {
		log.Error("Room is missing in payload")
		return that.sendErrorResponse(bufrw, msg.Action, "Room is required")
	}

	that.connectionsMutex.Lock()
	that.connections[payloadReq.Player.ID] = bufrw
	that.connectionsMutex.Unlock()

	log = log.With("playerID", payloadReq.Player.ID)

	room, err := that.registry.JoinRoom(ctx, payloadReq.Room.ID, payloadReq.Player.ID)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return that.sendErrorResponse(bufrw, msg.Action, fmt.Sprintf("room %s not found", payloadReq.Room.ID))
	}

	if err != nil {
		log.Error("failed to join room", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, fmt.Sprintf("room %s: %v", payloadReq.Room.ID, err))
	}

	that.broadcastRoom(msg.Action, room)

	log.Info("player joined room", "roomID", room.ID)

	return nil
}

func (that *Server) handleRoomTurn(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleRoomTurn")

	var payloadReq Payload

	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Player == nil || payloadReq.Player.ID == "" {
		log.Error("Player is missing in payload")
		return that.sendErrorResponse(bufrw, msg.Action, "Player is required")
	}

	if payloadReq.Room == nil || payloadReq.Room.ID == "" {
		log.Error("Room is missing in payload")
		return that.sendErrorResponse(bufrw, msg.Action, "Room is required")
	}

	if payloadReq.Move == nil {
		log.Error("Move is missing in payload")
		return that.sendErrorResponse(bufrw, msg.Action, "Move is required")
	}

	that.connectionsMutex.Lock()
	that.connections[payloadReq.Player.ID] = bufrw
	that.connectionsMutex.Unlock()

	log = log.With("playerID", payloadReq.Player.ID, "roomID", payloadReq.Room.ID)

	room, err := that.registry.MakeMove(ctx, payloadReq.Room.ID, payloadReq.Player.ID, payloadReq.Move.X, payloadReq.Move.Y)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return that.sendErrorResponse(bufrw, msg.Action, fmt.Sprintf("room %s not found", payloadReq.Room.ID))
	}

	if errors.Is(err, apperror.ErrRulesUnavailable) {
		// The move was not applied; the client may retry.
		log.Error("rules check unavailable", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, "rules check unavailable, move not applied")
	}

	if err != nil {
		log.Error("failed to make move", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, fmt.Sprintf("failed to make move: %v", err))
	}

	that.broadcastRoom(msg.Action, room)

	log.Info("player made a move")

	return nil
}

func (that *Server) handleRoomState(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleRoomState")

	var payloadReq Payload

	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Room == nil || payloadReq.Room.ID == "" {
		log.Error("Room is missing in payload")
		return that.sendErrorResponse(bufrw, msg.Action, "Room is required")
	}

	room, err := that.registry.GetState(ctx, payloadReq.Room.ID)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return that.sendErrorResponse(bufrw, msg.Action, fmt.Sprintf("room %s not found", payloadReq.Room.ID))
	}

	if err != nil {
		log.Error("failed to get room state", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, "failed to get room state")
	}

	payloadResp := Payload{
		Room: room,
	}

	if err = that.sendMessage(bufrw, msg.Action, payloadResp); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	return nil
}

// broadcastRoom sends the post-operation snapshot to every seated player with
// a live connection.
func (that *Server) broadcastRoom(action string, room *entity.Room) {
	log := that.logger.With("method", "broadcastRoom", "roomID", room.ID)

	for _, player := range room.Players {
		that.connectionsMutex.RLock()
		conn, ok := that.connections[player.ID]
		that.connectionsMutex.RUnlock()

		if !ok {
			log.Warn("connection not found for player", "playerID", player.ID)
			continue
		}

		payloadResp := Payload{
			Player: player,
			Room:   room,
		}

		if err := that.sendMessage(conn, action, payloadResp); err != nil {
			log.Error("failed to send room update", "playerID", player.ID, "error", err)
		}
	}
}

func (that *Server) sendErrorResponse(bufrw *bufio.ReadWriter, action, errorMsg string) error {
	payload := Payload{Error: errorMsg}
	if err := that.sendMessage(bufrw, action, payload); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}
