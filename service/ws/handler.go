package ws

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/leandro-lugaresi/hub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/event"
	msgsvc "github.com/quartzchat/quartz/service/message"
)

// クライアントへ返すエラーコード
const (
	errCodeAuthorization = "authorization_error"
	errCodeValidation    = "validation_error"
	errCodeNotFound      = "not_found"
	errCodeConflict      = "conflict"
	errCodeRateLimited   = "rate_limited"
	errCodePersistence   = "persistence_error"
)

var commandsProcessedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "quartz",
	Name:      "ws_commands_processed_total",
}, []string{"command", "result"})

type errorEventBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

// commandHandler 受信したテキストフレームを1コマンドとして処理します。
// readLoopのゴルーチンで直列に呼ばれるため、1コネクション上のコマンドは
// 受信順に処理されます。どのエラーもコネクションを落としません。
func (s *session) commandHandler(data []byte) {
	var c command
	if err := json.Unmarshal(data, &c); err != nil {
		s.sendErrorEvent("", errCodeValidation, "invalid json frame", 0)
		return
	}

	// pingは流量制限の対象外
	if c.Type == CommandPing {
		commandsProcessedCounter.WithLabelValues(c.Type, "ok").Inc()
		_ = s.writeMessage(&rawMessage{t: websocket.TextMessage, data: makeMessage(EventPong, struct{}{}).toJSON()})
		return
	}

	if ok, retryAfter := s.streamer.limiter.Admit(s.userID); !ok {
		commandsProcessedCounter.WithLabelValues(c.Type, "rate_limited").Inc()
		s.sendErrorEvent(c.Type, errCodeRateLimited, "rate limit exceeded", retryAfter.Milliseconds())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch c.Type {
	case CommandSendMessage:
		err = s.handleSendMessage(ctx, c.Body)
	case CommandEditMessage:
		err = s.handleEditMessage(ctx, c.Body)
	case CommandDeleteMessage:
		err = s.handleDeleteMessage(ctx, c.Body)
	case CommandForwardMessage:
		err = s.handleForwardMessage(ctx, c.Body)
	case CommandAddReaction:
		err = s.handleAddReaction(ctx, c.Body)
	case CommandRemoveReaction:
		err = s.handleRemoveReaction(ctx, c.Body)
	case CommandJoinRoom:
		err = s.handleJoinRoom(ctx, c.Body)
	case CommandLeaveRoom:
		err = s.handleLeaveRoom(c.Body)
	case CommandMarkAsRead:
		err = s.handleMarkAsRead(ctx, c.Body)
	default:
		commandsProcessedCounter.WithLabelValues("unknown", "error").Inc()
		s.sendErrorEvent(c.Type, errCodeValidation, "unknown command", 0)
		return
	}

	if err != nil {
		commandsProcessedCounter.WithLabelValues(c.Type, "error").Inc()
		code, msg := errorToCode(err)
		s.sendErrorEvent(c.Type, code, msg, 0)
		if code == errCodePersistence {
			s.streamer.logger.Error("command failed",
				zap.String("command", c.Type),
				zap.Stringer("userID", s.userID),
				zap.Error(err))
		}
		return
	}
	commandsProcessedCounter.WithLabelValues(c.Type, "ok").Inc()
}

func (s *session) handleSendMessage(ctx context.Context, body []byte) error {
	var req sendMessageRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}

	if err := s.streamer.manager.CheckMembership(ctx, s.userID, req.RoomID); err != nil {
		return err
	}
	// メンバーである限り、送信はルームへの参加を黙示する
	s.streamer.registry.Join(s, req.RoomID)

	_, err := s.streamer.manager.Create(ctx, s.userID, req.RoomID, req.Content, req.ReplyToID, req.modelAttachments())
	return err
}

func (s *session) handleEditMessage(ctx context.Context, body []byte) error {
	var req editMessageRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}
	_, err := s.streamer.manager.Edit(ctx, s.userID, req.MessageID, req.Content)
	return err
}

func (s *session) handleDeleteMessage(ctx context.Context, body []byte) error {
	var req deleteMessageRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}
	return s.streamer.manager.Delete(ctx, s.userID, req.MessageID)
}

func (s *session) handleForwardMessage(ctx context.Context, body []byte) error {
	var req forwardMessageRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}
	_, _, err := s.streamer.manager.Forward(ctx, s.userID, req.MessageID, req.TargetRoomID)
	return err
}

func (s *session) handleAddReaction(ctx context.Context, body []byte) error {
	var req reactionRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}
	_, err := s.streamer.manager.AddReaction(ctx, s.userID, req.MessageID, req.Emoji)
	return err
}

func (s *session) handleRemoveReaction(ctx context.Context, body []byte) error {
	var req reactionRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}
	return s.streamer.manager.RemoveReaction(ctx, s.userID, req.MessageID, req.Emoji)
}

func (s *session) handleJoinRoom(ctx context.Context, body []byte) error {
	var req roomRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}
	if err := s.streamer.manager.CheckMembership(ctx, s.userID, req.RoomID); err != nil {
		return err
	}
	s.streamer.registry.Join(s, req.RoomID)
	return nil
}

func (s *session) handleLeaveRoom(body []byte) error {
	var req roomRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}
	s.streamer.registry.Leave(s, req.RoomID)
	return nil
}

func (s *session) handleMarkAsRead(ctx context.Context, body []byte) error {
	var req roomRequest
	if err := unmarshalCommandBody(body, &req); err != nil {
		return err
	}
	if err := s.streamer.manager.CheckMembership(ctx, s.userID, req.RoomID); err != nil {
		return err
	}
	if err := s.streamer.ledger.MarkRead(s.userID, req.RoomID); err != nil {
		return err
	}
	s.streamer.hub.Publish(hub.Message{
		Name: event.RoomRead,
		Fields: hub.Fields{
			"user_id": s.userID,
			"room_id": req.RoomID,
		},
	})
	return nil
}

func (s *session) sendErrorEvent(command, code, msg string, retryAfterMs int64) {
	_ = s.writeMessage(&rawMessage{
		t: websocket.TextMessage,
		data: makeMessage(EventError, struct {
			Command string `json:"command,omitempty"`
			errorEventBody
		}{command, errorEventBody{Code: code, Message: msg, RetryAfterMs: retryAfterMs}}).toJSON(),
	})
}

type validationError struct {
	err error
}

func (e validationError) Error() string { return e.err.Error() }
func (e validationError) Unwrap() error { return e.err }

func unmarshalCommandBody(body []byte, req interface{ Validate() error }) error {
	if err := json.Unmarshal(body, req); err != nil {
		return validationError{err}
	}
	if err := req.Validate(); err != nil {
		return validationError{err}
	}
	return nil
}

func errorToCode(err error) (string, string) {
	var ve validationError
	switch {
	case errors.As(err, &ve):
		return errCodeValidation, ve.Error()
	case errors.Is(err, msgsvc.ErrInvalidArgument):
		return errCodeValidation, err.Error()
	case errors.Is(err, msgsvc.ErrForbidden):
		return errCodeAuthorization, "not a member of the room"
	case errors.Is(err, msgsvc.ErrNotFound):
		return errCodeNotFound, err.Error()
	case errors.Is(err, msgsvc.ErrAlreadyExists), errors.Is(err, msgsvc.ErrAlreadyDeleted):
		return errCodeConflict, err.Error()
	default:
		return errCodePersistence, "temporary failure, please retry"
	}
}
