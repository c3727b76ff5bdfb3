package ws

import (
	stdjson "encoding/json"

	vd "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/model"
	msgsvc "github.com/quartzchat/quartz/service/message"
)

type command struct {
	Type string             `json:"type"`
	Body stdjson.RawMessage `json:"body"`
}

type attachmentPayload struct {
	FileName string `json:"fileName"`
	Mime     string `json:"mime"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// Validate 構造体を検証します
func (p attachmentPayload) Validate() error {
	return vd.ValidateStruct(&p,
		vd.Field(&p.FileName, vd.Required),
		vd.Field(&p.Size, vd.Min(int64(0))),
		vd.Field(&p.URL, vd.Required),
	)
}

type sendMessageRequest struct {
	RoomID      uuid.UUID           `json:"roomId"`
	Content     string              `json:"content"`
	ReplyToID   uuid.UUID           `json:"replyToId"`
	Attachments []attachmentPayload `json:"attachments"`
}

// Validate 構造体を検証します
func (r sendMessageRequest) Validate() error {
	return vd.ValidateStruct(&r,
		vd.Field(&r.RoomID, vd.Required),
		vd.Field(&r.Content, vd.Required, vd.RuneLength(1, msgsvc.MaxMessageLength)),
		vd.Field(&r.Attachments),
	)
}

func (r sendMessageRequest) modelAttachments() []model.Attachment {
	arr := make([]model.Attachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		arr = append(arr, model.Attachment{
			FileName: a.FileName,
			Mime:     a.Mime,
			Size:     a.Size,
			URL:      a.URL,
		})
	}
	return arr
}

type editMessageRequest struct {
	MessageID uuid.UUID `json:"messageId"`
	Content   string    `json:"content"`
}

// Validate 構造体を検証します
func (r editMessageRequest) Validate() error {
	return vd.ValidateStruct(&r,
		vd.Field(&r.MessageID, vd.Required),
		vd.Field(&r.Content, vd.Required, vd.RuneLength(1, msgsvc.MaxMessageLength)),
	)
}

type deleteMessageRequest struct {
	MessageID uuid.UUID `json:"messageId"`
}

// Validate 構造体を検証します
func (r deleteMessageRequest) Validate() error {
	return vd.ValidateStruct(&r,
		vd.Field(&r.MessageID, vd.Required),
	)
}

type forwardMessageRequest struct {
	MessageID    uuid.UUID `json:"messageId"`
	TargetRoomID uuid.UUID `json:"targetRoomId"`
}

// Validate 構造体を検証します
func (r forwardMessageRequest) Validate() error {
	return vd.ValidateStruct(&r,
		vd.Field(&r.MessageID, vd.Required),
		vd.Field(&r.TargetRoomID, vd.Required),
	)
}

type reactionRequest struct {
	MessageID uuid.UUID `json:"messageId"`
	Emoji     string    `json:"emoji"`
}

// Validate 構造体を検証します
func (r reactionRequest) Validate() error {
	return vd.ValidateStruct(&r,
		vd.Field(&r.MessageID, vd.Required),
		vd.Field(&r.Emoji, vd.Required, vd.RuneLength(1, 64)),
	)
}

type roomRequest struct {
	RoomID uuid.UUID `json:"roomId"`
}

// Validate 構造体を検証します
func (r roomRequest) Validate() error {
	return vd.ValidateStruct(&r,
		vd.Field(&r.RoomID, vd.Required),
	)
}
