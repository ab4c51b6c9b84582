package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/omarmohammed271/nutricare-chat/internal/store"
)

// 入站帧类型是一个封闭集合，协议边界处一次性解码，未知类型直接判为协议违规。
const (
	frameMessage = "message"
	frameTyping  = "typing"
	frameSeen    = "seen"
	frameMedia   = "media"
	framePing    = "ping"
	frameEntered = "entered"
	frameExit    = "exit"
)

var errBadFrame = errors.New("malformed frame")

// inboundFrame 是按 type 判别的入站帧；parseInbound 负责按类型校验必填字段，
// 校验之后各字段才可信。
type inboundFrame struct {
	Type       string `json:"type"`
	SenderID   uint   `json:"sender_id"`
	Content    string `json:"content"`
	Media      string `json:"media"`
	Username   string `json:"username"`
	MessageIDs []uint `json:"message_ids"`
	MessageID  uint   `json:"message_id"`
}

// parseInbound 解码并校验一帧。缺必填字段或类型未知返回 errBadFrame，
// 调用方据此走异常关闭路径。
func parseInbound(data []byte) (*inboundFrame, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errBadFrame
	}
	switch f.Type {
	case frameMessage:
		if f.SenderID == 0 || (f.Content == "" && f.Media == "") {
			return nil, errBadFrame
		}
	case frameTyping:
		if f.Username == "" {
			return nil, errBadFrame
		}
	case frameSeen:
		if len(f.MessageIDs) == 0 {
			return nil, errBadFrame
		}
	case frameMedia:
		if f.MessageID == 0 {
			return nil, errBadFrame
		}
	case framePing, frameEntered, frameExit:
	default:
		return nil, errBadFrame
	}
	return &f, nil
}

// 出站事件与原始协议字段保持一致，type 与入站共用同一套词汇表，外加 user_status。

func messageEvent(rec *store.MessageRecord) ([]byte, error) {
	return json.Marshal(struct {
		Type      string    `json:"type"`
		ID        uint      `json:"id"`
		Sender    string    `json:"sender"`
		Content   string    `json:"content"`
		Media     string    `json:"media,omitempty"`
		Timestamp time.Time `json:"timestamp"`
		SeenBy    []uint    `json:"seen_by"`
	}{frameMessage, rec.ID, rec.Sender, rec.Content, rec.Media, rec.Timestamp, rec.SeenBy})
}

func typingEvent(username string) ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Username string `json:"username"`
	}{frameTyping, username})
}

func seenEvent(userID uint, messageIDs []uint) ([]byte, error) {
	return json.Marshal(struct {
		Type       string `json:"type"`
		UserID     uint   `json:"user_id"`
		MessageIDs []uint `json:"message_ids"`
	}{frameSeen, userID, messageIDs})
}

func mediaEvent(messageID uint) ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		MessageID uint   `json:"message_id"`
	}{frameMedia, messageID})
}

func userStatusEvent(active, exited []string) ([]byte, error) {
	return json.Marshal(struct {
		Type        string   `json:"type"`
		ActiveUsers []string `json:"active_users"`
		ExitedUsers []string `json:"exited_users"`
	}{"user_status", active, exited})
}
