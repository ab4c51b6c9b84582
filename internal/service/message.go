package service

import (
	"time"

	"github.com/omarmohammed271/nutricare-chat/internal/models"
	"gorm.io/gorm"
)

// MessageService 封装历史消息查询；实时路径走 store 网关，不经过这里。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// MessageDTO 与实时广播的 message 事件字段对齐，前端可混用。
type MessageDTO struct {
	Type      string    `json:"type"`
	ID        uint      `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Media     string    `json:"media,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SeenBy    []uint    `json:"seen_by"`
}

// ListByRoom 分页查询指定房间的消息，按 id 升序返回，附带 seen_by。
func (s *MessageService) ListByRoom(roomID uint, limit int, beforeID uint) ([]MessageDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.db.Where("room_id = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []models.Message
	if err := q.Preload("SeenBy").Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	usernames, err := s.resolveUsernames(msgs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		seenBy := make([]uint, 0, len(m.SeenBy))
		for _, u := range m.SeenBy {
			seenBy = append(seenBy, u.ID)
		}
		out = append(out, MessageDTO{
			Type:      "message",
			ID:        m.ID,
			Sender:    usernames[m.SenderID],
			Content:   m.Content,
			Media:     m.Media,
			Timestamp: m.CreatedAt,
			SeenBy:    seenBy,
		})
	}
	return out, nil
}

// resolveUsernames 批量获取消息涉及的发送者用户名。
func (s *MessageService) resolveUsernames(msgs []models.Message) (map[uint]string, error) {
	seen := make(map[uint]struct{}, len(msgs))
	userIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		userIDs = append(userIDs, m.SenderID)
	}

	usernames := make(map[uint]string, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := s.db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			usernames[u.ID] = u.Username
		}
	}
	return usernames, nil
}
