// Package store 是聊天核心消费的持久化网关：消息、已读回执和出席行的读写
// 全部走这一层，ws 包不直接接触 gorm。
package store

import (
	"time"

	"github.com/omarmohammed271/nutricare-chat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRecord 是消息落库后对外广播的形态。
type MessageRecord struct {
	ID        uint      `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Media     string    `json:"media,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SeenBy    []uint    `json:"seen_by"`
}

// ParticipantStatus 是出席快照的单行：用户名加是否已退出。
type ParticipantStatus struct {
	Username string
	Exited   bool
}

// Gateway 聚合聊天核心需要的全部持久化操作。
type Gateway interface {
	// CreateMessage 落库一条消息并返回广播形态；sender 不存在时报错。
	CreateMessage(roomID, senderID uint, content, media string) (*MessageRecord, error)
	// MarkSeen 把 userID 加入指定消息的 seen_by，只处理属于 roomID 的消息，
	// 返回实际标记成功的消息 id。
	MarkSeen(roomID uint, messageIDs []uint, userID uint) ([]uint, error)
	// UpsertParticipant 以 (room, user) 为键写出席行；幂等，重复写只推进 last_active。
	UpsertParticipant(roomID, userID uint, exited bool, now time.Time) error
	// ListParticipants 返回房间所有出席行。
	ListParticipants(roomID uint) ([]ParticipantStatus, error)
	// Room 按 id 读房间，用于握手时的存在性与私聊鉴权检查。
	Room(roomID uint) (*models.Room, error)
	// IsMember 判断用户是否已有该房间的出席行。
	IsMember(roomID, userID uint) (bool, error)
}

// GormGateway 是 Gateway 的 gorm 实现。
type GormGateway struct {
	db *gorm.DB
}

func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

func (g *GormGateway) CreateMessage(roomID, senderID uint, content, media string) (*MessageRecord, error) {
	var sender models.User
	if err := g.db.First(&sender, senderID).Error; err != nil {
		return nil, err
	}
	msg := models.Message{RoomID: roomID, SenderID: senderID, Content: content, Media: media}
	if err := g.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &MessageRecord{
		ID:        msg.ID,
		Sender:    sender.Username,
		Content:   msg.Content,
		Media:     msg.Media,
		Timestamp: msg.CreatedAt,
		SeenBy:    []uint{},
	}, nil
}

func (g *GormGateway) MarkSeen(roomID uint, messageIDs []uint, userID uint) ([]uint, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var msgs []models.Message
	if err := g.db.Where("id IN ? AND room_id = ?", messageIDs, roomID).Find(&msgs).Error; err != nil {
		return nil, err
	}
	marked := make([]uint, 0, len(msgs))
	for i := range msgs {
		if err := g.db.Model(&msgs[i]).Association("SeenBy").Append(&models.User{ID: userID}); err != nil {
			return marked, err
		}
		marked = append(marked, msgs[i].ID)
	}
	return marked, nil
}

func (g *GormGateway) UpsertParticipant(roomID, userID uint, exited bool, now time.Time) error {
	p := models.Participant{RoomID: roomID, UserID: userID, HasExited: exited, LastActive: now}
	return g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"has_exited", "last_active"}),
	}).Create(&p).Error
}

func (g *GormGateway) ListParticipants(roomID uint) ([]ParticipantStatus, error) {
	var rows []struct {
		Username  string
		HasExited bool
	}
	err := g.db.Model(&models.Participant{}).
		Select("users.username AS username, participants.has_exited AS has_exited").
		Joins("JOIN users ON users.id = participants.user_id").
		Where("participants.room_id = ?", roomID).
		Order("users.username").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ParticipantStatus, 0, len(rows))
	for _, r := range rows {
		out = append(out, ParticipantStatus{Username: r.Username, Exited: r.HasExited})
	}
	return out, nil
}

func (g *GormGateway) Room(roomID uint) (*models.Room, error) {
	var room models.Room
	if err := g.db.First(&room, roomID).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (g *GormGateway) IsMember(roomID, userID uint) (bool, error) {
	var count int64
	err := g.db.Model(&models.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}
