package service

import (
	"time"

	"github.com/omarmohammed271/nutricare-chat/internal/models"
	"github.com/omarmohammed271/nutricare-chat/internal/ws"
	"gorm.io/gorm"
)

// RoomService 封装房间相关的业务逻辑。房间由 REST 层创建，
// 聊天核心只读取房间身份和成员关系。
type RoomService struct {
	db  *gorm.DB
	hub *ws.Hub
}

func NewRoomService(db *gorm.DB, hub *ws.Hub) *RoomService {
	return &RoomService{db: db, hub: hub}
}

// RoomDTO 是对外输出的房间数据。
type RoomDTO struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	IsGroup bool   `json:"is_group"`
	Online  int    `json:"online"`
}

// Create 创建房间并为创建者和指定成员写出席行；成员初始为 exited，
// 首次连接时翻转为在场。
func (s *RoomService) Create(name string, isGroup bool, ownerID uint, memberIDs []uint) (*RoomDTO, error) {
	var room models.Room
	err := s.db.Transaction(func(tx *gorm.DB) error {
		room = models.Room{Name: name, IsGroup: isGroup, OwnerID: ownerID}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		now := time.Now()
		members := map[uint]bool{ownerID: true}
		for _, id := range memberIDs {
			members[id] = true
		}
		for id := range members {
			p := models.Participant{RoomID: room.ID, UserID: id, HasExited: true, LastActive: now}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &RoomDTO{ID: room.ID, Name: room.Name, IsGroup: room.IsGroup, Online: 0}, nil
}

// ListForUser 返回用户所属的房间，附带各房间当前在线会话数。
func (s *RoomService) ListForUser(userID uint, limit int) ([]RoomDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var rooms []models.Room
	err := s.db.
		Joins("JOIN participants ON participants.room_id = rooms.id").
		Where("participants.user_id = ?", userID).
		Order("rooms.id desc").Limit(limit).
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	out := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomDTO{ID: r.ID, Name: r.Name, IsGroup: r.IsGroup, Online: s.hub.Online(r.ID)})
	}
	return out, nil
}

// Membership 检查用户能否访问房间：房间必须存在，私聊要求既有成员身份。
func (s *RoomService) Membership(roomID, userID uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}
	if room.IsGroup || room.OwnerID == userID {
		return &room, nil
	}
	var count int64
	if err := s.db.Model(&models.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotMember
	}
	return &room, nil
}
