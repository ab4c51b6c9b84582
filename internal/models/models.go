package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room 聊天房间，私聊和群聊共用一张表，通过 IsGroup 区分。
type Room struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255"`
	IsGroup   bool   `gorm:"not null;default:false"`
	OwnerID   uint   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant 记录 (房间, 用户) 的出席状态，首次连接时惰性创建，之后只更新不删除。
type Participant struct {
	ID         uint      `gorm:"primaryKey"`
	RoomID     uint      `gorm:"uniqueIndex:idx_room_user;not null"`
	UserID     uint      `gorm:"uniqueIndex:idx_room_user;not null"`
	HasExited  bool      `gorm:"not null;default:false"`
	LastActive time.Time `gorm:"not null"`
}

// Message 一条聊天消息；Content 允许为空（纯媒体消息），SeenBy 只增不减。
type Message struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    uint   `gorm:"index:idx_msg_room_id;not null"`
	SenderID  uint   `gorm:"index;not null"`
	Content   string `gorm:"type:text"`
	Media     string `gorm:"size:512"`
	CreatedAt time.Time
	SeenBy    []User `gorm:"many2many:message_seen_by"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
