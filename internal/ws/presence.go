package ws

import (
	"time"

	"github.com/omarmohammed271/nutricare-chat/internal/store"
)

// Presence 维护每个房间内用户的 active/exited 状态，按 (房间, 用户) 粒度
// 写出席行，不同用户的并发 Mark 互不串行。
type Presence struct {
	store store.Gateway
}

func NewPresence(gw store.Gateway) *Presence {
	return &Presence{store: gw}
}

// Mark 写出席行；幂等，重复写同一状态只推进 last_active。
func (p *Presence) Mark(roomID, userID uint, exited bool) error {
	return p.store.UpsertParticipant(roomID, userID, exited, time.Now())
}

// Snapshot 返回房间的在线/已退出用户名单，两个列表互斥且恰好覆盖
// 所有连接过该房间的用户。
func (p *Presence) Snapshot(roomID uint) (active, exited []string, err error) {
	rows, err := p.store.ListParticipants(roomID)
	if err != nil {
		return nil, nil, err
	}
	active = make([]string, 0, len(rows))
	exited = make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Exited {
			exited = append(exited, r.Username)
		} else {
			active = append(active, r.Username)
		}
	}
	return active, exited, nil
}
