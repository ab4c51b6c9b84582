package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/omarmohammed271/nutricare-chat/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Hub 管理房间级别的注册表，实现延迟创建与并发安全。
type Hub struct {
	mu    sync.RWMutex
	bus   Bus
	rooms map[uint]*RoomHub
}

func NewHub(bus Bus) *Hub {
	return &Hub{bus: bus, rooms: make(map[uint]*RoomHub)}
}

// GetRoom 若房间未初始化则惰性创建 RoomHub 并订阅其总线主题。
func (h *Hub) GetRoom(roomID uint) (*RoomHub, error) {
	h.mu.RLock()
	room := h.rooms[roomID]
	h.mu.RUnlock()
	if room != nil {
		return room, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if room = h.rooms[roomID]; room != nil {
		return room, nil
	}
	inbound, cancel, err := h.bus.Subscribe(context.Background(), roomID)
	if err != nil {
		return nil, err
	}
	room = &RoomHub{
		roomID:     roomID,
		bus:        h.bus,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    inbound,
		cancel:     cancel,
	}
	h.rooms[roomID] = room
	go room.run()
	return room, nil
}

// Close 取消所有房间的总线订阅，用于优雅停服。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		room.cancel()
		delete(h.rooms, id)
	}
}

// Online 返回房间当前注册的会话数，供 REST 层复用。
func (h *Hub) Online(roomID uint) int {
	h.mu.RLock()
	room := h.rooms[roomID]
	h.mu.RUnlock()
	if room == nil {
		return 0
	}
	return room.Online()
}

// RoomHub 是单个房间的实时成员集合：注册、注销和来自总线的事件投递
// 都汇聚到 run 协程，本地 map 无需加锁。
type RoomHub struct {
	roomID     uint
	bus        Bus
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	inbound    <-chan []byte
	cancel     func()
	online     int32
}

func (rh *RoomHub) run() {
	for {
		select {
		case c := <-rh.register:
			rh.clients[c] = true
			atomic.StoreInt32(&rh.online, int32(len(rh.clients)))
			metrics.WsConnections.Inc()
		case c := <-rh.unregister:
			// 注销不存在的会话是 no-op。
			if _, ok := rh.clients[c]; ok {
				delete(rh.clients, c)
				close(c.send)
				atomic.StoreInt32(&rh.online, int32(len(rh.clients)))
				metrics.WsConnections.Dec()
			}
		case payload, ok := <-rh.inbound:
			if !ok {
				return
			}
			for c := range rh.clients {
				select {
				case c.send <- payload:
				default:
					// 慢消费者：丢出房间并关闭发送通道，由其自身的
					// 清理路径负责出席状态收尾，不影响其他会话。
					delete(rh.clients, c)
					close(c.send)
					atomic.StoreInt32(&rh.online, int32(len(rh.clients)))
					metrics.WsConnections.Dec()
					log.Warn().Uint("room_id", rh.roomID).Uint("user_id", c.userID).Msg("slow session dropped from room")
				}
			}
		}
	}
}

// Broadcast 把事件发布到房间主题；投递给本地会话由订阅回路完成，
// 所以发起方自己也会收到回显。
func (rh *RoomHub) Broadcast(ctx context.Context, eventType string, payload []byte) error {
	metrics.WsBroadcastsTotal.WithLabelValues(eventType).Inc()
	return rh.bus.Publish(ctx, rh.roomID, payload)
}

func (rh *RoomHub) Online() int { return int(atomic.LoadInt32(&rh.online)) }
