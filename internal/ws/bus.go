package ws

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Bus 是房间级广播的传输层。所有广播先 Publish 到房间主题，本地投递只发生在
// 订阅回路里，因此同一房间的会话分布在多个进程时行为不变。
type Bus interface {
	Publish(ctx context.Context, roomID uint, payload []byte) error
	// Subscribe 返回房间主题的消息通道和取消函数；取消后通道关闭。
	Subscribe(ctx context.Context, roomID uint) (<-chan []byte, func(), error)
}

func roomTopic(roomID uint) string {
	return "chat:room:" + strconv.FormatUint(uint64(roomID), 10)
}

// RedisBus 基于 Redis pub/sub 实现跨进程广播，对应每房间一个主题。
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, roomID uint, payload []byte) error {
	return b.rdb.Publish(ctx, roomTopic(roomID), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, roomID uint) (<-chan []byte, func(), error) {
	ps := b.rdb.Subscribe(ctx, roomTopic(roomID))
	// 确认订阅建立，避免首条广播先于订阅到达。
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	out := make(chan []byte, 256)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			out <- []byte(msg.Payload)
		}
	}()
	cancel := func() {
		if err := ps.Close(); err != nil {
			log.Warn().Err(err).Uint("room_id", roomID).Msg("close room subscription")
		}
	}
	return out, cancel, nil
}

// LoopbackBus 是单进程部署和测试用的进程内总线，语义与 RedisBus 一致：
// 发布者自己也会从订阅回路收到消息。
type LoopbackBus struct {
	mu   sync.RWMutex
	subs map[uint]map[chan []byte]bool
}

func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{subs: make(map[uint]map[chan []byte]bool)}
}

func (b *LoopbackBus) Publish(ctx context.Context, roomID uint, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[roomID] {
		select {
		case ch <- payload:
		default:
			// 订阅方积压时丢弃，不阻塞发布者。
			log.Warn().Uint("room_id", roomID).Msg("loopback subscriber backlog, dropping event")
		}
	}
	return nil
}

func (b *LoopbackBus) Subscribe(ctx context.Context, roomID uint) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 256)
	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[chan []byte]bool)
	}
	b.subs[roomID][ch] = true
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[roomID], ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
