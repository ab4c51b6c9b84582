package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/omarmohammed271/nutricare-chat/internal/auth"
	"github.com/omarmohammed271/nutricare-chat/internal/metrics"
	"github.com/omarmohammed271/nutricare-chat/internal/store"
	"github.com/rs/zerolog/log"
)

// 协议违规导致的异常关闭使用 4000，和移动端约定的一致。
const closeProtocolViolation = 4000

// Client 是一条活跃会话：绑定一个已认证用户和一个房间，随连接生灭。
// 只有 RoomHub 的注册表会共享它的引用。
type Client struct {
	room     *RoomHub
	conn     *websocket.Conn
	send     chan []byte
	store    store.Gateway
	presence *Presence
	userID   uint
	uname    string
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 处理 WebSocket 握手：先经身份网关认证、再做房间访问检查，
// 全部通过才升级连接并注册会话。匿名连接在任何状态写入之前被拒绝。
func Serve(h *Hub, gw store.Gateway, identity auth.Identity) gin.HandlerFunc {
	pres := NewPresence(gw)
	return func(c *gin.Context) {
		rid64, err := strconv.ParseUint(c.Query("room_id"), 10, 64)
		if err != nil || rid64 == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
			return
		}
		roomID := uint(rid64)

		user, err := identity.Resolve(auth.BearerToken(c.Request))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		room, err := gw.Room(roomID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		// 私聊只接受既有成员；群聊接受任何已认证用户，出席行惰性创建。
		if !room.IsGroup && user.ID != room.OwnerID {
			member, err := gw.IsMember(roomID, user.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "room lookup failed"})
				return
			}
			if !member {
				c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
				return
			}
		}

		rh, err := h.GetRoom(roomID)
		if err != nil {
			log.Error().Err(err).Uint("room_id", roomID).Msg("subscribe room topic")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "room unavailable"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{
			room:     rh,
			conn:     conn,
			send:     make(chan []byte, 256),
			store:    gw,
			presence: pres,
			userID:   user.ID,
			uname:    user.Username,
		}

		// 进入 ACTIVE：标记在场、注册、广播出席快照，顺序固定。
		if err := client.presence.Mark(roomID, user.ID, false); err != nil {
			log.Error().Err(err).Uint("room_id", roomID).Uint("user_id", user.ID).Msg("mark present")
			_ = conn.Close()
			return
		}
		rh.register <- client
		client.pushStatus()

		go client.writePump()
		client.readPump()
	}
}

// readPump 串行读取并分发入站帧。defer 里的清理即使在网络层异常断开时
// 也会执行：注销、标记退出、广播更新后的出席快照。
func (c *Client) readPump() {
	defer func() {
		c.room.unregister <- c
		if err := c.presence.Mark(c.room.roomID, c.userID, true); err != nil {
			log.Error().Err(err).Uint("room_id", c.room.roomID).Uint("user_id", c.userID).Msg("mark exited")
		}
		c.pushStatus()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := parseInbound(data)
		if err != nil {
			c.closeAbnormal("malformed frame")
			return
		}
		if err := c.dispatch(frame); err != nil {
			c.closeAbnormal(err.Error())
			return
		}
	}
}

// dispatch 对一帧执行协议效果。返回错误意味着协议违规或依赖故障，
// 会话将走异常关闭路径。
func (c *Client) dispatch(f *inboundFrame) error {
	switch f.Type {
	case frameMessage:
		// 发送者只能是会话自己的身份。
		if f.SenderID != c.userID {
			return errBadFrame
		}
		rec, err := c.store.CreateMessage(c.room.roomID, f.SenderID, f.Content, f.Media)
		if err != nil {
			return err
		}
		metrics.WsMessagesTotal.Inc()
		payload, err := messageEvent(rec)
		if err != nil {
			return err
		}
		return c.room.Broadcast(context.Background(), frameMessage, payload)

	case frameTyping:
		payload, err := typingEvent(f.Username)
		if err != nil {
			return err
		}
		return c.room.Broadcast(context.Background(), frameTyping, payload)

	case frameSeen:
		// 只标记属于本房间的消息，越界 id 被过滤掉。
		marked, err := c.store.MarkSeen(c.room.roomID, f.MessageIDs, c.userID)
		if err != nil {
			return err
		}
		if len(marked) == 0 {
			return nil
		}
		payload, err := seenEvent(c.userID, marked)
		if err != nil {
			return err
		}
		return c.room.Broadcast(context.Background(), frameSeen, payload)

	case frameMedia:
		payload, err := mediaEvent(f.MessageID)
		if err != nil {
			return err
		}
		return c.room.Broadcast(context.Background(), frameMedia, payload)

	case framePing:
		// 仅保活，无副作用。
		return nil

	case frameEntered:
		if err := c.presence.Mark(c.room.roomID, c.userID, false); err != nil {
			return err
		}
		c.pushStatus()
		return nil

	case frameExit:
		// 标记退出但不断开连接。
		if err := c.presence.Mark(c.room.roomID, c.userID, true); err != nil {
			return err
		}
		c.pushStatus()
		return nil
	}
	return errBadFrame
}

// pushStatus 把当前出席快照广播给整个房间。失败只记日志：快照广播是
// 尽力投递，下一次状态变化会再发一份。
func (c *Client) pushStatus() {
	active, exited, err := c.presence.Snapshot(c.room.roomID)
	if err != nil {
		log.Error().Err(err).Uint("room_id", c.room.roomID).Msg("presence snapshot")
		return
	}
	payload, err := userStatusEvent(active, exited)
	if err != nil {
		log.Error().Err(err).Uint("room_id", c.room.roomID).Msg("encode user_status")
		return
	}
	if err := c.room.Broadcast(context.Background(), "user_status", payload); err != nil {
		log.Error().Err(err).Uint("room_id", c.room.roomID).Msg("broadcast user_status")
	}
}

// closeAbnormal 以协议违规码关闭连接；出席清理由 readPump 的 defer 负责。
func (c *Client) closeAbnormal(reason string) {
	metrics.WsProtocolErrors.Inc()
	log.Warn().Uint("room_id", c.room.roomID).Uint("user_id", c.userID).Str("reason", reason).Msg("session closed abnormally")
	deadline := time.Now().Add(5 * time.Second)
	msg := websocket.FormatCloseMessage(closeProtocolViolation, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
