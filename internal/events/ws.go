package events

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// writeTimeout 单条事件写入超时
const writeTimeout = 5 * time.Second

// Handler 返回 /v1/events 的 WebSocket 处理器。
// 查询参数 types=cycle_started,cycle_failed 可过滤事件类型。
func Handler(hub *Hub, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "events_ws"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 长连接不受服务端读写超时限制
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		filter := parseTypes(r.URL.Query().Get("types"))
		sub := hub.Subscribe(DefaultBuffer)
		defer sub.Close()

		// 客户端只读，CloseRead 负责处理控制帧并在对端关闭时取消 ctx
		ctx := conn.CloseRead(r.Context())
		logger.Debug("events stream opened", zap.String("remote", r.RemoteAddr))

		if err := stream(ctx, conn, sub, filter); err != nil && !isClosed(err) {
			logger.Warn("events stream ended", zap.Error(err))
		}
	})
}

func stream(ctx context.Context, conn *websocket.Conn, sub *Subscription, filter map[Type]bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.C():
			if !ok {
				return nil
			}
			if len(filter) > 0 && !filter[e.Type] {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, e)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func parseTypes(raw string) map[Type]bool {
	if raw == "" {
		return nil
	}
	out := make(map[Type]bool)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out[Type(part)] = true
		}
	}
	return out
}

func isClosed(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}
