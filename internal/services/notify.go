package services

// 拍卖事件通知：以 JSON 发布到 Redis 频道，订阅方自行消费。发布失败只记日志。

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// 事件类型
const (
	EventAuctionCreated = "auction.created"
	EventBidPlaced      = "bid.placed"
	EventAuctionClosed  = "auction.closed"
)

// Notifier 发布拍卖事件；实现不得返回错误给业务流程。
type Notifier interface {
	Notify(ctx context.Context, event string, data interface{})
}

// Event 为发布到频道的消息体。
type Event struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisNotifier struct {
	rdb     publisher
	channel string
}

func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, event string, data interface{}) {
	b, err := json.Marshal(Event{Type: event, At: time.Now().UTC(), Data: data})
	if err != nil {
		log.WithError(err).WithField("event", event).Warn("encode event")
		return
	}
	if err := n.rdb.Publish(ctx, n.channel, b).Err(); err != nil {
		log.WithError(err).WithFields(log.Fields{"event": event, "channel": n.channel}).Warn("publish event failed")
	}
}

// NopNotifier 丢弃所有事件（未开启通知或未配置 Redis 时使用）。
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, interface{}) {}
