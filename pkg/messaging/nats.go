package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// SubjectMetadataUpdated 批量 UPSERT 成功后发布的主题
const SubjectMetadataUpdated = "etf.metadata.updated"

// MetadataUpdatedEvent 一次成功入库的事件负载
type MetadataUpdatedEvent struct {
	RunID     string    `json:"run_id"`
	Symbols   []string  `json:"symbols"`
	Affected  int64     `json:"affected"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher NATS 发布端封装
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher 连接NATS并创建发布端
func NewPublisher(natsURL string) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logrus.Warnf("NATS连接断开: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.Info("NATS重新连接成功")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}
	return &Publisher{conn: nc}, nil
}

// Publish 将负载序列化为JSON后发布到指定主题
func (p *Publisher) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Close 排空并关闭连接
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
		p.conn.Close()
	}
}
