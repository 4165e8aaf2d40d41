package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	mqttcommon "wisefido-rfid/internal/common/mqtt"
	rediscommon "wisefido-rfid/internal/common/redis"
)

// Sink 事件输出端
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt SightingEvent) error
}

// RedisStreamSink 写入 Redis Streams
type RedisStreamSink struct {
	client *rediscommon.Client
	stream string
	maxLen int64
}

// NewRedisStreamSink 创建 Streams 输出
func NewRedisStreamSink(client *rediscommon.Client, stream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisStreamSink) Name() string { return "redis:" + s.stream }

func (s *RedisStreamSink) Publish(ctx context.Context, evt SightingEvent) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, s.client, s.stream, s.maxLen, evt); err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

// mqttPublisher 便于测试替换
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	QoS() byte
}

// MQTTSink 发布到 MQTT 主题 <prefix>/<session_id>
type MQTTSink struct {
	client mqttPublisher
	prefix string
}

// NewMQTTSink 创建 MQTT 输出
func NewMQTTSink(client *mqttcommon.Client, prefix string) *MQTTSink {
	return &MQTTSink{client: client, prefix: prefix}
}

func (s *MQTTSink) Name() string { return "mqtt:" + s.prefix }

func (s *MQTTSink) Publish(ctx context.Context, evt SightingEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal sighting: %w", err)
	}
	topic := fmt.Sprintf("%s/%s", s.prefix, evt.SessionID)
	return s.client.Publish(topic, s.client.QoS(), false, payload)
}
