package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Notification 推送给客户端的提醒消息
type Notification struct {
	NotificationID string    `json:"notificationId"`
	ChildID        string    `json:"childId"`
	ChildName      string    `json:"childName"`
	VaccineID      string    `json:"vaccineId"`
	VaccineName    string    `json:"vaccineName"`
	RecordID       string    `json:"recordId"`
	ScheduledDate  string    `json:"scheduledDate"`
	DaysUntil      int       `json:"daysUntil"`
	SentAt         time.Time `json:"sentAt"`
}

// Notifier 提醒投递
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Publisher MQTT 发布（internal/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte, timeout time.Duration) error
}

// MQTTNotifier 发布到 <topicPrefix>/<childId>
type MQTTNotifier struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	timeout     time.Duration
	logger      *zap.Logger
}

func NewMQTTNotifier(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		publisher:   publisher,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		qos:         qos,
		timeout:     5 * time.Second,
		logger:      logger,
	}
}

// Topic 某个儿童的提醒主题
func (n *MQTTNotifier) Topic(childID string) string {
	return n.topicPrefix + "/" + childID
}

func (n *MQTTNotifier) Notify(_ context.Context, msg Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	topic := n.Topic(msg.ChildID)
	if err := n.publisher.Publish(topic, n.qos, false, payload, n.timeout); err != nil {
		return err
	}
	n.logger.Debug("Reminder published",
		zap.String("topic", topic),
		zap.String("notification_id", msg.NotificationID),
	)
	return nil
}

// LogNotifier 仅写日志（未配置 MQTT 时使用）
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.logger.Info("Vaccination reminder",
		zap.String("child_id", msg.ChildID),
		zap.String("child_name", msg.ChildName),
		zap.String("vaccine", msg.VaccineName),
		zap.String("scheduled_date", msg.ScheduledDate),
		zap.Int("days_until", msg.DaysUntil),
	)
	return nil
}
