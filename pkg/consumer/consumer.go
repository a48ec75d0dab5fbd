package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/models"

	"github.com/IBM/sarama"
)

// Analyzer 消息处理所需的分析能力
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisVerdict, error)
}

type Consumer struct {
	consumer sarama.ConsumerGroup
	analyzer Analyzer
	ready    chan bool
}

func NewConsumer(brokers []string, groupID string, analyzer Analyzer) (*Consumer, error) {
	config := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion("2.1.0")
	if err != nil {
		return nil, err
	}
	config.Version = version
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	config.Consumer.Group.Session.Timeout = 20 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 6 * time.Second
	config.Net.DialTimeout = 30 * time.Second
	config.Net.ReadTimeout = 30 * time.Second
	config.Net.WriteTimeout = 30 * time.Second

	logger.Log.Infof("正在连接 Kafka brokers: %v", brokers)
	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		consumer: group,
		analyzer: analyzer,
		ready:    make(chan bool),
	}, nil
}

// Start 阻塞消费直到 ctx 被取消
func (c *Consumer) Start(ctx context.Context, topic string) error {
	topics := []string{topic}

	go func() {
		for err := range c.consumer.Errors() {
			logger.Log.Errorf("Kafka消费错误: %v", err)
		}
	}()

	logger.Log.Infof("开始消费 topic: %s", topic)
	for {
		if err := c.consumer.Consume(ctx, topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Log.Errorf("消费出错: %v", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
		}

		if ctx.Err() != nil {
			logger.Log.Infof("停止消费: %v", ctx.Err())
			return nil
		}

		c.ready = make(chan bool)
	}
}

// Required methods for sarama.ConsumerGroupHandler interface
func (c *Consumer) Setup(_ sarama.ConsumerGroupSession) error {
	close(c.ready)
	return nil
}

func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			logger.Log.Debugf("收到消息: topic=%s, partition=%d, offset=%d",
				message.Topic, message.Partition, message.Offset)

			c.handleMessage(session.Context(), message.Value)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessage 解析并分析一条请求消息，格式错误的消息记录后跳过
func (c *Consumer) handleMessage(ctx context.Context, value []byte) *models.AnalysisVerdict {
	var req models.AnalysisRequest
	if err := json.Unmarshal(value, &req); err != nil {
		logger.Log.Errorf("解析消息失败: %v, raw message: %s", err, logger.Mask(string(value)))
		return nil
	}

	if req.Method == "" {
		req.Method = "GET"
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	if strings.TrimSpace(req.URL) == "" {
		logger.Log.Warnf("数据不完整: url 为空, raw message: %s", logger.Mask(string(value)))
		return nil
	}

	verdict, err := c.analyzer.Analyze(ctx, req)
	if err != nil {
		logger.Log.Errorf("分析消息失败: url=%s, error=%v", req.URL, err)
		return nil
	}
	if verdict.IsLoginAttempt {
		logger.Log.Infof("消息分析结果: url=%s, risk=%s, action=%s", req.URL, verdict.RiskLevel, verdict.Action)
	}
	return verdict
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
