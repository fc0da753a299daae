package queue

import (
	"fmt"
	"strings"

	"github.com/plotfit/plotfit/internal/config"
	"github.com/plotfit/plotfit/internal/utils"
)

// NewQueue creates a new Queue instance based on configuration.
// An empty type disables change events.
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	queueType := utils.QueueType(strings.ToLower(cfg.Type))

	if queueType == "" {
		queueType = utils.QueueTypeNone
	}

	switch queueType {
	case utils.QueueTypeNone:
		return newNoopQueue(), nil

	case utils.QueueTypeNATS:
		return newNATSQueue(NATSConfig{
			URL:      cfg.URL,
			Username: cfg.Username,
			Password: cfg.Password,
		})

	case utils.QueueTypeRedis:
		return newRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			Group:    cfg.RedisGroup,
			Consumer: cfg.RedisConsumer,
		})

	case utils.QueueTypeKafka:
		brokers := cfg.KafkaBrokers
		if len(brokers) == 0 && cfg.URL != "" {
			brokers = strings.Split(cfg.URL, ",")
		}
		return newKafkaQueue(KafkaConfig{
			Brokers: brokers,
			GroupID: cfg.KafkaGroupID,
		})

	case utils.QueueTypeMemory:
		return newMemoryQueue(), nil

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: none, memory, nats, redis, kafka)", queueType)
	}
}
