package kafka

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/safar/marketplace-orders/internal/config"
)

// TopicDetail describes the order topic: delete-based retention with
// bounded segment and message sizes.
func TopicDetail(cfg config.KafkaConfig) *sarama.TopicDetail {
	str := func(v string) *string { return &v }
	return &sarama.TopicDetail{
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: cfg.ReplicationFactor,
		ConfigEntries: map[string]*string{
			"cleanup.policy":    str("delete"),
			"retention.ms":      str(strconv.FormatInt(cfg.Retention.Milliseconds(), 10)),
			"segment.bytes":     str(strconv.FormatInt(cfg.SegmentBytes, 10)),
			"max.message.bytes": str(strconv.Itoa(cfg.MaxMessageBytes)),
		},
	}
}

// TopicCreator is the part of sarama.ClusterAdmin EnsureTopic needs.
type TopicCreator interface {
	CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error
}

// EnsureTopic creates the topic; an existing topic is left untouched.
func EnsureTopic(admin TopicCreator, cfg config.KafkaConfig) error {
	err := admin.CreateTopic(cfg.Topic, TopicDetail(cfg), false)
	if err == nil {
		log.Info().Str("topic", cfg.Topic).Int32("partitions", cfg.Partitions).Msg("created topic")
		return nil
	}

	var topicErr *sarama.TopicError
	if errors.Is(err, sarama.ErrTopicAlreadyExists) || (errors.As(err, &topicErr) && topicErr.Err == sarama.ErrTopicAlreadyExists) {
		log.Debug().Str("topic", cfg.Topic).Msg("topic already exists")
		return nil
	}
	return fmt.Errorf("create topic %s: %w", cfg.Topic, err)
}

func ProvisionTopic(cfg config.KafkaConfig) error {
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect cluster admin: %w", err)
	}
	defer admin.Close()

	return EnsureTopic(admin, cfg)
}
