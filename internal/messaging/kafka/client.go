package kafka

import (
	"crypto/tls"
	"time"

	"github.com/IBM/sarama"

	"github.com/safar/marketplace-orders/internal/config"
)

// NewSaramaConfig builds the shared client configuration: acks from all
// in-sync replicas, idempotent production and bounded retries.
func NewSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	scfg := sarama.NewConfig()
	scfg.Version = sarama.V3_7_0_0
	scfg.ClientID = cfg.ClientID

	scfg.Producer.Return.Successes = true
	scfg.Producer.Return.Errors = true
	scfg.Producer.Idempotent = true
	scfg.Producer.RequiredAcks = sarama.WaitForAll
	scfg.Producer.Retry.Max = cfg.RetryMax
	scfg.Producer.Retry.Backoff = 100 * time.Millisecond
	scfg.Producer.Timeout = cfg.RequestTimeout
	scfg.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	scfg.Producer.Partitioner = sarama.NewHashPartitioner
	scfg.Net.MaxOpenRequests = 1
	scfg.Net.ReadTimeout = cfg.RequestTimeout
	scfg.Net.WriteTimeout = cfg.RequestTimeout

	scfg.Consumer.Return.Errors = true
	scfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	scfg.Consumer.Offsets.AutoCommit.Enable = true
	scfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}

	scfg.Metadata.Retry.Max = 5
	scfg.Metadata.Retry.Backoff = 2 * time.Second

	if cfg.TLS {
		scfg.Net.TLS.Enable = true
		scfg.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return scfg
}

func NewAsyncProducer(cfg config.KafkaConfig) (sarama.AsyncProducer, error) {
	return sarama.NewAsyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
}

func NewConsumerGroup(cfg config.KafkaConfig) (sarama.ConsumerGroup, error) {
	return sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, NewSaramaConfig(cfg))
}
