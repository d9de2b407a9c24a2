// Package admin bootstraps topics at worker startup so deployments do not
// depend on broker auto-creation.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"hrms/internal/platform/config"
	"hrms/pkg/events"
	"hrms/pkg/platform/sentinel"
)

// EnsureTopics creates every domain topic and its dead-letter counterpart.
// Already-existing topics are not an error.
func EnsureTopics(ctx context.Context, cfg *config.Kafka, logger *slog.Logger, topics ...events.Topic) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID+"-admin"),
	)
	if err != nil {
		return fmt.Errorf("%w: build admin client: %v", sentinel.ErrConnection, err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)

	names := make([]string, 0, len(topics)*2)
	for _, t := range topics {
		names = append(names, t.String(), t.DLQ().String())
	}

	resps, err := adm.CreateTopics(ctx, 3, 1, nil, names...)
	if err != nil {
		return fmt.Errorf("%w: create topics: %v", sentinel.ErrConnection, err)
	}
	for _, resp := range resps.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
		logger.Debug("topic ensured", "topic", resp.Topic)
	}
	return nil
}
