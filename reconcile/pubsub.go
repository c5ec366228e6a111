package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/workflow"
)

func PublishReconciliationRun(ctx context.Context, runId uint) error {
	topicName := strings.TrimSpace(os.Getenv("BRAINTREE_RECONCILE_TOPIC"))
	if topicName == "" {
		topicName = "braintree-reconcile"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("BRAINTREE_RECONCILE_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := ReconcilePubSubPayload{RunId: runId}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_RECONCILE_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload ReconcilePubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 {
			c.Status(204)
			return
		}

		err = processReconciliationRun(c.Request.Context(), payload)
		c.Status(pushStatusForError(err))
	}
}

// pushStatusForError maps a worker outcome to a push-delivery status. Only
// an in-progress idempotency collision nacks the message: Pub/Sub redelivers
// it after the holder finishes or goes stale. Everything else acks; failed
// runs are retried through the runs API, not by redelivery.
func pushStatusForError(err error) int {
	if errors.Is(err, workflow.ErrIdempotencyInProgress) {
		return 503
	}
	return 204
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
