package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/booksync/config"
)

// SyncPubSubPayload is the message queued for an accepted sync run; the push
// handler re-reads everything else from the run row.
type SyncPubSubPayload struct {
	RunId          uint   `json:"runId"`
	OrganizationId string `json:"organizationId"`
	ConnectionId   uint   `json:"connectionId"`
}

// PubSubPushEnvelope mirrors the wrapper Google Pub/Sub wraps around pushed
// messages.
type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func PublishSyncRun(ctx context.Context, runId uint, organizationId string, connectionId uint) error {
	topicName := strings.TrimSpace(os.Getenv("SYNC_RUNS_TOPIC"))
	if topicName == "" {
		topicName = "booksync-runs"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("SYNC_RUNS_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := SyncPubSubPayload{
		RunId:          runId,
		OrganizationId: organizationId,
		ConnectionId:   connectionId,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler executes queued runs delivered by a push subscription.
// A run blocked behind another run's org lock is nacked with 503 so the
// subscription redelivers it; everything else answers 204, since a run
// failure is recorded on the run row and a retry of a terminal run is a
// no-op anyway.
func PubSubPushHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_SYNC_PUBSUB_PUSH_ENDPOINT", true) {
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

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 || payload.OrganizationId == "" {
			c.Status(204)
			return
		}

		if err := e.ProcessQueuedRun(c.Request.Context(), payload.OrganizationId, payload.RunId); err != nil {
			config.LogError(e.logger, moduleName, "PubSubPushHandler", "process queued run", payload, err)
			// The run is still pending behind a concurrent run's lock: nack
			// so the subscription redelivers once the lock frees. Any other
			// failure is already recorded on the run row, so ack it.
			if errors.Is(err, ErrSyncAlreadyRunning) {
				c.Status(http.StatusServiceUnavailable)
				return
			}
		}
		c.Status(204)
	}
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
