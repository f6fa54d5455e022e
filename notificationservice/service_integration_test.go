//go:build integration

package notificationservice_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-pushbullet-service/internal/dispatcher"
	"github.com/tinywideclouds/go-pushbullet-service/internal/pathguard"
	"github.com/tinywideclouds/go-pushbullet-service/internal/platform/pushbullet"
	"github.com/tinywideclouds/go-pushbullet-service/notificationservice"
	"github.com/tinywideclouds/go-pushbullet-service/notificationservice/config"
	"google.golang.org/protobuf/types/known/durationpb"
)

// --- FAKES ---

// fakeProvider stands in for the Pushbullet API and records every push.
type fakeProvider struct {
	mu     sync.Mutex
	pushes []pushbullet.Push
}

func (f *fakeProvider) Me(_ context.Context) (*pushbullet.User, error) {
	return &pushbullet.User{Iden: "u-1", Email: "owner@example.com"}, nil
}

func (f *fakeProvider) Devices(_ context.Context) ([]pushbullet.Device, error) {
	return []pushbullet.Device{{Iden: "dev-1", Nickname: "Phone", Active: true, Pushable: true}}, nil
}

func (f *fakeProvider) Channels(_ context.Context) ([]pushbullet.Channel, error) {
	return []pushbullet.Channel{{Iden: "ch-1", Tag: "news", Active: true}}, nil
}

func (f *fakeProvider) Push(_ context.Context, p pushbullet.Push) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, p)
	return nil
}

func (f *fakeProvider) UploadFile(_ context.Context, name string, _ io.Reader) (*pushbullet.FileUpload, error) {
	return nil, fmt.Errorf("unexpected upload of %s", name)
}

func (f *fakeProvider) Pushes() []pushbullet.Push {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pushbullet.Push, len(f.pushes))
	copy(out, f.pushes)
	return out
}

func newTestNotifier(t *testing.T, ctx context.Context, provider *fakeProvider, logger *slog.Logger) *dispatcher.Service {
	t.Helper()
	notifier, err := dispatcher.New(ctx, provider, pathguard.None{}, logger)
	require.NoError(t, err)
	return notifier
}

// --- TEST ---

func TestNotificationService_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projectID := "test-project-integ"

	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { psClient.Close() })

	t.Run("Publish -> Transform -> Dispatch", func(t *testing.T) {
		// Arrange
		topicID := "push-success-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

		provider := &fakeProvider{}
		notifier := newTestNotifier(t, ctx, provider, logger)

		consumerCfg := *messagepipeline.NewGooglePubsubConsumerDefaults(subID)
		consumer, err := messagepipeline.NewGooglePubsubConsumer(&consumerCfg, psClient, logger)
		require.NoError(t, err)

		svc, err := notificationservice.New(
			&config.Config{ListenAddr: ":0", NumPipelineWorkers: 2},
			consumer,
			notifier,
			func(h http.Handler) http.Handler { return h },
			logger,
		)
		require.NoError(t, err)

		svcCtx, svcCancel := context.WithCancel(ctx)
		defer svcCancel()
		go func() { _ = svc.Start(svcCtx) }()
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

		// Act
		req := dispatcher.Request{
			Message: "door open",
			Title:   "Alarm",
			Targets: []string{"device/phone", "channel/news", "email/friend@example.com"},
		}
		payload, err := json.Marshal(req)
		require.NoError(t, err)
		_, err = psClient.Publisher(topicID).Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
		require.NoError(t, err)

		// Assert
		require.Eventually(t, func() bool {
			return len(provider.Pushes()) == 3
		}, 10*time.Second, 100*time.Millisecond)

		pushes := provider.Pushes()
		assert.Equal(t, "dev-1", pushes[0].DeviceIden)
		assert.Equal(t, "news", pushes[1].ChannelTag)
		assert.Equal(t, "friend@example.com", pushes[2].Email)
		for _, p := range pushes {
			assert.Equal(t, pushbullet.PushNote, p.Type)
			assert.Equal(t, "Alarm", p.Title)
			assert.Equal(t, "door open", p.Body)
		}
	})
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.TopicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	sub := &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: &durationpb.Duration{Seconds: 1},
		},
	}
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.SubscriptionAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}
