package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/test/util"
)

// pgStreamingEnv wires a PGPublisher to a ConnectionManager through a real
// LISTEN connection.
type pgStreamingEnv struct {
	db        *sql.DB
	publisher *PGPublisher
	manager   *ConnectionManager
	listener  *NotifyListener
	taskID    string
	channel   string
}

func setupPGStreaming(t *testing.T) *pgStreamingEnv {
	t.Helper()
	client := util.NewPostgresClient(t)

	manager := NewConnectionManager(64, 5*time.Second, nil)

	// LISTEN/NOTIFY is database-wide, so the base connection string is enough.
	listener := NewNotifyListener(util.GetBaseConnectionString(t), manager, 100*time.Millisecond)
	require.NoError(t, listener.Start(context.Background()))
	manager.SetListener(listener)
	t.Cleanup(func() { listener.Stop(context.Background()) })

	taskID := uuid.New().String()
	return &pgStreamingEnv{
		db:        client.DB(),
		publisher: NewPGPublisher(client.DB()),
		manager:   manager,
		listener:  listener,
		taskID:    taskID,
		channel:   ChannelName(taskID),
	}
}

func receiveJSON(t *testing.T, sub *Subscription) map[string]any {
	t.Helper()
	select {
	case payload, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		var msg map[string]any
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func TestIntegration_NotifyRoundTrip(t *testing.T) {
	env := setupPGStreaming(t)
	ctx := context.Background()

	sub, err := env.manager.Subscribe(ctx, env.channel)
	require.NoError(t, err)
	defer env.manager.Unsubscribe(sub)
	assert.Contains(t, env.listener.Listening(), env.channel)

	bridge := NewBridge(env.publisher, 16, nil)
	for _, action := range []string{models.ActionStarted, models.ActionCompleted} {
		bridge.Emit(models.ActivityEvent{
			TaskID:    env.taskID,
			AgentName: "data_profiler",
			Action:    action,
			Timestamp: time.Now(),
		})
	}
	require.NoError(t, bridge.Close(ctx))
	require.NoError(t, PublishStatus(ctx, env.publisher, env.taskID, models.JobCompleted, ""))

	first := receiveJSON(t, sub)
	second := receiveJSON(t, sub)
	status := receiveJSON(t, sub)
	assert.Equal(t, models.ActionStarted, first["action"])
	assert.Equal(t, models.ActionCompleted, second["action"])
	assert.Equal(t, MessageTypeStatus, status["type"])
	assert.Equal(t, string(models.JobCompleted), status["status"])
}

func TestIntegration_UnsubscribeStopsListening(t *testing.T) {
	env := setupPGStreaming(t)
	ctx := context.Background()

	sub, err := env.manager.Subscribe(ctx, env.channel)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(env.listener.Listening()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	env.manager.Unsubscribe(sub)
	assert.Eventually(t, func() bool {
		return len(env.listener.Listening()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIntegration_ListenerReconnects(t *testing.T) {
	env := setupPGStreaming(t)
	ctx := context.Background()

	sub, err := env.manager.Subscribe(ctx, env.channel)
	require.NoError(t, err)
	defer env.manager.Unsubscribe(sub)

	// The LISTEN connection's last statement names the task's channel.
	var terminated bool
	require.NoError(t, env.db.QueryRowContext(ctx,
		`SELECT count(pg_terminate_backend(pid)) > 0 FROM pg_stat_activity
		 WHERE pid <> pg_backend_pid() AND query LIKE '%' || $1 || '%'`,
		env.taskID).Scan(&terminated))
	require.True(t, terminated)

	// Notifications sent before the re-LISTEN are lost; keep publishing
	// until one arrives.
	deadline := time.After(10 * time.Second)
	for {
		require.NoError(t, PublishStatus(ctx, env.publisher, env.taskID, models.JobRunning, ""))
		select {
		case payload := <-sub.C():
			var msg map[string]any
			require.NoError(t, json.Unmarshal(payload, &msg))
			assert.Equal(t, MessageTypeStatus, msg["type"])
			assert.Contains(t, env.listener.Listening(), env.channel)
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("no notification after the LISTEN connection was terminated")
		}
	}
}

func TestIntegration_WebSocketDelivery(t *testing.T) {
	env := setupPGStreaming(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Logf("WebSocket accept error: %v", err)
			return
		}
		env.manager.HandleConnection(r.Context(), conn, func(context.Context, string) error { return nil })
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, MessageTypeConnected, msg["type"])

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Action: ActionSubscribe, TaskID: env.taskID}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, "subscription.confirmed", msg["type"])

	require.NoError(t, PublishStatus(ctx, env.publisher, env.taskID, models.JobRunning, ""))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, MessageTypeStatus, msg["type"])
	assert.Equal(t, env.taskID, msg["task_id"])
}
