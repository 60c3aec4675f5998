package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/internal/adapter/snapshot"
	"github.com/grovetools/storyview/internal/daemon/engine"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/daemon"
	"github.com/grovetools/storyview/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	dir := testutil.ButtonProject(t, testutil.StaticConfig)
	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)

	logger := logging.NewLogger("server-test")
	eng := engine.New(store.New(), cfg, nil, logger)
	require.NoError(t, eng.Initialize(context.Background()))
	eng.Preview().Wait()

	srv := New(logger)
	srv.SetEngine(eng)
	srv.SetRunningConfig(&daemon.RunningConfig{StoriesDir: cfg.StoriesDir, Version: "test", StartedAt: time.Now()})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = eng.Close(context.Background())
	})
	return ts, eng
}

func TestHealthAndState(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st store.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, store.DisplayMain, st.Display.Mode)
	assert.Equal(t, "example-button--primary", st.Display.StoryID)
	assert.Equal(t, 2, st.Sources.Stories)
}

func TestCommandAndRender(t *testing.T) {
	ts, eng := newTestServer(t)

	body, _ := json.Marshal(channel.Command{
		Type:      channel.CommandSetCurrentStory,
		Selection: &channel.SelectionRequest{StoryID: "example-button--secondary"},
	})
	resp, err := http.Post(ts.URL+"/api/command", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	eng.Preview().Wait()

	resp, err = http.Get(ts.URL + "/api/render")
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap snapshot.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	var doc snapshot.StoryDocument
	require.NoError(t, json.Unmarshal(snap.Content, &doc))
	assert.Equal(t, "example-button--secondary", doc.ID)
	assert.Equal(t, "Secondary", doc.Args["label"])
}

func TestCommandRejectsBadBody(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/command", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var apiErr daemon.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, "INVALID_INPUT", string(apiErr.Code))

	resp, err = http.Get(ts.URL + "/api/command")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestExtractAndConfig(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/extract")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stories map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stories))
	assert.Contains(t, stories, "example-button--primary")
	assert.Contains(t, stories, "example-button--secondary")

	resp2, err := http.Get(ts.URL + "/api/config")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var rc daemon.RunningConfig
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&rc))
	assert.Equal(t, "test", rc.Version)
}

func TestChannelWebSocket(t *testing.T) {
	ts, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/channel"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(channel.Command{
		Type:    channel.CommandUpdateGlobals,
		Globals: map[string]interface{}{"theme": "dark"},
	}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Kind  string        `json:"kind"`
			Event channel.Event `json:"event"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Kind == "event" && msg.Event.Type == channel.EventGlobalsUpdated {
			break
		}
	}
}

func TestStreamSendsInitialState(t *testing.T) {
	ts, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var u daemon.StreamUpdate
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &u))
		assert.Equal(t, "initial", u.UpdateType)
		require.NotNil(t, u.State)
		assert.Equal(t, store.DisplayMain, u.State.Display.Mode)
		return
	}
}

func TestConvertToAPIUpdate(t *testing.T) {
	assert.Nil(t, convertToAPIUpdate(store.Update{Type: store.UpdateDisplay, Payload: 42}))

	u := convertToAPIUpdate(store.Update{Type: store.UpdateConfigReload, Source: "config", Payload: "storyview.yml"})
	require.NotNil(t, u)
	assert.Equal(t, "storyview.yml", u.ConfigFile)
}
