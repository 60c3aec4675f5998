package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/adapter/snapshot"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix
// socket or a TCP address.
type RemoteClient struct {
	httpClient *http.Client
	network    string
	address    string
}

// NewRemoteClient creates a new RemoteClient. network is "unix" or "tcp".
func NewRemoteClient(network, address string) *RemoteClient {
	return &RemoteClient{
		httpClient: &http.Client{
			Transport: newTransport(network, address),
			Timeout:   10 * time.Second,
		},
		network: network,
		address: address,
	}
}

func newTransport(network, address string) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, address)
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

// baseURL is the dummy host used for requests. The actual connection goes
// through the dialer, not this URL.
const baseURL = "http://storyview"

// Address returns where the client connects.
func (c *RemoteClient) Address() string {
	return c.network + ":" + c.address
}

func (c *RemoteClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w", c.Address(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// decodeError restores the error code the daemon reported, if any.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var apiErr APIError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Err()
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return errors.New(errors.ErrCodeInternal, fmt.Sprintf("daemon returned status %d: %s", resp.StatusCode, msg))
}

// GetState returns the daemon's current state.
func (c *RemoteClient) GetState(ctx context.Context) (*store.State, error) {
	var st store.State
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Dispatch posts a command to the daemon.
func (c *RemoteClient) Dispatch(ctx context.Context, cmd channel.Command) error {
	return c.do(ctx, http.MethodPost, "/api/command", cmd, nil)
}

// Render returns the content of the element in the main area.
func (c *RemoteClient) Render(ctx context.Context) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/render", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Extract returns every story in the catalog.
func (c *RemoteClient) Extract(ctx context.Context, includeDocsOnly bool) (map[string]*models.Story, error) {
	path := "/api/extract"
	if includeDocsOnly {
		path += "?" + url.Values{"docs_only": {"true"}}.Encode()
	}
	stories := make(map[string]*models.Story)
	if err := c.do(ctx, http.MethodGet, path, nil, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// GetConfig returns the daemon's running configuration.
func (c *RemoteClient) GetConfig(ctx context.Context) (*RunningConfig, error) {
	var rc RunningConfig
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamState subscribes to real-time state updates via Server-Sent Events (SSE).
// Returns a channel that receives updates. The channel is closed when the context is cancelled
// or the connection is lost.
func (c *RemoteClient) StreamState(ctx context.Context) (<-chan StreamUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// Use a separate client with no timeout for streaming
	streamTransport := newTransport(c.network, c.address)
	streamClient := &http.Client{Transport: streamTransport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan StreamUpdate, 10)

	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()

		scanner := bufio.NewScanner(resp.Body)
		// Full state snapshots can exceed the default 64KB token size.
		scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()

			// Skip comments and empty lines
			if strings.HasPrefix(line, ":") || line == "" {
				continue
			}

			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var update StreamUpdate
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update); err != nil {
				continue // Skip malformed data
			}

			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
