package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start the scheduler.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Chorus.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop the scheduler.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Chorus.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Chorus.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync triggers a manual sync cycle.
func (c *Client) Sync() (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.client.Call("Chorus.Sync", SyncRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Prune runs a deletion-enabled cycle, optionally purging removed rows.
func (c *Client) Prune(purge bool) (*PruneResponse, error) {
	var resp PruneResponse
	if err := c.client.Call("Chorus.Prune", PruneRequest{Purge: purge}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordList returns records optionally filtered by statuses.
func (c *Client) RecordList(statuses []string) (*RecordListResponse, error) {
	var resp RecordListResponse
	req := RecordListRequest{Statuses: statuses}
	if err := c.client.Call("Chorus.RecordList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordDescribe returns details for a single record.
func (c *Client) RecordDescribe(itemID string) (*RecordDescribeResponse, error) {
	var resp RecordDescribeResponse
	req := RecordDescribeRequest{ItemID: itemID}
	if err := c.client.Call("Chorus.RecordDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry resets failed records for another attempt.
func (c *Client) Retry(itemID string) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.client.Call("Chorus.Retry", RetryRequest{ItemID: itemID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cycles returns recent cycle history.
func (c *Client) Cycles(limit int) (*CyclesResponse, error) {
	var resp CyclesResponse
	if err := c.client.Call("Chorus.Cycles", CyclesRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Chorus.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Chorus.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Chorus.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
