package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	joinRetries    = 30
	joinRetryDelay = time.Second
)

// joinCluster asks an existing member to add this node as a voter.
// Followers answer 409, so retries keep going until the leader is reached.
func joinCluster(ctx context.Context, endpoint, nodeID, raftAddr string) error {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	endpoint = strings.TrimRight(endpoint, "/") + "/v1/cluster/join"
	body, err := json.Marshal(map[string]string{
		"node_id":   nodeID,
		"raft_addr": raftAddr,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	var lastErr error
	for i := 0; i < joinRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("join returned status %d", resp.StatusCode)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(joinRetryDelay):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("join failed")
	}
	return lastErr
}
