package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fleetsim/fleetsim/ga"
)

// OptimizerClient is how the dispatcher reaches the planner. The in-process
// implementation backs the run and compare commands; the HTTP one backs
// serve mode, where the optimizer is a separate endpoint.
type OptimizerClient interface {
	Optimize(ctx context.Context, req ga.Request) (ga.Response, error)
}

// LocalOptimizer evaluates the GA in-process.
type LocalOptimizer struct {
	Cfg ga.Config
}

func (l LocalOptimizer) Optimize(_ context.Context, req ga.Request) (ga.Response, error) {
	return ga.Optimize(req, l.Cfg), nil
}

// HTTPOptimizer posts optimize requests to a planner endpoint. Timeouts
// come from the caller's context.
type HTTPOptimizer struct {
	URL    string
	Client *http.Client
}

func (h HTTPOptimizer) Optimize(ctx context.Context, req ga.Request) (ga.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ga.Response{}, fmt.Errorf("marshal optimize request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return ga.Response{}, fmt.Errorf("build optimize request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return ga.Response{}, fmt.Errorf("optimize call: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return ga.Response{}, fmt.Errorf("optimize call: unexpected status %s", httpResp.Status)
	}
	var resp ga.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return ga.Response{}, fmt.Errorf("decode optimize response: %w", err)
	}
	return resp, nil
}
