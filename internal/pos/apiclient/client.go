package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kasbon/kasirsync/internal/domain/enum"
	"github.com/kasbon/kasirsync/internal/presentation/http/dto/request"
	"github.com/kasbon/kasirsync/internal/presentation/http/dto/response"
	"github.com/kasbon/kasirsync/pkg/apperror"
)

// Client talks to the sync server. It carries the agent's bearer token;
// scope enforcement happens server-side against that token's claims.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a sync API client for the given server base URL
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// PushOutcome is the per-transaction verdict of one push call
type PushOutcome struct {
	ClientTxID string
	Result     enum.PushResult
	SyncCode   apperror.SyncCode
	Message    string
}

// Push submits a batch of transactions and returns the per-item outcomes
// in server order. A non-2xx status or transport failure returns an error;
// the caller treats those as retryable.
func (c *Client) Push(ctx context.Context, outletID uuid.UUID, transactions []request.PushTransaction) ([]PushOutcome, error) {
	body, err := json.Marshal(request.PushRequest{
		OutletID:     outletID,
		Transactions: transactions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sync/push", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("push: server returned %d: %s", resp.StatusCode, snippet)
	}

	var out response.PushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}

	outcomes := make([]PushOutcome, 0, len(out.Results))
	for _, r := range out.Results {
		outcomes = append(outcomes, PushOutcome{
			ClientTxID: r.ClientTxID,
			Result:     r.Result,
			SyncCode:   r.SyncCode,
			Message:    r.Message,
		})
	}
	return outcomes, nil
}

// Pull fetches the reference snapshot for an outlet at the server's current
// data version. Pass the stored watermark as sinceVersion; the server
// answers not_modified when nothing newer exists.
func (c *Client) Pull(ctx context.Context, outletID uuid.UUID, sinceVersion int64) (*response.PullResponse, error) {
	q := url.Values{}
	q.Set("outlet_id", outletID.String())
	q.Set("since_version", strconv.FormatInt(sinceVersion, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/sync/pull?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build pull request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pull: server returned %d: %s", resp.StatusCode, snippet)
	}

	var out response.PullResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pull response: %w", err)
	}
	return &out, nil
}
