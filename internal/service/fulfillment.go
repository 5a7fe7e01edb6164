package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Fulfillment verdicts returned by the automation collaborator. Anything
// other than VerdictInvalidUID is treated as transient.
const (
	VerdictInvalidUID = "invalid_uid"
)

// FulfillRequest is what the automation collaborator needs to deliver one
// order: the target account and the operator credentials to act with.
type FulfillRequest struct {
	OrderID         string `json:"order_id"`
	PlayerUID       string `json:"player_uid"`
	PackageID       string `json:"package_id"`
	PackageName     string `json:"package_name"`
	AccountEmail    string `json:"account_email"`
	AccountPassword string `json:"account_password"`
	AccountPIN      string `json:"account_pin"`
}

// FulfillResult is the collaborator's verdict.
type FulfillResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// Fulfiller performs one delivery attempt. Implementations must respect
// ctx cancellation; the dispatcher imposes a hard timeout.
type Fulfiller interface {
	Fulfill(ctx context.Context, req FulfillRequest) (*FulfillResult, error)
}

// FulfillmentClient talks to the external automation service over HTTP.
type FulfillmentClient struct {
	baseURL string
	client  *http.Client
}

func NewFulfillmentClient(baseURL string, timeout time.Duration) *FulfillmentClient {
	return &FulfillmentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *FulfillmentClient) Fulfill(ctx context.Context, req FulfillRequest) (*FulfillResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal fulfill request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/fulfill", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build fulfill request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fulfillment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fulfillment service returned status %d", resp.StatusCode)
	}

	var result FulfillResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode fulfillment response: %w", err)
	}
	return &result, nil
}
