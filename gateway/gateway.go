package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 30 * time.Second
	gasPriceTTL     = 30 * time.Second
	gasPriceKey     = "reference-gas-price"
	defaultGasLimit = 10_000_000
)

var ErrObjectNotFound = errors.New("ledger object not found")

// ErrorResponse is the gateway service's structured error body.
type ErrorResponse struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// ObjectRef pins a ledger object at an exact version, as required for
// owned-object transaction inputs.
type ObjectRef struct {
	ID      string `json:"objectId"`
	Version uint64 `json:"version"`
	Digest  string `json:"digest"`
}

// SharedRef references a shared ledger object, such as the global clock.
type SharedRef struct {
	ID             string `json:"objectId"`
	InitialVersion uint64 `json:"initialVersion"`
	Mutable        bool   `json:"mutable"`
}

type InputKind string

const (
	InputKindObject InputKind = "object"
	InputKindShared InputKind = "shared"
	InputKindPure   InputKind = "pure"
)

// Input is one typed transaction input. Exactly one of Object, Shared, or
// Pure is set, matching Kind. Pure bytes are BCS-encoded by the caller;
// this layer moves them opaquely.
type Input struct {
	Kind   InputKind  `json:"kind"`
	Object *ObjectRef `json:"object,omitempty"`
	Shared *SharedRef `json:"shared,omitempty"`
	Pure   []byte     `json:"pure,omitempty"`
}

// MoveCall names the single contract function a transaction invokes.
type MoveCall struct {
	Package  string `json:"package"`
	Module   string `json:"module"`
	Function string `json:"function"`
}

// TransactionRequest is a fully built transaction for the gateway service
// to sign and submit. Input order is part of the contract: the gateway
// passes inputs to the move call in the order given here.
type TransactionRequest struct {
	ID        string   `json:"id"`
	Inputs    []Input  `json:"inputs"`
	Call      MoveCall `json:"call"`
	GasBudget uint64   `json:"gasBudget"`
	GasPrice  uint64   `json:"gasPrice"`
}

// Event is one event emitted by an executed transaction. ParsedJSON is the
// contract-defined payload; decoding it is the caller's concern.
type Event struct {
	Type       string          `json:"type"`
	ParsedJSON json.RawMessage `json:"parsedJson"`
}

type Config struct {
	Endpoint    string
	ApiKey      string
	SkipVerify  bool
	Timeout     time.Duration
	SubmitLimit rate.Limit // submissions per second; 0 means a default of 2/s
	SubmitBurst int
	Logger      *slog.Logger
}

// Client talks to the ledger gateway service: the external collaborator
// that owns keys, gas, and consensus interaction. Everything here is a
// blocking round trip; Submit does not return until the gateway reports
// local execution.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	limiter    *rate.Limiter
	gasPrices  *ttlcache.Cache[string, uint64]
}

func New(cfg *Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("ledger_gateway")

	baseURL, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gateway endpoint '%s': %w", cfg.Endpoint, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	submitLimit := cfg.SubmitLimit
	if submitLimit == 0 {
		submitLimit = rate.Limit(2)
	}
	submitBurst := cfg.SubmitBurst
	if submitBurst == 0 {
		submitBurst = 4
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipVerify,
		},
	}

	gasPrices := ttlcache.New[string, uint64](
		ttlcache.WithTTL[string, uint64](gasPriceTTL),
		ttlcache.WithDisableTouchOnHit[string, uint64](),
	)

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		apiKey:    cfg.ApiKey,
		logger:    logger,
		limiter:   rate.NewLimiter(submitLimit, submitBurst),
		gasPrices: gasPrices,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, queryParams map[string]string, body any, target any) error {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(queryParams) > 0 {
		q := reqURL.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		reqURL.RawQuery = q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body for %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request %s %s: %w", method, reqURL.String(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	c.logger.Debug("Sending request", "method", method, "url", reqURL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s %s failed: %w", method, reqURL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Received non-2xx status code", "method", method, "url", reqURL.String(), "status_code", resp.StatusCode)
		if resp.StatusCode == http.StatusNotFound {
			return ErrObjectNotFound
		}
		var errorResp ErrorResponse
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr == nil && json.Unmarshal(bodyBytes, &errorResp) == nil && errorResp.Message != "" {
			return fmt.Errorf("gateway error (status %d): %s - %s", resp.StatusCode, errorResp.ErrorType, errorResp.Message)
		}
		return fmt.Errorf("gateway returned status %d for %s %s", resp.StatusCode, method, reqURL.String())
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response body for %s %s: %w", method, reqURL.String(), err)
		}
	}
	return nil
}

// Read fetches the current reference (id, version, digest) of a ledger
// object. Callers resolve the bucket registry root through this, fresh per
// operation; nothing is cached so a stale registry version is never used
// as a transaction input.
func (c *Client) Read(ctx context.Context, id string) (ObjectRef, error) {
	if id == "" {
		return ObjectRef{}, fmt.Errorf("object id cannot be empty")
	}
	var response struct {
		Data ObjectRef `json:"data"`
	}
	err := c.doRequest(ctx, http.MethodGet, "ledger/api/v1/object", map[string]string{"id": id}, nil, &response)
	if err != nil {
		return ObjectRef{}, err
	}
	return response.Data, nil
}

// ReferenceGasPrice returns the network's current reference gas price.
// The value is cached briefly; gas price drifts slowly and the gateway
// re-validates budgets server-side, so a short staleness window is safe
// here in a way it is not for metadata.
func (c *Client) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	if item := c.gasPrices.Get(gasPriceKey); item != nil {
		return item.Value(), nil
	}

	var response struct {
		Data string `json:"data"`
	}
	err := c.doRequest(ctx, http.MethodGet, "ledger/api/v1/gas/reference-price", nil, nil, &response)
	if err != nil {
		return 0, err
	}
	price, err := strconv.ParseUint(response.Data, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse reference gas price '%s': %w", response.Data, err)
	}
	c.gasPrices.Set(gasPriceKey, price, ttlcache.DefaultTTL)
	return price, nil
}

// Submit signs and executes a transaction through the gateway, waiting for
// local execution, and returns the emitted events. The request's gas price
// is filled from the network's reference price when left zero, and the
// submission waits on a client-side limiter first.
func (c *Client) Submit(ctx context.Context, req *TransactionRequest) ([]Event, error) {
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("transaction must have at least one input")
	}
	if req.Call.Package == "" || req.Call.Module == "" || req.Call.Function == "" {
		return nil, fmt.Errorf("transaction move call is incomplete")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("submission limiter: %w", err)
	}

	// fill defaults on a copy so a retried request arrives unfilled
	filled := *req
	if filled.ID == "" {
		filled.ID = uuid.NewString()
	}
	if filled.GasBudget == 0 {
		filled.GasBudget = defaultGasLimit
	}
	if filled.GasPrice == 0 {
		price, err := c.ReferenceGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch reference gas price: %w", err)
		}
		filled.GasPrice = price
	}

	var response struct {
		Events []Event `json:"events"`
	}
	err := c.doRequest(ctx, http.MethodPost, "ledger/api/v1/transaction", nil, &filled, &response)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Transaction executed",
		"id", filled.ID,
		"function", filled.Call.Function,
		"events", len(response.Events))

	return response.Events, nil
}
