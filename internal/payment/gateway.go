package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateRequest struct {
	BuyOrder  string
	SessionID string
	Amount    decimal.Decimal
	ReturnURL string
}

type CreateResponse struct {
	Token string
	URL   string
}

// RedirectURL is where the buyer is sent to complete the payment.
func (r CreateResponse) RedirectURL() string {
	if r.URL == "" {
		return ""
	}
	return r.URL + "?token_ws=" + url.QueryEscape(r.Token)
}

type CommitResult struct {
	Authorized   bool
	Status       string
	ResponseCode int
}

// Gateway is the redirect-based card payment provider.
type Gateway interface {
	Create(ctx context.Context, req CreateRequest) (CreateResponse, error)
	Commit(ctx context.Context, token string) (CommitResult, error)
}

const transactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"

// HTTPGateway talks to a Webpay Plus style REST API.
type HTTPGateway struct {
	baseURL   string
	apiKeyID  string
	apiSecret string
	client    *http.Client
}

func NewHTTPGateway(baseURL, apiKeyID, apiSecret string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKeyID:  apiKeyID,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: timeout},
	}
}

type createBody struct {
	BuyOrder  string      `json:"buy_order"`
	SessionID string      `json:"session_id"`
	Amount    json.Number `json:"amount"`
	ReturnURL string      `json:"return_url"`
}

type createReply struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type commitReply struct {
	Status       string `json:"status"`
	ResponseCode int    `json:"response_code"`
	BuyOrder     string `json:"buy_order"`
}

func (g *HTTPGateway) Create(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	var reply createReply
	err := g.do(ctx, http.MethodPost, transactionsPath, createBody{
		BuyOrder:  req.BuyOrder,
		SessionID: req.SessionID,
		Amount:    json.Number(req.Amount.String()),
		ReturnURL: req.ReturnURL,
	}, &reply)
	if err != nil {
		return CreateResponse{}, err
	}
	if reply.Token == "" || reply.URL == "" {
		return CreateResponse{}, fmt.Errorf("gateway returned empty token or url")
	}
	return CreateResponse{Token: reply.Token, URL: reply.URL}, nil
}

func (g *HTTPGateway) Commit(ctx context.Context, token string) (CommitResult, error) {
	var reply commitReply
	if err := g.do(ctx, http.MethodPut, transactionsPath+"/"+url.PathEscape(token), nil, &reply); err != nil {
		return CommitResult{}, err
	}
	return CommitResult{
		Authorized:   reply.Status == "AUTHORIZED" && reply.ResponseCode == 0,
		Status:       reply.Status,
		ResponseCode: reply.ResponseCode,
	}, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal gateway request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tbk-Api-Key-Id", g.apiKeyID)
	req.Header.Set("Tbk-Api-Key-Secret", g.apiSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

// MockGateway accepts every transaction locally. Results are decided with
// SetResult before the buyer returns; undecided tokens are rejected on commit.
type MockGateway struct {
	baseURL string

	mu      sync.Mutex
	results map[string]bool
}

func NewMockGateway(baseURL string) *MockGateway {
	return &MockGateway{baseURL: strings.TrimRight(baseURL, "/"), results: make(map[string]bool)}
}

func (m *MockGateway) Create(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	return CreateResponse{Token: "mock-" + uuid.NewString(), URL: m.baseURL + "/mock-webpay"}, nil
}

func (m *MockGateway) Commit(ctx context.Context, token string) (CommitResult, error) {
	m.mu.Lock()
	authorized, ok := m.results[token]
	delete(m.results, token)
	m.mu.Unlock()

	if ok && authorized {
		return CommitResult{Authorized: true, Status: "AUTHORIZED"}, nil
	}
	return CommitResult{Status: "FAILED", ResponseCode: -1}, nil
}

func (m *MockGateway) SetResult(token string, authorized bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[token] = authorized
}
