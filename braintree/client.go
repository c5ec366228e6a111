package braintree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type client struct {
	baseURL    string
	merchantId string
	publicKey  string
	privateKey string
	http       *http.Client
	limiter    <-chan time.Time
}

// NewClientFromEnv builds the gateway client from environment configuration.
// The returned client satisfies both Gateway and Vault.
func NewClientFromEnv() (*client, error) {
	baseURL := strings.TrimSpace(os.Getenv("BRAINTREE_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.braintreegateway.com"
	}
	merchantId := strings.TrimSpace(os.Getenv("BRAINTREE_MERCHANT_ID"))
	if merchantId == "" {
		return nil, errors.New("braintree merchant id is empty")
	}
	publicKey := strings.TrimSpace(os.Getenv("BRAINTREE_PUBLIC_KEY"))
	privateKey := strings.TrimSpace(os.Getenv("BRAINTREE_PRIVATE_KEY"))
	if publicKey == "" || privateKey == "" {
		return nil, errors.New("braintree api key pair is empty")
	}

	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("BRAINTREE_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantId: merchantId,
		publicKey:  publicKey,
		privateKey: privateKey,
		http:       &http.Client{Timeout: 30 * time.Second},
		limiter:    time.Tick(interval),
	}, nil
}

// NewClient builds a gateway client against an explicit endpoint. Used by
// tests pointing at a stub server.
func NewClient(baseURL, merchantId, publicKey, privateKey string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantId: merchantId,
		publicKey:  publicKey,
		privateKey: privateKey,
		http:       &http.Client{Timeout: 30 * time.Second},
		limiter:    time.Tick(time.Millisecond),
	}
}

type transactionResponse struct {
	Transaction Transaction `json:"transaction"`
}

type paymentMethodResponse struct {
	PaymentMethod VaultedPaymentMethod `json:"payment_method"`
}

// FindTransaction returns the gateway's current status and amount for a
// transaction. Query-only; never mutates gateway state.
func (c *client) FindTransaction(ctx context.Context, transactionId string) (*Transaction, error) {
	if strings.TrimSpace(transactionId) == "" {
		return nil, errors.New("transaction id is required")
	}

	path := fmt.Sprintf("/merchants/%s/transactions/%s", c.merchantId, transactionId)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var parsed transactionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &parsed.Transaction, nil
}

func (c *client) VaultedPaymentMethod(ctx context.Context, token string) (*VaultedPaymentMethod, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("token is required")
	}

	path := fmt.Sprintf("/merchants/%s/payment_methods/any/%s", c.merchantId, token)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var parsed paymentMethodResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &parsed.PaymentMethod, nil
}

func (c *client) get(ctx context.Context, path string) ([]byte, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.publicKey, c.privateKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrTransactionNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: gateway error %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("braintree api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
