package tron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"paywave.com/apps/settlement/internal/domain"
)

// Adapter TRON 网络适配器，走内部签名网关的 HTTP 接口。
// 网关负责热钱包签名和能量/带宽管理，这里只下单拿 txid。
type Adapter struct {
	gatewayURL string
	apiKey     string
	httpClient *http.Client
}

var _ domain.NetworkAdapter = (*Adapter)(nil)

func New(gatewayURL, apiKey string) *Adapter {
	return &Adapter{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type submitRequest struct {
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Asset     string          `json:"asset"`
	Reference string          `json:"reference"`
}

type submitResponse struct {
	TxID  string `json:"txid"`
	Error string `json:"error"`
}

// Submit 提交转出请求，返回 TRON txid
func (a *Adapter) Submit(ctx context.Context, address string, amount decimal.Decimal, currency, reference string) (string, error) {
	body, err := json.Marshal(submitRequest{
		To:        address,
		Amount:    amount,
		Asset:     currency,
		Reference: reference,
	})
	if err != nil {
		return "", domain.NewBroadcastError("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.gatewayURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return "", domain.NewBroadcastError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", domain.NewBroadcastError("gateway unreachable", err)
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewBroadcastError("decode response", err)
	}
	if resp.StatusCode != http.StatusOK {
		reason := out.Error
		if reason == "" {
			reason = fmt.Sprintf("gateway status %d", resp.StatusCode)
		}
		return "", domain.NewBroadcastError(reason, nil)
	}
	if out.TxID == "" {
		return "", domain.NewBroadcastError("gateway returned empty txid", nil)
	}
	return out.TxID, nil
}
