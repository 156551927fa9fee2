package bitcoin

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/shopspring/decimal"
	"paywave.com/apps/settlement/internal/domain"
)

// Adapter 比特币系网络适配器，私钥由节点钱包托管
type Adapter struct {
	rpcClient   *rpcclient.Client
	networkType *chaincfg.Params
}

var _ domain.NetworkAdapter = (*Adapter)(nil)

func New(host, user, password string, network *chaincfg.Params) (*Adapter, error) {
	rpcConfig := &rpcclient.ConnConfig{
		Host:         host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true, // 比特币核心节点必须使用 POST 模式
		DisableTLS:   true, // 内网节点不走 TLS
	}
	client, err := rpcclient.New(rpcConfig, nil)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		rpcClient:   client,
		networkType: network,
	}, nil
}

// Submit 通过节点 RPC sendtoaddress 广播转出
func (a *Adapter) Submit(ctx context.Context, address string, amount decimal.Decimal, currency, reference string) (string, error) {
	// BTC -> Satoshi，再还原成 btcutil.Amount，避免 float 直转丢精度
	sats := amount.Mul(decimal.NewFromInt(100_000_000)).IntPart()
	btcAmount, err := btcutil.NewAmount(float64(sats) / 100_000_000)
	if err != nil {
		return "", domain.NewBroadcastError("invalid amount", err)
	}

	addr, err := btcutil.DecodeAddress(address, a.networkType)
	if err != nil {
		return "", domain.NewBroadcastError("invalid address", err)
	}

	hash, err := a.rpcClient.SendToAddress(addr, btcAmount)
	if err != nil {
		return "", domain.NewBroadcastError("rpc send failed", err)
	}

	return hash.String(), nil
}

// Close 关闭连接
func (a *Adapter) Close() {
	a.rpcClient.Shutdown()
}
