package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"paywave.com/apps/settlement/internal/domain"
	"paywave.com/pkg/logger"
)

const erc20ABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"}]`

// Token ERC-20 代币参数
type Token struct {
	Contract string
	Decimals int32
}

type Config struct {
	NodeURL string
	// 热钱包私钥，生产应走 KMS，这里从配置注入
	PrivateKeyHex string
	// 原生币符号 (ETH / BNB ...)
	NativeSymbol string
	// 代币表：symbol -> 合约参数
	Tokens map[string]Token
}

// Adapter EVM 系网络适配器
type Adapter struct {
	client       *ethclient.Client
	chainID      *big.Int
	privateKey   *ecdsa.PrivateKey
	fromAddress  common.Address
	nativeSymbol string
	tokens       map[string]Token
	transferABI  abi.ABI
}

var _ domain.NetworkAdapter = (*Adapter)(nil)

func New(cfg *Config) (*Adapter, error) {
	client, err := ethclient.Dial(cfg.NodeURL)
	if err != nil {
		return nil, err
	}
	// ChainID 用于签名，防重放
	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, err
	}

	privateKey, err := crypto.HexToECDSA(cfg.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("bad private key: %w", err)
	}
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]Token, len(cfg.Tokens))
	for sym, t := range cfg.Tokens {
		tokens[strings.ToUpper(sym)] = t
	}

	return &Adapter{
		client:       client,
		chainID:      chainID,
		privateKey:   privateKey,
		fromAddress:  crypto.PubkeyToAddress(*publicKey),
		nativeSymbol: strings.ToUpper(cfg.NativeSymbol),
		tokens:       tokens,
		transferABI:  parsedABI,
	}, nil
}

// Submit 构建、签名并广播一笔转出，返回交易哈希
func (a *Adapter) Submit(ctx context.Context, address string, amount decimal.Decimal, currency, reference string) (string, error) {
	var (
		toAddress common.Address
		amountWei *big.Int
		txData    []byte
	)

	if currency == a.nativeSymbol {
		// 原生币转账：Value 即金额
		toAddress = common.HexToAddress(address)
		amountWei = amount.Shift(18).BigInt()
	} else {
		// ERC-20 转账：To 是合约地址，Value 为 0，真正的接收方和金额打包进 Data
		token, ok := a.tokens[currency]
		if !ok {
			return "", domain.NewBroadcastError("unsupported token "+currency, nil)
		}
		toAddress = common.HexToAddress(token.Contract)
		amountWei = big.NewInt(0)

		realTo := common.HexToAddress(address)
		realAmount := amount.Shift(token.Decimals).BigInt()
		data, err := a.transferABI.Pack("transfer", realTo, realAmount)
		if err != nil {
			return "", domain.NewBroadcastError("pack transfer data", err)
		}
		txData = data
	}

	// 热钱包地址的 nonce 存在并发，注意
	nonce, err := a.client.PendingNonceAt(ctx, a.fromAddress)
	if err != nil {
		return "", domain.NewBroadcastError("get nonce", err)
	}

	// EIP-1559 费率
	gasTipCap, err := a.client.SuggestGasTipCap(ctx)
	if err != nil {
		return "", domain.NewBroadcastError("get gas tip", err)
	}
	head, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", domain.NewBroadcastError("get header", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		// 兼容不支持 London 的旧链
		baseFee = big.NewInt(0)
	}
	// MaxFeePerGas = 2*BaseFee + Tip，防下一块 BaseFee 暴涨导致交易被丢弃
	gasFeeCap := new(big.Int).Add(
		new(big.Int).Mul(baseFee, big.NewInt(2)),
		gasTipCap,
	)

	gasLimit := uint64(21000)
	if len(txData) > 0 {
		// 合约调用，给安全值。更准可以用 EstimateGas。
		gasLimit = uint64(100000)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   a.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &toAddress,
		Value:     amountWei,
		Data:      txData,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.privateKey)
	if err != nil {
		return "", domain.NewBroadcastError("sign tx", err)
	}

	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return "", domain.NewBroadcastError("send tx", err)
	}

	logger.Info(ctx, "EVM 转出已广播",
		zap.Uint64("nonce", nonce),
		zap.String("reference", reference),
		zap.String("hash", signedTx.Hash().Hex()))
	return signedTx.Hash().Hex(), nil
}
