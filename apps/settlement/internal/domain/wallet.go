package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet 用户钱包，余额的唯一事实来源。
// 上游授权流程在任务创建前已完成扣款；本 worker 只在退款路径动它。
type Wallet struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"index"`
	Currency  string
	Balance   decimal.Decimal `gorm:"type:decimal(36,18)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Wallet) TableName() string { return "wallets" }

// WalletRepo 钱包仓储接口
type WalletRepo interface {
	GetWallet(ctx context.Context, walletID int64) (*Wallet, error)
	// Credit 入账。只被退款路径调用，调用方负责幂等保证。
	Credit(ctx context.Context, walletID int64, amount decimal.Decimal) error
}
