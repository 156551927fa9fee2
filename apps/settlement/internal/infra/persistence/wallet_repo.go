package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"paywave.com/apps/settlement/internal/domain"
	"paywave.com/pkg/xerr"
)

func (r *Repo) GetWallet(ctx context.Context, walletID int64) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.conn(ctx).WithContext(ctx).First(&w, "id = ?", walletID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.NewErrCode(xerr.RecordNotFound)
		}
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("query wallet %d failed: %v", walletID, err))
	}
	return &w, nil
}

// Credit 钱包入账
// SQL: UPDATE wallets SET balance = balance + ? WHERE id = ?
func (r *Repo) Credit(ctx context.Context, walletID int64, amount decimal.Decimal) error {
	res := r.conn(ctx).WithContext(ctx).Model(&domain.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("credit wallet %d failed: %v", walletID, res.Error))
	}
	if res.RowsAffected == 0 {
		return xerr.New(xerr.DbError, fmt.Sprintf("credit wallet %d: wallet not found", walletID))
	}
	return nil
}
