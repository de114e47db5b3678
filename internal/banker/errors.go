package banker

import (
	"errors"
	"fmt"
)

// 錯誤分類。所有錯誤都轉成使用者可見的通知，不會讓程序崩潰。
var (
	// ErrProtocolIncompatible: 必要的協定識別碼無法解析，銀行功能停用直到重新啟動工作階段。
	ErrProtocolIncompatible = errors.New("protocol incompatible")
	// ErrManualFixRequired: 自動修復已嘗試但失敗，需要手動處理。
	ErrManualFixRequired = errors.New("manual fix required")
	// ErrPaginationTimeout: 要求的分頁未在時限內確認，多分頁作業中止。
	ErrPaginationTimeout = errors.New("bank tab load timeout")
	// ErrInvalidOperation: 目前狀態不允許此操作，不修改任何狀態。
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrCaptureRace: 一次性延續被觸發第二次。
	ErrCaptureRace = errors.New("continuation already fired")
)

var (
	ErrNoContract        = fmt.Errorf("%w: bank is not open", ErrInvalidOperation)
	ErrDepositNotAllowed = fmt.Errorf("%w: depositing into this container is disabled", ErrInvalidOperation)
	ErrOperationActive   = fmt.Errorf("%w: a deposit is already running", ErrInvalidOperation)
	ErrNoView            = fmt.Errorf("%w: no bank tab has been viewed", ErrInvalidOperation)
)

// TabLoadError 表示分頁切換逾時。Tab 為從 1 起算的分頁編號。
type TabLoadError struct {
	Tab int32
}

func (e *TabLoadError) Error() string {
	return fmt.Sprintf("load bank tab %d: %v", e.Tab, ErrPaginationTimeout)
}

func (e *TabLoadError) Unwrap() error {
	return ErrPaginationTimeout
}
