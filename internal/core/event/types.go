package event

import "github.com/google/uuid"

// HookConnected is emitted after a hook session's hello has been processed.
type HookConnected struct {
	SessionID       uint64
	GameID          uint64
	Name            string
	ProtocolVersion int32
	Compatible      bool
}

type HookDisconnected struct {
	SessionID uint64
	Name      string
}

// DepositSent 記錄一次已送出的存入請求（送出即記錄，不等伺服器確認）。
type DepositSent struct {
	SessionID       uint64
	Profile         string
	ContractSession uuid.UUID
	Container       int32
	Offset          int32
	ItemID          int32
	DbID            uint64
	Amount          int32
}
