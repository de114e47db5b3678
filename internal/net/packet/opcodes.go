package packet

// 保留操作碼：固定值，與協定對照檔無關。
const (
	OpHello   uint16 = 0x0000 // in:  D protocolVersion, Q localGameId, S characterName
	OpNotice  uint16 = 0x0001 // out: C level, S text
	OpControl uint16 = 0x0002 // in:  C action, D arg

	reservedLimit uint16 = 0x0010 // mapped codes below this are rejected
)

// Mapped protocol names. 實際代碼由已安裝的 protocol.VERSION.map 決定。
const (
	S_REQUEST_CONTRACT = "S_REQUEST_CONTRACT"
	S_CANCEL_CONTRACT  = "S_CANCEL_CONTRACT"
	S_VIEW_WARE_EX     = "S_VIEW_WARE_EX"
	S_ITEMLIST         = "S_ITEMLIST"
	C_GET_WARE_ITEM    = "C_GET_WARE_ITEM"
	C_PUT_WARE_ITEM    = "C_PUT_WARE_ITEM"
	C_VIEW_WARE        = "C_VIEW_WARE"
)

// Control actions carried by OpControl.
const (
	CtlDeposit byte = iota + 1
	CtlDepositTab
	CtlDepositAll
	CtlCaptureAdd
	CtlCaptureRemove
	CtlCaptureAuto
	CtlBlacklistAdd    // arg = item id
	CtlBlacklistRemove // arg = item id
	CtlBlacklistClear
	CtlBlacklistList
	CtlToggleAuto
	CtlToggleHuman
	CtlToggleTabMode
	CtlToggleDepositIn   // arg = container type
	CtlToggleDepositFrom // arg: 1 = bag, 2 = pockets
)
