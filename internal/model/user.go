package model

import "github.com/shopspring/decimal"

// User holds the balance fields the shop reads and writes. The user document
// is owned by the account system; other game systems mutate it concurrently,
// so the shop never assumes exclusive ownership of these fields.
type User struct {
	GiftPoints       int64           `json:"giftPoints"`
	UsdBalance       decimal.Decimal `json:"usdBalance"`
	ExpPacks         int64           `json:"expPacks"`
	WhitelistBalance int64           `json:"whitelistBalance"`
}
