package models

type SwapRequest struct {
	FromCoinType string  `json:"from_coin_type"`
	ToCoinType   string  `json:"to_coin_type"`
	Amount       float64 `json:"amount"`
	FromDecimals int     `json:"from_decimals"`
}

type SwapResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	Error   string `json:"error,omitempty"`
}
