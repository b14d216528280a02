package payment

// Match is a transfer found on one chain that satisfies an expected payment.
type Match struct {
	Chain       string  `json:"chain"`
	TxHash      string  `json:"tx_hash"`
	From        string  `json:"from"`
	Amount      float64 `json:"amount"`
	BlockNumber uint64  `json:"block_number"`
}

// ApplyResult reports the outcome of reconciling one payment event.
// Duplicate means the reference was already applied: a success no-op,
// not an error.
type ApplyResult struct {
	Credited   int64 `json:"credited"`
	NewBalance int64 `json:"new_balance"`
	Duplicate  bool  `json:"duplicate"`
}
