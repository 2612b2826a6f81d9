package models

// InkAccount is the persisted ink balance for one derived user identifier.
// InkRemaining is the balance as of LastRefill (epoch ms); the effective
// balance at any later instant is computed lazily from the refill rate, so
// stored state never needs periodic updates.
type InkAccount struct {
	InkRemaining float64 `json:"inkRemaining"`
	LastRefill   int64   `json:"lastRefill"`
	Country      string  `json:"country"`
	CreatedAt    int64   `json:"createdAt"`
}
