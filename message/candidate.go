package message

// Election challenges every peer of higher priority. Round selects the
// rotation slot used when ranking.
type Election struct {
	Round uint32 `json:"round"`
}

// ElectionOk tells a lower challenger that a higher peer is alive and will
// take over the election.
type ElectionOk struct {
	Round uint32 `json:"round"`
}
