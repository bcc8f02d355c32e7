package message

type Coordinator struct {
	Epoch uint32 `json:"epoch"`
}

// Handover transfers leadership to a chosen successor together with the
// serialized table and the last sequence number it produced.
type Handover struct {
	Epoch uint32 `json:"epoch"`
	Seq   int64  `json:"seq"`
	State []byte `json:"state"`
}
