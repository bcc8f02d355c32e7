package message

// Sync tells a node to treat Seq as already delivered.
type Sync struct {
	Epoch uint32 `json:"epoch"`
	Seq   int64  `json:"seq"`
}

type Nack struct {
	Seq int64 `json:"seq"`
}

type Ordered struct {
	Epoch   uint32   `json:"epoch"`
	Seq     int64    `json:"seq"`
	Command *Command `json:"command"`
}
