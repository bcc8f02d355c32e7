package message

// ActionRequest is sent by a player to the leader, which validates it before
// sequencing.
type ActionRequest struct {
	Action Action `json:"action"`
	Amount int64  `json:"amount"`
}

// Notice is a private, unsequenced text for a single node.
type Notice struct {
	Text string `json:"text"`
}
