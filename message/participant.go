package message

type Participant struct {
	Host     string `json:"host"`
	Instance string `json:"instance"`
	Address  string `json:"address"` // listen address, doubles as node id
	Time     int64  `json:"time"`    // epoch milliseconds
}

func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

type ParticipantInit struct {
	Participant *Participant `json:"participant"`
	InReconnect bool         `json:"in_reconnect"`
}

type ParticipantExit struct {
	InShutdown bool `json:"in_shutdown"`
}
