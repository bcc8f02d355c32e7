package message

type Kind uint8

const (
	KindInvalid         Kind = 0
	KindParticipantInit Kind = 1
	KindParticipantExit Kind = 2
	KindElection        Kind = 3
	KindElectionOk      Kind = 4
	KindCoordinator     Kind = 5
	KindHandover        Kind = 6
	KindSync            Kind = 7
	KindNack            Kind = 8
	KindOrdered         Kind = 9
	KindActionRequest   Kind = 10
	KindNotice          Kind = 11
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid Kind"
	case KindParticipantInit:
		return "ParticipantInit"
	case KindParticipantExit:
		return "ParticipantExit"
	case KindElection:
		return "Election"
	case KindElectionOk:
		return "ElectionOk"
	case KindCoordinator:
		return "Coordinator"
	case KindHandover:
		return "Handover"
	case KindSync:
		return "Sync"
	case KindNack:
		return "Nack"
	case KindOrdered:
		return "Ordered"
	case KindActionRequest:
		return "ActionRequest"
	case KindNotice:
		return "Notice"
	default:
		return "Unknown Kind"
	}
}

// Message is the single wire envelope; exactly one kind pointer is set.
type Message struct {
	Txseq  uint64 `json:"txseq"`
	Txtime int64  `json:"txtime"` // epoch milliseconds

	ParticipantInit *ParticipantInit `json:"participant_init,omitempty" msgpack:",omitempty"`
	ParticipantExit *ParticipantExit `json:"participant_exit,omitempty" msgpack:",omitempty"`

	Election    *Election    `json:"election,omitempty" msgpack:",omitempty"`
	ElectionOk  *ElectionOk  `json:"election_ok,omitempty" msgpack:",omitempty"`
	Coordinator *Coordinator `json:"coordinator,omitempty" msgpack:",omitempty"`
	Handover    *Handover    `json:"handover,omitempty" msgpack:",omitempty"`

	Sync    *Sync    `json:"sync,omitempty" msgpack:",omitempty"`
	Nack    *Nack    `json:"nack,omitempty" msgpack:",omitempty"`
	Ordered *Ordered `json:"ordered,omitempty" msgpack:",omitempty"`

	ActionRequest *ActionRequest `json:"action_request,omitempty" msgpack:",omitempty"`
	Notice        *Notice        `json:"notice,omitempty" msgpack:",omitempty"`
}

func (m *Message) Kind() Kind {
	switch {
	case m.ParticipantInit != nil:
		return KindParticipantInit
	case m.ParticipantExit != nil:
		return KindParticipantExit
	case m.Election != nil:
		return KindElection
	case m.ElectionOk != nil:
		return KindElectionOk
	case m.Coordinator != nil:
		return KindCoordinator
	case m.Handover != nil:
		return KindHandover
	case m.Sync != nil:
		return KindSync
	case m.Nack != nil:
		return KindNack
	case m.Ordered != nil:
		return KindOrdered
	case m.ActionRequest != nil:
		return KindActionRequest
	case m.Notice != nil:
		return KindNotice
	default:
		return KindInvalid
	}
}
