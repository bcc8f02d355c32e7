package message

type Role uint8

const (
	RoleInvalid  Role = 0
	RoleIdle     Role = 1
	RoleElecting Role = 2
	RoleLeader   Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleInvalid:
		return "Invalid Role"
	case RoleIdle:
		return "Idle"
	case RoleElecting:
		return "Electing"
	case RoleLeader:
		return "Leader"
	default:
		return "Unknown Role"
	}
}

type ElectionReason uint8

const (
	ElectionReasonInvalid            ElectionReason = 0
	ElectionReasonStartup            ElectionReason = 1
	ElectionReasonLeaderFailure      ElectionReason = 2
	ElectionReasonChallenged         ElectionReason = 3
	ElectionReasonCoordinatorTimeout ElectionReason = 4
	ElectionReasonHandoverFailure    ElectionReason = 5
	ElectionReasonManual             ElectionReason = 6
)

func (r ElectionReason) String() string {
	switch r {
	case ElectionReasonInvalid:
		return "Invalid Reason"
	case ElectionReasonStartup:
		return "Startup"
	case ElectionReasonLeaderFailure:
		return "Leader Failure"
	case ElectionReasonChallenged:
		return "Challenged"
	case ElectionReasonCoordinatorTimeout:
		return "Coordinator Timeout"
	case ElectionReasonHandoverFailure:
		return "Handover Failure"
	case ElectionReasonManual:
		return "Manual"
	default:
		return "Unknown Reason"
	}
}
