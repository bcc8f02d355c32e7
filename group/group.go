package group

type Group uint8

const (
	GroupInvalid           Group = 0
	GroupStartupWait       Group = 1
	GroupElectionWait      Group = 2
	GroupCoordinatorWait   Group = 3
	GroupLeaderFailureWait Group = 4
	GroupNackWait          Group = 5
	GroupHandoverWait      Group = 6
)

func (g Group) String() string {
	switch g {
	case GroupInvalid:
		return "Invalid Group"
	case GroupStartupWait:
		return "Startup Wait"
	case GroupElectionWait:
		return "Election Wait"
	case GroupCoordinatorWait:
		return "Coordinator Wait"
	case GroupLeaderFailureWait:
		return "Leader Failure Wait"
	case GroupNackWait:
		return "Nack Wait"
	case GroupHandoverWait:
		return "Handover Wait"
	default:
		return "Unknown Group"
	}
}
