package evaluation

type Status string

const (
	Draft           Status = "DRAFT"
	Submitted       Status = "SUBMITTED"
	ClassApproved   Status = "CLASS_APPROVED"
	AdvisorApproved Status = "ADVISOR_APPROVED"
	FacultyApproved Status = "FACULTY_APPROVED"
	CTSVApproved    Status = "CTSV_APPROVED"
	Rejected        Status = "REJECTED"
)

// Level is one stage of the approver chain.
type Level string

const (
	LevelClass   Level = "CLASS"
	LevelAdvisor Level = "ADVISOR"
	LevelFaculty Level = "FACULTY"
	LevelCTSV    Level = "CTSV"
)

// Levels in chain order.
var Levels = []Level{LevelClass, LevelAdvisor, LevelFaculty, LevelCTSV}

type Action string

const (
	ActionSubmit   Action = "SUBMITTED"
	ActionApprove  Action = "APPROVED"
	ActionReject   Action = "REJECTED"
	ActionResubmit Action = "RESUBMITTED"
	ActionReopen   Action = "REOPENED"
)

// Chain is the approver chain of a rubric. AdvisorStep inserts the advisor
// between class and faculty approval.
type Chain struct {
	AdvisorStep bool
}

// Next is the status an approval moves s to.
func (c Chain) Next(s Status) (Status, bool) {
	switch s {
	case Submitted:
		return ClassApproved, true
	case ClassApproved:
		if c.AdvisorStep {
			return AdvisorApproved, true
		}
		return FacultyApproved, true
	case AdvisorApproved:
		return FacultyApproved, true
	case FacultyApproved:
		return CTSVApproved, true
	}
	return "", false
}

// Pending is the level whose approval s is waiting for.
func (c Chain) Pending(s Status) (Level, bool) {
	switch s {
	case Submitted:
		return LevelClass, true
	case ClassApproved:
		if c.AdvisorStep {
			return LevelAdvisor, true
		}
		return LevelFaculty, true
	case AdvisorApproved:
		return LevelFaculty, true
	case FacultyApproved:
		return LevelCTSV, true
	}
	return "", false
}

// Awaiting is the status in which level's approval is pending. The advisor
// level awaits nothing in a chain without the advisor step.
func (c Chain) Awaiting(level Level) (Status, bool) {
	for _, s := range []Status{Submitted, ClassApproved, AdvisorApproved, FacultyApproved} {
		if l, ok := c.Pending(s); ok && l == level {
			return s, true
		}
	}
	return "", false
}

// Reachable lists every status one transition away from s.
func (c Chain) Reachable(s Status) []Status {
	switch s {
	case Draft, Rejected:
		return []Status{Submitted}
	case FacultyApproved:
		return []Status{CTSVApproved, Rejected, Submitted}
	}
	if next, ok := c.Next(s); ok {
		return []Status{next, Rejected}
	}
	return nil
}

func (s Status) Terminal() bool {
	return s == CTSVApproved
}

func levelIndex(l Level) int {
	for i, v := range Levels {
		if v == l {
			return i
		}
	}
	return len(Levels)
}
