// Package policy maps roles to what they may do with evaluations and appeals.
package policy

import (
	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/auth"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
)

var approvers = map[evaluation.Level][]auth.Role{
	evaluation.LevelClass:   {auth.ClassMonitor, auth.UnionRepresentative, auth.Advisor, auth.Admin},
	evaluation.LevelAdvisor: {auth.Advisor, auth.Admin},
	evaluation.LevelFaculty: {auth.FacultyInstructor, auth.Admin},
	evaluation.LevelCTSV:    {auth.CTSVStaff, auth.Admin},
}

// selfScorers may own an evaluation.
var selfScorers = []auth.Role{auth.Student, auth.ClassMonitor, auth.UnionRepresentative}

var staff = []auth.Role{
	auth.ClassMonitor, auth.UnionRepresentative, auth.Advisor, auth.FacultyInstructor,
	auth.CTSVStaff, auth.InstituteCouncil, auth.Admin,
}

type Policy struct{}

var (
	_ evaluation.Policy = Policy{}
	_ appeal.Authorizer = Policy{}
)

// CanSubmit covers creating, editing, submitting and resubmitting.
func (Policy) CanSubmit(a auth.Actor, studentCode string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Has(selfScorers...) && a.Owns(studentCode)
}

// CanApprove also covers rejecting at level. Nobody but an admin approves
// their own evaluation.
func (Policy) CanApprove(a auth.Actor, level evaluation.Level, studentCode string) bool {
	if a.IsAdmin() {
		return true
	}
	if a.Owns(studentCode) {
		return false
	}
	return a.Has(approvers[level]...)
}

func (Policy) CanView(a auth.Actor, studentCode string) bool {
	return a.Owns(studentCode) || a.Has(staff...)
}

func (Policy) CanAppeal(a auth.Actor, studentCode string) bool {
	return a.Owns(studentCode)
}

func (Policy) CanReview(a auth.Actor) bool {
	return a.Has(auth.Admin, auth.FacultyInstructor)
}
