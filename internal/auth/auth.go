// Package auth carries the identity forwarded by the gateway. Authentication
// happens upstream; this service only reads the result.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

type Role string

const (
	Student             Role = "STUDENT"
	ClassMonitor        Role = "CLASS_MONITOR"
	UnionRepresentative Role = "UNION_REPRESENTATIVE"
	Advisor             Role = "ADVISOR"
	FacultyInstructor   Role = "FACULTY_INSTRUCTOR"
	CTSVStaff           Role = "CTSV_STAFF"
	InstituteCouncil    Role = "INSTITUTE_COUNCIL"
	Admin               Role = "ADMIN"
)

// Actor is the caller of an operation. StudentCode is empty for staff.
type Actor struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	StudentCode string `json:"student_code,omitempty"`
	Roles       []Role `json:"roles"`
}

func (a Actor) Has(roles ...Role) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.Has(Admin)
}

// Owns reports whether the actor is the student the record belongs to.
func (a Actor) Owns(studentCode string) bool {
	return a.StudentCode != "" && a.StudentCode == studentCode
}

// ParseRoles reads a comma separated role list such as "ROLE_STUDENT,ADMIN".
func ParseRoles(s string) []Role {
	var roles []Role
	for _, r := range strings.Split(s, ",") {
		r = strings.ToUpper(strings.TrimSpace(r))
		r = strings.TrimPrefix(r, "ROLE_")
		if r == "" {
			continue
		}
		roles = append(roles, Role(r))
	}
	return roles
}

func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// TokenEqual compares two secrets in constant time.
func TokenEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(got)), []byte(HashToken(want))) == 1
}
