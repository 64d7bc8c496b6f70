package entity

// Role is a closed set of workflow actor archetypes.
// Permission checks go through the capability table below instead of
// substring matching on free-form role labels.
type Role string

const (
	RolePreparator Role = "PREPARATOR"
	RoleReviewer   Role = "REVIEWER"
	RoleApprover   Role = "APPROVER"
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
)

// Capability describes what a role may do within a workflow step.
type Capability struct {
	CanSubmit          bool
	CanApprove         bool
	CanReject          bool
	CanRequestRevision bool
	CanDelegate        bool
	CanConfigure       bool
}

var roleCapabilities = map[Role]Capability{
	RolePreparator: {CanSubmit: true},
	RoleReviewer:   {CanApprove: true, CanReject: true, CanRequestRevision: true, CanDelegate: true},
	RoleApprover:   {CanApprove: true, CanReject: true, CanRequestRevision: true, CanDelegate: true},
	RoleManager:    {CanApprove: true, CanReject: true, CanRequestRevision: true, CanDelegate: true},
	RoleAdmin:      {CanSubmit: true, CanApprove: true, CanReject: true, CanRequestRevision: true, CanDelegate: true, CanConfigure: true},
}

var validRoles = map[Role]bool{
	RolePreparator: true,
	RoleReviewer:   true,
	RoleApprover:   true,
	RoleManager:    true,
	RoleAdmin:      true,
}

// IsValid returns true if the role is one of the known archetypes.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// Capabilities returns the capability set for the role.
// Unknown roles get the zero capability set.
func (r Role) Capabilities() Capability {
	return roleCapabilities[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}
