package entity

// DocumentType identifies the family of a workflow document
type DocumentType string

const (
	DocumentPaymentOrder     DocumentType = "PAYMENT_ORDER"
	DocumentExitPermit       DocumentType = "EXIT_PERMIT"
	DocumentSecurityLog      DocumentType = "SECURITY_LOG"
	DocumentSecurityDelay    DocumentType = "SECURITY_DELAY"
	DocumentSecurityIncident DocumentType = "SECURITY_INCIDENT"
)

var documentTypes = []DocumentType{
	DocumentPaymentOrder,
	DocumentExitPermit,
	DocumentSecurityLog,
	DocumentSecurityDelay,
	DocumentSecurityIncident,
}

// DocumentTypes returns every known document type in a stable order
func DocumentTypes() []DocumentType {
	return append([]DocumentType(nil), documentTypes...)
}

// IsValid returns true if the document type is one of the defined constants
func (t DocumentType) IsValid() bool {
	for _, known := range documentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the document type
func (t DocumentType) String() string {
	return string(t)
}

// Role is the organisational role an actor holds
type Role string

const (
	RoleAdmin              Role = "ADMIN"
	RoleFinance            Role = "FINANCE"
	RoleManager            Role = "MANAGER"
	RoleCEO                Role = "CEO"
	RoleSales              Role = "SALES"
	RoleFactoryManager     Role = "FACTORY_MANAGER"
	RoleWarehouseKeeper    Role = "WAREHOUSE_KEEPER"
	RoleSecurityGuard      Role = "SECURITY_GUARD"
	RoleSecuritySupervisor Role = "SECURITY_SUPERVISOR"
)

var roles = []Role{
	RoleAdmin,
	RoleFinance,
	RoleManager,
	RoleCEO,
	RoleSales,
	RoleFactoryManager,
	RoleWarehouseKeeper,
	RoleSecurityGuard,
	RoleSecuritySupervisor,
}

// IsValid returns true if the role is one of the defined constants
func (r Role) IsValid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Stage is a named point in a document's approval lifecycle.
// Valid values are defined per document type by its stage graph.
type Stage string

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// Action is what an actor asks the engine to do with a document
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionRevoke  Action = "REVOKE"
	ActionEdit    Action = "EDIT"
)

// Actions returns all actions in presentation order
func Actions() []Action {
	return []Action{ActionApprove, ActionReject, ActionRevoke, ActionEdit}
}

// IsValid returns true if the action is one of the defined constants
func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRevoke, ActionEdit:
		return true
	}
	return false
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// Actor is the caller performing an action, with the role resolved by the
// authorization collaborator
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
