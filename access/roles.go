package access

// Role names known to RolePermissions.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

var (
	allResources = []Resource{
		ResourceSimCards, ResourceTransactions, ResourceCustomers, ResourceSimTypes, ResourceDashboard,
	}
	allActions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}
)

// Roles maps a role to the actions it may perform on every resource.
// The role id is the only source of truth for a caller's permissions.
var Roles = map[string][]Action{
	RoleAdmin:    allActions,
	RoleOperator: {ActionView, ActionCreate, ActionEdit},
	RoleViewer:   {ActionView},
}

// All returns every permission.
func All() []Permission {
	return expand(allActions)
}

// RolePermissions returns the permissions for role, or nil for unknown roles.
func RolePermissions(role string) []Permission {
	actions, ok := Roles[role]
	if !ok {
		return nil
	}
	return expand(actions)
}

func expand(actions []Action) []Permission {
	perms := make([]Permission, 0, len(allResources)*len(actions))
	for _, r := range allResources {
		for _, a := range actions {
			perms = append(perms, Permission{Resource: r, Action: a})
		}
	}
	return perms
}
