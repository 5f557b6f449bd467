package constants

const (
	ClaimLead         = "claim_lead"
	ViewLead          = "view_lead"
	CancelLead        = "cancel_lead"
	ViewAccount       = "view_account"
	ViewLedger        = "view_ledger"
	ReviewContractors = "review_contractors"
)

// PermissionRoles maps each permission to roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ClaimLead:         {Contractor},
	ViewLead:          {Customer},
	CancelLead:        {Customer},
	ViewAccount:       {Contractor},
	ViewLedger:        {Contractor},
	ReviewContractors: {Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
