package auth

import "testing"

func TestEveryRolePermissionIsKnown(t *testing.T) {
	known := map[string]bool{}
	for _, perm := range DefaultPermissions {
		known[perm] = true
	}
	for role, perms := range RolePermissions {
		for _, perm := range perms {
			if !known[perm] {
				t.Fatalf("role %s grants unknown permission %s", role, perm)
			}
		}
	}
}

func TestPayrollApprovalRestrictedToStaffRoles(t *testing.T) {
	for _, role := range []string{RoleTeacher, RoleParent, RoleStudent} {
		for _, perm := range RolePermissions[role] {
			if perm == PermPayrollApprove || perm == PermPayrollPay || perm == PermPayrollRun {
				t.Fatalf("role %s must not hold %s", role, perm)
			}
		}
	}
}

func TestParentCannotWrite(t *testing.T) {
	writes := map[string]bool{
		PermStaffWrite:      true,
		PermPayrollWrite:    true,
		PermHalaqaWrite:     true,
		PermAttendanceWrite: true,
		PermProgressWrite:   true,
		PermBillingWrite:    true,
	}
	for _, perm := range RolePermissions[RoleParent] {
		if writes[perm] {
			t.Fatalf("parent role must be read-only, holds %s", perm)
		}
	}
}
