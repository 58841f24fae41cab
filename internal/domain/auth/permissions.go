package auth

const (
	PermStaffRead       = "staff.read"
	PermStaffWrite      = "staff.write"
	PermPayrollRead     = "payroll.read"
	PermPayrollWrite    = "payroll.write"
	PermPayrollRun      = "payroll.run"
	PermPayrollApprove  = "payroll.approve"
	PermPayrollPay      = "payroll.pay"
	PermHalaqaRead      = "halaqa.read"
	PermHalaqaWrite     = "halaqa.write"
	PermAttendanceRead  = "attendance.read"
	PermAttendanceWrite = "attendance.write"
	PermProgressRead    = "progress.read"
	PermProgressWrite   = "progress.write"
	PermBillingRead     = "billing.read"
	PermBillingWrite    = "billing.write"
	PermBillingRun      = "billing.run"
	PermMessagingSend   = "messaging.send"
	PermAuditRead       = "audit.read"
	PermSystemAdmin     = "admin.system"
)

var DefaultPermissions = []string{
	PermStaffRead,
	PermStaffWrite,
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollRun,
	PermPayrollApprove,
	PermPayrollPay,
	PermHalaqaRead,
	PermHalaqaWrite,
	PermAttendanceRead,
	PermAttendanceWrite,
	PermProgressRead,
	PermProgressWrite,
	PermBillingRead,
	PermBillingWrite,
	PermBillingRun,
	PermMessagingSend,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermStaffRead,
		PermStaffWrite,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
		PermPayrollApprove,
		PermPayrollPay,
		PermHalaqaRead,
		PermHalaqaWrite,
		PermAttendanceRead,
		PermAttendanceWrite,
		PermProgressRead,
		PermProgressWrite,
		PermBillingRead,
		PermBillingWrite,
		PermBillingRun,
		PermMessagingSend,
		PermAuditRead,
		PermSystemAdmin,
	},
	RoleManager: {
		PermStaffRead,
		PermStaffWrite,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
		PermPayrollApprove,
		PermPayrollPay,
		PermHalaqaRead,
		PermHalaqaWrite,
		PermAttendanceRead,
		PermProgressRead,
		PermBillingRead,
		PermBillingWrite,
		PermBillingRun,
		PermMessagingSend,
		PermAuditRead,
	},
	RoleTeacher: {
		PermPayrollRead,
		PermHalaqaRead,
		PermAttendanceRead,
		PermAttendanceWrite,
		PermProgressRead,
		PermProgressWrite,
	},
	RoleParent: {
		PermHalaqaRead,
		PermAttendanceRead,
		PermProgressRead,
		PermBillingRead,
	},
	RoleStudent: {
		PermHalaqaRead,
		PermAttendanceRead,
		PermProgressRead,
	},
}
