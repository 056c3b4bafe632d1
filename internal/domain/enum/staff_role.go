package enum

// StaffRole identifies the role a staff member acts under. Roles travel in
// JWT claims as plain strings, so this enum is string-backed.
type StaffRole string

const (
	RoleAdmin        StaffRole = "admin"
	RoleReceptionist StaffRole = "receptionist"
	RoleNurse        StaffRole = "nurse"
	RoleDoctor       StaffRole = "doctor"
	RoleLabTech      StaffRole = "lab_tech"
	RolePharmacist   StaffRole = "pharmacist"
	RoleAccountant   StaffRole = "accountant"
)

// AllStaffRoles lists every assignable role
var AllStaffRoles = []StaffRole{
	RoleAdmin,
	RoleReceptionist,
	RoleNurse,
	RoleDoctor,
	RoleLabTech,
	RolePharmacist,
	RoleAccountant,
}

func (r StaffRole) String() string {
	return string(r)
}

// IsValid reports whether the role is one of the assignable roles
func (r StaffRole) IsValid() bool {
	for _, role := range AllStaffRoles {
		if r == role {
			return true
		}
	}
	return false
}
