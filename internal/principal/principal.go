// AngelaMos | 2026
// principal.go

package principal

type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

type UserRole string

const (
	UserRoleBuyer        UserRole = "buyer"
	UserRoleStoreAdmin   UserRole = "store-admin"
	UserRoleFactoryAdmin UserRole = "factory-admin"
	UserRoleAdmin        UserRole = "admin"
)

var userRoles = []UserRole{
	UserRoleBuyer,
	UserRoleStoreAdmin,
	UserRoleFactoryAdmin,
	UserRoleAdmin,
}

type AdminRole string

const (
	AdminRoleSuper   AdminRole = "superAdmin"
	AdminRoleAnalyst AdminRole = "analystAdmin"
	AdminRoleFactory AdminRole = "factoryAdmin"
	AdminRoleStore   AdminRole = "storeAdmin"
	AdminRoleBuyer   AdminRole = "buyerAdmin"
)

var adminRoles = []AdminRole{
	AdminRoleSuper,
	AdminRoleAnalyst,
	AdminRoleFactory,
	AdminRoleStore,
	AdminRoleBuyer,
}

const (
	DefaultUserRole  = UserRoleBuyer
	DefaultAdminRole = AdminRoleSuper
)

// Principal is implemented only by User and Admin.
type Principal interface {
	PrincipalID() string
	Kind() Kind
	RoleName() string
	EmailAddress() string
	sealed()
}

type User struct {
	ID       string
	Email    string
	Username string
	Role     UserRole
}

func (u User) PrincipalID() string  { return u.ID }
func (u User) Kind() Kind           { return KindUser }
func (u User) RoleName() string     { return string(u.Role) }
func (u User) EmailAddress() string { return u.Email }
func (User) sealed()                {}

type Admin struct {
	ID    string
	Email string
	Role  AdminRole
}

func (a Admin) PrincipalID() string  { return a.ID }
func (a Admin) Kind() Kind           { return KindAdmin }
func (a Admin) RoleName() string     { return string(a.Role) }
func (a Admin) EmailAddress() string { return a.Email }
func (Admin) sealed()                {}

func ParseUserRole(s string) (UserRole, bool) {
	for _, r := range userRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

func ParseAdminRole(s string) (AdminRole, bool) {
	for _, r := range adminRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// UserRoleNames and AdminRoleNames feed role gates that accept any role of
// one kind.
func UserRoleNames() []string {
	names := make([]string, 0, len(userRoles))
	for _, r := range userRoles {
		names = append(names, string(r))
	}
	return names
}

func AdminRoleNames() []string {
	names := make([]string, 0, len(adminRoles))
	for _, r := range adminRoles {
		names = append(names, string(r))
	}
	return names
}

func (k Kind) Valid() bool {
	return k == KindUser || k == KindAdmin
}

// Plural is the path segment used for the kind, as in /auth/users.
func (k Kind) Plural() string {
	return string(k) + "s"
}
