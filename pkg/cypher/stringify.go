package cypher

import (
	"fmt"
	"strings"
	"time"

	"github.com/orneryd/vanirdb/pkg/auth"
)

// Render produces the canonical audit-log text for a statement. Password
// material is always redacted. The renderer is only consulted for the
// opaque command label on a plan's outermost node; no guard logic reads it.
func Render(stmt Statement) string {
	switch s := stmt.(type) {
	case CreateUser:
		var b strings.Builder
		b.WriteString("CREATE ")
		if s.IfExistsDo == IfExistsReplace {
			b.WriteString("OR REPLACE ")
		}
		b.WriteString("USER " + renderName(s.User))
		if s.IfExistsDo == IfExistsDoNothing {
			b.WriteString(" IF NOT EXISTS")
		}
		b.WriteString(" SET PASSWORD '******'")
		if !s.RequirePasswordChange {
			b.WriteString(" CHANGE NOT REQUIRED")
		}
		if s.Suspended {
			b.WriteString(" SET STATUS SUSPENDED")
		}
		return b.String()
	case DropUser:
		return "DROP USER " + renderName(s.User) + renderIfExists(s.IfExists)
	case AlterUser:
		var b strings.Builder
		b.WriteString("ALTER USER " + renderName(s.User))
		if s.Password != nil {
			b.WriteString(" SET PASSWORD '******'")
		}
		if s.RequirePasswordChange != nil {
			if *s.RequirePasswordChange {
				b.WriteString(" CHANGE REQUIRED")
			} else {
				b.WriteString(" CHANGE NOT REQUIRED")
			}
		}
		if s.Suspended != nil {
			if *s.Suspended {
				b.WriteString(" SET STATUS SUSPENDED")
			} else {
				b.WriteString(" SET STATUS ACTIVE")
			}
		}
		return b.String()
	case CreateRole:
		var b strings.Builder
		b.WriteString("CREATE ")
		if s.IfExistsDo == IfExistsReplace {
			b.WriteString("OR REPLACE ")
		}
		b.WriteString("ROLE " + renderName(s.Role))
		if s.IfExistsDo == IfExistsDoNothing {
			b.WriteString(" IF NOT EXISTS")
		}
		if s.CopyOf != nil {
			b.WriteString(" AS COPY OF " + renderName(*s.CopyOf))
		}
		return b.String()
	case DropRole:
		return "DROP ROLE " + renderName(s.Role) + renderIfExists(s.IfExists)
	case GrantRolesToUsers:
		return "GRANT ROLE " + renderNames(s.Roles) + " TO " + renderNames(s.Users)
	case RevokeRolesFromUsers:
		return "REVOKE ROLE " + renderNames(s.Roles) + " FROM " + renderNames(s.Users)
	case GrantPrivilege:
		return "GRANT " + renderPrivilege(s.Action.String(), s.Level, s.Scope, s.Qualifier, s.Resource) + " TO " + strings.Join(s.Roles, ", ")
	case DenyPrivilege:
		return "DENY " + renderPrivilege(s.Action.String(), s.Level, s.Scope, s.Qualifier, s.Resource) + " TO " + strings.Join(s.Roles, ", ")
	case RevokePrivilege:
		verb := "REVOKE "
		switch s.RevokeType {
		case auth.RevokeGrant:
			verb = "REVOKE GRANT "
		case auth.RevokeDeny:
			verb = "REVOKE DENY "
		}
		return verb + renderPrivilege(s.Action.String(), s.Level, s.Scope, s.Qualifier, s.Resource) + " FROM " + strings.Join(s.Roles, ", ")
	case CreateDatabase:
		var b strings.Builder
		b.WriteString("CREATE ")
		if s.IfExistsDo == IfExistsReplace {
			b.WriteString("OR REPLACE ")
		}
		b.WriteString("DATABASE " + renderName(s.Database))
		if s.IfExistsDo == IfExistsDoNothing {
			b.WriteString(" IF NOT EXISTS")
		}
		b.WriteString(renderWait(s.Wait))
		return b.String()
	case DropDatabase:
		return "DROP DATABASE " + renderName(s.Database) + renderIfExists(s.IfExists) + renderWait(s.Wait)
	case StartDatabase:
		return "START DATABASE " + renderName(s.Database) + renderWait(s.Wait)
	case StopDatabase:
		return "STOP DATABASE " + renderName(s.Database) + renderWait(s.Wait)
	case ShowUsers:
		return "SHOW USERS"
	case ShowRoles:
		return "SHOW ROLES"
	case ShowPrivileges:
		if s.Role != "" {
			return "SHOW PRIVILEGES FOR " + s.Role
		}
		return "SHOW PRIVILEGES"
	case ShowDatabases:
		return "SHOW DATABASES"
	case RawQuery:
		return s.Original
	}
	return fmt.Sprintf("%T", stmt)
}

func renderName(n NameOrParam) string {
	if n.IsParam() {
		return "$" + n.Param
	}
	return n.Name
}

func renderNames(names []NameOrParam) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = renderName(n)
	}
	return strings.Join(parts, ", ")
}

func renderIfExists(ifExists bool) string {
	if ifExists {
		return " IF EXISTS"
	}
	return ""
}

func renderWait(w Wait) string {
	if !w.Enabled {
		return ""
	}
	if w.Timeout != DefaultWaitTimeout {
		return fmt.Sprintf(" WAIT %d SECONDS", int(w.Timeout/time.Second))
	}
	return " WAIT"
}

func renderPrivilege(action string, level ScopeLevel, scope, qualifier, resource keyer) string {
	var b strings.Builder
	b.WriteString(action)
	if r := resource.Key(); r != "graph" && r != "" {
		b.WriteString(" {" + r + "}")
	}
	b.WriteString(" ON " + level.String())
	if level != DBMSLevel {
		b.WriteString(" " + scope.Key())
	}
	if q := qualifier.Key(); q != "all" {
		b.WriteString(" " + q)
	}
	return b.String()
}

type keyer interface{ Key() string }
