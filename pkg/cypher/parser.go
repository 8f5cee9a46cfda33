// Package cypher - administration command parser.
//
// Parse recognizes the administration command grammar (user, role,
// privilege, and database management). Anything else is reduced to a
// RawQuery carrying its top-level clause shapes for the restricted
// procedure-call check.
package cypher

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/orneryd/vanirdb/pkg/auth"
)

type parser struct {
	tokens []token
	pos    int
	input  string
}

// Parse parses one statement. Malformed administration commands return an
// error; statements that are not administration commands at all return a
// RawQuery and no error.
func Parse(query string) (Statement, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, input: query}

	switch p.peekUpper() {
	case "CREATE":
		if stmt, err, handled := p.parseCreate(); handled {
			return stmt, err
		}
	case "DROP":
		if stmt, err, handled := p.parseDrop(); handled {
			return stmt, err
		}
	case "ALTER":
		if p.peekUpperAt(1) == "USER" {
			return p.parseAlterUser()
		}
	case "SHOW":
		if stmt, err, handled := p.parseShow(); handled {
			return stmt, err
		}
	case "GRANT", "DENY", "REVOKE":
		return p.parsePrivilegeCommand()
	case "START", "STOP":
		if p.peekUpperAt(1) == "DATABASE" {
			return p.parseStartStopDatabase()
		}
	}
	return p.rawQuery()
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekUpper() string {
	return p.tokens[p.pos].upper()
}

func (p *parser) peekUpperAt(offset int) string {
	return p.peekAt(offset).upper()
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// accept consumes the next token when it matches the keyword.
func (p *parser) accept(keyword string) bool {
	if p.peekUpper() == keyword && p.peek().kind == tokWord {
		p.pos++
		return true
	}
	return false
}

// acceptSeq consumes a run of keywords atomically. Only bare words match;
// a quoted string never satisfies a keyword position.
func (p *parser) acceptSeq(keywords ...string) bool {
	for i, kw := range keywords {
		t := p.peekAt(i)
		if t.kind != tokWord || t.upper() != kw {
			return false
		}
	}
	p.pos += len(keywords)
	return true
}

func (p *parser) expect(keyword string) error {
	if !p.accept(keyword) {
		t := p.peek()
		return fmt.Errorf("expected %s at line %d, column %d, got %q", keyword, t.pos.Line, t.pos.Column, t.text)
	}
	return nil
}

// name parses an identifier or parameter.
func (p *parser) name(what string) (NameOrParam, error) {
	t := p.peek()
	switch t.kind {
	case tokWord, tokString:
		p.pos++
		return Lit(t.text), nil
	case tokParam:
		p.pos++
		return Param(t.text), nil
	}
	return NameOrParam{}, fmt.Errorf("expected %s at line %d, column %d", what, t.pos.Line, t.pos.Column)
}

// passwordValue parses a quoted password literal or a parameter. Bare
// words are rejected so a password is never mistaken for a keyword.
func (p *parser) passwordValue() (NameOrParam, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.pos++
		return Lit(t.text), nil
	case tokParam:
		p.pos++
		return Param(t.text), nil
	}
	return NameOrParam{}, fmt.Errorf("expected password literal or parameter at line %d, column %d", t.pos.Line, t.pos.Column)
}

// nameList parses a comma-separated list of names or parameters.
func (p *parser) nameList(what string) ([]NameOrParam, error) {
	var out []NameOrParam
	for {
		n, err := p.name(what)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		if !p.acceptPunct(",") {
			return out, nil
		}
	}
}

func (p *parser) acceptPunct(s string) bool {
	t := p.peek()
	if t.kind == tokPunct && t.text == s {
		p.pos++
		return true
	}
	return false
}

func (p *parser) atEOF() bool {
	return p.peek().kind == tokEOF
}

func (p *parser) expectEOF() error {
	if !p.atEOF() {
		t := p.peek()
		return fmt.Errorf("unexpected trailing input at line %d, column %d: %q", t.pos.Line, t.pos.Column, t.text)
	}
	return nil
}

// --- CREATE ---

func (p *parser) parseCreate() (Statement, error, bool) {
	start := p.pos
	p.accept("CREATE")
	orReplace := p.acceptSeq("OR", "REPLACE")

	switch p.peekUpper() {
	case "USER":
		stmt, err := p.parseCreateUser(orReplace)
		return stmt, err, true
	case "ROLE":
		stmt, err := p.parseCreateRole(orReplace)
		return stmt, err, true
	case "DATABASE":
		stmt, err := p.parseCreateDatabase(orReplace)
		return stmt, err, true
	}
	// CREATE (n:Label) and friends: not an administration command.
	p.pos = start
	return nil, nil, false
}

func (p *parser) parseCreateUser(orReplace bool) (Statement, error) {
	p.accept("USER")
	user, err := p.name("user name")
	if err != nil {
		return nil, err
	}
	stmt := CreateUser{User: user, RequirePasswordChange: true}
	stmt.IfExistsDo, err = p.ifExistsDo(orReplace)
	if err != nil {
		return nil, err
	}
	if !p.acceptSeq("SET", "PASSWORD") {
		return nil, fmt.Errorf("CREATE USER requires SET PASSWORD")
	}
	stmt.Password, err = p.passwordValue()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptSeq("CHANGE", "NOT", "REQUIRED"):
			stmt.RequirePasswordChange = false
		case p.acceptSeq("CHANGE", "REQUIRED"):
			stmt.RequirePasswordChange = true
		case p.acceptSeq("SET", "STATUS", "SUSPENDED"):
			stmt.Suspended = true
		case p.acceptSeq("SET", "STATUS", "ACTIVE"):
			stmt.Suspended = false
		default:
			if err := p.expectEOF(); err != nil {
				return nil, err
			}
			return stmt, nil
		}
	}
}

func (p *parser) parseCreateRole(orReplace bool) (Statement, error) {
	p.accept("ROLE")
	role, err := p.name("role name")
	if err != nil {
		return nil, err
	}
	stmt := CreateRole{Role: role}
	stmt.IfExistsDo, err = p.ifExistsDo(orReplace)
	if err != nil {
		return nil, err
	}
	if p.acceptSeq("AS", "COPY", "OF") {
		from, err := p.name("source role name")
		if err != nil {
			return nil, err
		}
		stmt.CopyOf = &from
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseCreateDatabase(orReplace bool) (Statement, error) {
	p.accept("DATABASE")
	db, err := p.name("database name")
	if err != nil {
		return nil, err
	}
	stmt := CreateDatabase{Database: db}
	stmt.IfExistsDo, err = p.ifExistsDo(orReplace)
	if err != nil {
		return nil, err
	}
	stmt.Wait, err = p.waitClause()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) ifExistsDo(orReplace bool) (IfExistsDo, error) {
	ifNotExists := p.acceptSeq("IF", "NOT", "EXISTS")
	if orReplace && ifNotExists {
		return IfExistsThrowError, fmt.Errorf("cannot combine OR REPLACE with IF NOT EXISTS")
	}
	if orReplace {
		return IfExistsReplace, nil
	}
	if ifNotExists {
		return IfExistsDoNothing, nil
	}
	return IfExistsThrowError, nil
}

// --- DROP ---

func (p *parser) parseDrop() (Statement, error, bool) {
	start := p.pos
	p.accept("DROP")
	kind := p.peekUpper()
	if kind != "USER" && kind != "ROLE" && kind != "DATABASE" {
		p.pos = start
		return nil, nil, false
	}
	p.pos++
	name, err := p.name(strings.ToLower(kind) + " name")
	if err != nil {
		return nil, err, true
	}
	ifExists := p.acceptSeq("IF", "EXISTS")
	switch kind {
	case "USER":
		err = p.expectEOF()
		return DropUser{User: name, IfExists: ifExists}, err, true
	case "ROLE":
		err = p.expectEOF()
		return DropRole{Role: name, IfExists: ifExists}, err, true
	default:
		wait, err := p.waitClause()
		if err != nil {
			return nil, err, true
		}
		err = p.expectEOF()
		return DropDatabase{Database: name, IfExists: ifExists, Wait: wait}, err, true
	}
}

// --- ALTER USER ---

func (p *parser) parseAlterUser() (Statement, error) {
	p.accept("ALTER")
	p.accept("USER")
	user, err := p.name("user name")
	if err != nil {
		return nil, err
	}
	stmt := AlterUser{User: user}
	for {
		switch {
		case p.acceptSeq("SET", "PASSWORD"):
			pw, err := p.passwordValue()
			if err != nil {
				return nil, err
			}
			stmt.Password = &pw
		case p.acceptSeq("CHANGE", "NOT", "REQUIRED"):
			v := false
			stmt.RequirePasswordChange = &v
		case p.acceptSeq("CHANGE", "REQUIRED"):
			v := true
			stmt.RequirePasswordChange = &v
		case p.acceptSeq("SET", "STATUS", "SUSPENDED"):
			v := true
			stmt.Suspended = &v
		case p.acceptSeq("SET", "STATUS", "ACTIVE"):
			v := false
			stmt.Suspended = &v
		default:
			if stmt.Password == nil && stmt.RequirePasswordChange == nil && stmt.Suspended == nil {
				return nil, fmt.Errorf("ALTER USER requires at least one SET clause")
			}
			if err := p.expectEOF(); err != nil {
				return nil, err
			}
			return stmt, nil
		}
	}
}

// --- SHOW ---

func (p *parser) parseShow() (Statement, error, bool) {
	start := p.pos
	p.accept("SHOW")
	switch {
	case p.accept("USERS"):
		return ShowUsers{}, p.expectEOF(), true
	case p.accept("ROLES"):
		return ShowRoles{}, p.expectEOF(), true
	case p.accept("DATABASES"):
		return ShowDatabases{}, p.expectEOF(), true
	case p.accept("PRIVILEGES"):
		stmt := ShowPrivileges{}
		if p.accept("FOR") {
			role, err := p.name("role name")
			if err != nil {
				return nil, err, true
			}
			stmt.Role = role.Name
		}
		return stmt, p.expectEOF(), true
	}
	p.pos = start
	return nil, nil, false
}

// --- GRANT / DENY / REVOKE ---

// Multi-word administration action forms, longest match first.
var adminActionForms = []struct {
	words  []string
	action auth.Action
}{
	{[]string{"CREATE", "USER"}, auth.ActionCreateUser},
	{[]string{"DROP", "USER"}, auth.ActionDropUser},
	{[]string{"ALTER", "USER"}, auth.ActionAlterUser},
	{[]string{"SET", "PASSWORDS"}, auth.ActionSetPasswords},
	{[]string{"SET", "USER", "STATUS"}, auth.ActionSetUserStatus},
	{[]string{"SHOW", "USER"}, auth.ActionShowUser},
	{[]string{"CREATE", "ROLE"}, auth.ActionCreateRole},
	{[]string{"DROP", "ROLE"}, auth.ActionDropRole},
	{[]string{"ASSIGN", "ROLE"}, auth.ActionAssignRole},
	{[]string{"REMOVE", "ROLE"}, auth.ActionRemoveRole},
	{[]string{"SHOW", "ROLE"}, auth.ActionShowRole},
	{[]string{"ASSIGN", "PRIVILEGE"}, auth.ActionAssignPrivilege},
	{[]string{"REMOVE", "PRIVILEGE"}, auth.ActionRemovePrivilege},
	{[]string{"SHOW", "PRIVILEGE"}, auth.ActionShowPrivilege},
	{[]string{"CREATE", "DATABASE"}, auth.ActionCreateDatabase},
	{[]string{"DROP", "DATABASE"}, auth.ActionDropDatabase},
	{[]string{"START", "DATABASE"}, auth.ActionStartDatabase},
	{[]string{"STOP", "DATABASE"}, auth.ActionStopDatabase},
	{[]string{"SHOW", "DATABASE"}, auth.ActionShowDatabase},
	{[]string{"ACCESS"}, auth.ActionAccess},
	{[]string{"TRAVERSE"}, auth.ActionTraverse},
	{[]string{"READ"}, auth.ActionRead},
	{[]string{"MATCH"}, auth.ActionMatch},
	{[]string{"WRITE"}, auth.ActionWrite},
}

func (p *parser) parsePrivilegeCommand() (Statement, error) {
	verb := p.next().upper() // GRANT, DENY, or REVOKE

	if verb == "GRANT" && p.accept("ROLE") {
		return p.parseGrantRoles()
	}
	revokeType := auth.RevokeBoth
	if verb == "REVOKE" {
		switch {
		case p.accept("GRANT"):
			revokeType = auth.RevokeGrant
		case p.accept("DENY"):
			revokeType = auth.RevokeDeny
		}
		if p.accept("ROLE") {
			return p.parseRevokeRoles()
		}
	}

	action, ok := p.privilegeAction()
	if !ok {
		t := p.peek()
		return nil, fmt.Errorf("unknown privilege action at line %d, column %d: %q", t.pos.Line, t.pos.Column, t.text)
	}

	resource, err := p.resourceSpec()
	if err != nil {
		return nil, err
	}

	if err := p.expect("ON"); err != nil {
		return nil, err
	}
	level, scope, err := p.scopeSpec()
	if err != nil {
		return nil, err
	}

	qualifier := auth.AllQualifier()
	if p.accept("NODES") {
		qualifier, err = p.labelQualifier()
		if err != nil {
			return nil, err
		}
	}

	terminator := "TO"
	if verb == "REVOKE" {
		terminator = "FROM"
	}
	if err := p.expect(terminator); err != nil {
		return nil, err
	}
	roleNames, err := p.nameList("role name")
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	roles := make([]string, len(roleNames))
	for i, r := range roleNames {
		roles[i] = r.Name
	}

	switch verb {
	case "GRANT":
		return GrantPrivilege{Level: level, Action: action, Scope: scope, Qualifier: qualifier, Resource: resource, Roles: roles}, nil
	case "DENY":
		return DenyPrivilege{Level: level, Action: action, Scope: scope, Qualifier: qualifier, Resource: resource, Roles: roles}, nil
	default:
		return RevokePrivilege{Level: level, Action: action, Scope: scope, Qualifier: qualifier, Resource: resource, Roles: roles, RevokeType: revokeType}, nil
	}
}

func (p *parser) privilegeAction() (auth.Action, bool) {
	for _, form := range adminActionForms {
		if p.acceptSeq(form.words...) {
			return form.action, true
		}
	}
	return "", false
}

// resourceSpec parses an optional {prop1, prop2} or {*} property resource.
func (p *parser) resourceSpec() (auth.Resource, error) {
	if !p.acceptPunct("{") {
		return auth.Resource{Kind: "graph"}, nil
	}
	if p.acceptPunct("*") {
		if !p.acceptPunct("}") {
			return auth.Resource{}, fmt.Errorf("expected } after *")
		}
		return auth.AllPropertiesResource(), nil
	}
	var props []string
	for {
		t := p.next()
		if t.kind != tokWord {
			return auth.Resource{}, fmt.Errorf("expected property name at line %d, column %d", t.pos.Line, t.pos.Column)
		}
		props = append(props, t.text)
		if p.acceptPunct("}") {
			return auth.PropertyResource(props...), nil
		}
		if !p.acceptPunct(",") {
			return auth.Resource{}, fmt.Errorf("expected , or } in property resource")
		}
	}
}

func (p *parser) scopeSpec() (ScopeLevel, auth.Scope, error) {
	switch {
	case p.accept("DBMS"):
		return DBMSLevel, auth.Scope{}, nil
	case p.accept("DATABASES"), p.accept("DATABASE"):
		scope, err := p.scopeNames()
		return DatabaseLevel, scope, err
	case p.accept("GRAPHS"), p.accept("GRAPH"):
		scope, err := p.scopeNames()
		return GraphLevel, scope, err
	}
	t := p.peek()
	return 0, auth.Scope{}, fmt.Errorf("expected DBMS, DATABASE or GRAPH at line %d, column %d", t.pos.Line, t.pos.Column)
}

func (p *parser) scopeNames() (auth.Scope, error) {
	if p.acceptPunct("*") {
		return auth.AllScope(), nil
	}
	names, err := p.nameList("database or graph name")
	if err != nil {
		return auth.Scope{}, err
	}
	literals := make([]string, len(names))
	for i, n := range names {
		literals[i] = n.Name
	}
	return auth.NamedScope(literals...), nil
}

func (p *parser) labelQualifier() (auth.Qualifier, error) {
	if p.acceptPunct("*") {
		return auth.AllQualifier(), nil
	}
	names, err := p.nameList("label name")
	if err != nil {
		return auth.Qualifier{}, err
	}
	labels := make([]string, len(names))
	for i, n := range names {
		labels[i] = n.Name
	}
	return auth.LabelQualifier(labels...), nil
}

func (p *parser) parseGrantRoles() (Statement, error) {
	roles, err := p.nameList("role name")
	if err != nil {
		return nil, err
	}
	if err := p.expect("TO"); err != nil {
		return nil, err
	}
	users, err := p.nameList("user name")
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return GrantRolesToUsers{Roles: roles, Users: users}, nil
}

func (p *parser) parseRevokeRoles() (Statement, error) {
	roles, err := p.nameList("role name")
	if err != nil {
		return nil, err
	}
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	users, err := p.nameList("user name")
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return RevokeRolesFromUsers{Roles: roles, Users: users}, nil
}

// --- START / STOP DATABASE ---

func (p *parser) parseStartStopDatabase() (Statement, error) {
	verb := p.next().upper()
	p.accept("DATABASE")
	db, err := p.name("database name")
	if err != nil {
		return nil, err
	}
	wait, err := p.waitClause()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	if verb == "START" {
		return StartDatabase{Database: db, Wait: wait}, nil
	}
	return StopDatabase{Database: db, Wait: wait}, nil
}

func (p *parser) waitClause() (Wait, error) {
	switch {
	case p.accept("NOWAIT"):
		return NoWait, nil
	case p.accept("WAIT"):
		wait := Wait{Enabled: true, Timeout: DefaultWaitTimeout}
		t := p.peek()
		if t.kind == tokWord {
			if seconds, err := strconv.Atoi(t.text); err == nil {
				p.pos++
				wait.Timeout = time.Duration(seconds) * time.Second
				p.accept("SECONDS")
				p.accept("SECOND")
				p.accept("SEC")
			}
		}
		return wait, nil
	}
	return NoWait, nil
}

// --- raw query fallback ---

// Top-level clause keywords recognized by the coarse scan.
var clauseKeywords = map[string]string{
	"MATCH":   "MATCH",
	"MERGE":   "MERGE",
	"CREATE":  "CREATE",
	"DELETE":  "DELETE",
	"DETACH":  "DELETE",
	"SET":     "SET",
	"REMOVE":  "REMOVE",
	"WITH":    "WITH",
	"UNWIND":  "UNWIND",
	"FOREACH": "FOREACH",
	"LOAD":    "LOAD CSV",
	"CALL":    "CALL",
	"RETURN":  "RETURN",
}

// rawQuery reduces the statement to its top-level clause shapes.
func (p *parser) rawQuery() (Statement, error) {
	raw := RawQuery{Original: strings.TrimSpace(p.input)}
	p.pos = 0
	for !p.atEOF() {
		t := p.peek()
		name, isClause := clauseKeywords[t.upper()]
		if !isClause || t.kind != tokWord {
			p.pos++
			continue
		}
		switch name {
		case "CALL":
			raw.Clauses = append(raw.Clauses, p.callClause())
		case "RETURN":
			raw.Clauses = append(raw.Clauses, p.returnClause())
		default:
			raw.Clauses = append(raw.Clauses, GenericClause{Name: name, Pos: t.pos})
			p.pos++
		}
	}
	return raw, nil
}

func (p *parser) callClause() CallClause {
	clause := CallClause{Pos: p.peek().pos}
	p.pos++ // CALL
	if t := p.peek(); t.kind == tokWord {
		clause.Procedure = t.text
		p.pos++
	}
	if p.acceptPunct("(") {
		depth := 1
		var current strings.Builder
		flush := func() {
			arg := strings.TrimSpace(current.String())
			if arg != "" {
				clause.Arguments = append(clause.Arguments, arg)
			}
			current.Reset()
		}
		for depth > 0 && !p.atEOF() {
			t := p.next()
			switch {
			case t.kind == tokPunct && t.text == "(":
				depth++
				current.WriteString(t.text)
			case t.kind == tokPunct && t.text == ")":
				depth--
				if depth > 0 {
					current.WriteString(t.text)
				}
			case t.kind == tokPunct && t.text == "," && depth == 1:
				flush()
			case t.kind == tokString:
				current.WriteString("'" + t.text + "'")
			case t.kind == tokParam:
				current.WriteString("$" + t.text)
			default:
				current.WriteString(t.text)
			}
		}
		flush()
	}
	if p.accept("YIELD") {
		for {
			t := p.peek()
			if t.kind != tokWord {
				break
			}
			clause.Yields = append(clause.Yields, t.text)
			p.pos++
			if !p.acceptPunct(",") {
				break
			}
		}
	}
	return clause
}

func (p *parser) returnClause() ReturnClause {
	clause := ReturnClause{Pos: p.peek().pos}
	p.pos++ // RETURN
	var current strings.Builder
	flush := func() {
		item := strings.TrimSpace(current.String())
		if item != "" {
			clause.Items = append(clause.Items, item)
		}
		current.Reset()
	}
	for !p.atEOF() {
		t := p.peek()
		if t.kind == tokWord {
			if _, isClause := clauseKeywords[t.upper()]; isClause {
				break
			}
		}
		p.pos++
		if t.kind == tokPunct && t.text == "," {
			flush()
			continue
		}
		current.WriteString(t.text)
	}
	flush()
	return clause
}
