package adminplan

import (
	"time"

	"github.com/orneryd/vanirdb/pkg/auth"
	"github.com/orneryd/vanirdb/pkg/cypher"
)

// createDatabase builds: guard, blocked check, capacity check, existence
// handling, mutation. WAIT is recorded for the outermost wrapper.
func (b *builder) createDatabase(s cypher.CreateDatabase) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.Database)
	if err != nil {
		return nil, err
	}
	var chain *PlanNode
	switch s.IfExistsDo {
	case cypher.IfExistsReplace:
		chain = b.guard(auth.ActionDropDatabase, auth.ActionCreateDatabase)
		chain = b.assertNotBlocked(chain, name)
		chain = b.node(chain, KindEnsureDatabaseLimit, map[string]any{"database": name})
		chain = b.node(chain, KindDropDatabase, map[string]any{"database": name, "ignoreAbsent": true})
	case cypher.IfExistsDoNothing:
		chain = b.guard(auth.ActionCreateDatabase)
		chain = b.assertNotBlocked(chain, name)
		chain = b.node(chain, KindEnsureDatabaseLimit, map[string]any{"database": name})
		chain = b.doNothingIfExists(chain, "Database", name)
	default:
		chain = b.guard(auth.ActionCreateDatabase)
		chain = b.assertNotBlocked(chain, name)
		chain = b.node(chain, KindEnsureDatabaseLimit, map[string]any{"database": name})
	}
	chain = b.node(chain, KindCreateDatabase, map[string]any{"database": name})
	b.recordWait(name, s.Wait)
	return chain, nil
}

func (b *builder) dropDatabase(s cypher.DropDatabase) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.Database)
	if err != nil {
		return nil, err
	}
	chain := b.guard(auth.ActionDropDatabase)
	chain = b.assertNotBlocked(chain, name)
	chain = b.node(chain, KindEnsureNonSystemDatabase, map[string]any{"database": name, "operation": "drop"})
	if s.IfExists {
		chain = b.doNothingIfNotExists(chain, "Database", name)
	} else {
		chain = b.ensureExists(chain, "Database", name)
	}
	chain = b.node(chain, KindDropDatabase, map[string]any{"database": name})
	b.recordWait(name, s.Wait)
	return chain, nil
}

func (b *builder) startDatabase(s cypher.StartDatabase) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.Database)
	if err != nil {
		return nil, err
	}
	chain := b.guard(auth.ActionStartDatabase)
	chain = b.assertNotBlocked(chain, name)
	chain = b.ensureExists(chain, "Database", name)
	chain = b.node(chain, KindStartDatabase, map[string]any{"database": name})
	b.recordWait(name, s.Wait)
	return chain, nil
}

func (b *builder) stopDatabase(s cypher.StopDatabase) (*PlanNode, error) {
	name, err := b.ctx.resolve(s.Database)
	if err != nil {
		return nil, err
	}
	chain := b.guard(auth.ActionStopDatabase)
	chain = b.assertNotBlocked(chain, name)
	chain = b.node(chain, KindEnsureNonSystemDatabase, map[string]any{"database": name, "operation": "stop"})
	chain = b.ensureExists(chain, "Database", name)
	chain = b.node(chain, KindStopDatabase, map[string]any{"database": name})
	b.recordWait(name, s.Wait)
	return chain, nil
}

func (b *builder) assertNotBlocked(source *PlanNode, database string) *PlanNode {
	return b.node(source, KindAssertNotBlocked, map[string]any{"database": database})
}

// recordWait remembers a WAIT modifier so BuildPlan can wrap the finished
// chain. The wait node must sit outside every other node, command logging
// included, because it observes the effect of the whole chain.
func (b *builder) recordWait(database string, w cypher.Wait) {
	if !w.Enabled {
		return
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = cypher.DefaultWaitTimeout
	}
	b.wait = &waitSpec{database: database, timeout: timeout}
}

type waitSpec struct {
	database string
	timeout  time.Duration
}
