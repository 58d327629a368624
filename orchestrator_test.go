package main

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTree = map[string]string{
	"table_index.md": `# Tables

| Table | Category | Description |
|-------|----------|-------------|
| users | core | Accounts |
| posts | content | Posts |
| orders | sales | Orders |
`,
	"er_graph.yaml": `tables:
  users: ~
  posts:
    - name: fk_posts_user
      columns: [user_id]
      references: {table: users, columns: [id]}
      on_delete: CASCADE
`,
	"ddl/users.sql": `CREATE TABLE users (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  tenant_id BIGINT UNSIGNED NOT NULL,
  email VARCHAR(255) NOT NULL,
  PRIMARY KEY (id),
  KEY idx_users_tenant (tenant_id)
);
`,
	"ddl/posts.sql": `CREATE TABLE posts (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  tenant_id BIGINT UNSIGNED NOT NULL,
  user_id BIGINT UNSIGNED NOT NULL,
  PRIMARY KEY (id),
  KEY idx_posts_tenant (tenant_id),
  KEY idx_posts_user (user_id),
  CONSTRAINT fk_posts_user FOREIGN KEY (user_id) REFERENCES users (id)
);
`,
	"ddl/broken.sql": "CREATE TABLE broken (id INT\n",
	"details/users.yaml": `table_name: users
columns:
  - {name: id, data_type: bigint unsigned, nullable: false, primary_key: true, auto_increment: true}
  - {name: tenant_id, data_type: bigint unsigned, nullable: false}
  - {name: email, data_type: varchar(100)}
indexes:
  - {name: idx_users_tenant, columns: [tenant_id]}
`,
}

func newTestOrchestrator(t *testing.T, files map[string]string) (*Orchestrator, *int) {
	t.Helper()
	dir := t.TempDir()
	writeTree(t, dir, files)

	cfg := defaultCheckConfig()
	cfg.Root = dir
	cfg.Workers = 4
	require.NoError(t, cfg.validate())

	o := newOrchestrator(&cfg, defaultRegistry())
	o.logf = t.Logf
	o.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	loads := new(int)
	o.load = func(ctx context.Context, cfg *CheckConfig) (*SourceSet, error) {
		*loads++
		return loadSources(ctx, cfg)
	}
	return o, loads
}

func TestRunAll(t *testing.T) {
	o, _ := newTestOrchestrator(t, sampleTree)

	var mu sync.Mutex
	var lastDone, lastTotal int
	o.onProgress = func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if done > lastDone {
			lastDone = done
		}
		lastTotal = total
	}

	report, err := o.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, phaseDone, o.Phase())

	assert.Equal(t, []string{"users", "posts", "orders"}, report.Tables)
	assert.Equal(t, 3, report.TotalTables)
	// nine per-table checks over three tables, plus the global orphan check
	assert.Equal(t, 28, report.TotalChecks)
	assert.Equal(t, 28, lastDone)
	assert.Equal(t, 28, lastTotal)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2026, report.CheckDate.Year())

	assert.True(t, sort.SliceIsSorted(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.TableName != b.TableName {
			return a.TableName < b.TableName
		}
		return a.CheckName < b.CheckName
	}), "findings are in canonical order")

	total := 0
	for _, n := range report.Summary {
		total += n
	}
	assert.Equal(t, len(report.Findings), total)
	assert.Len(t, report.Summary, 4)

	parse := findingsOf(report.FindingsFor("broken"), checkParse, SeverityError)
	require.Len(t, parse, 1)
	assert.Equal(t, filepath.Join(o.cfg.resolvePath("ddl"), "broken.sql"), parse[0].Details["file"])
	orphans := findingsOf(report.FindingsFor("broken"), checkOrphanedFiles, SeverityWarning)
	assert.Len(t, orphans, 1)

	fk := findingsOf(report.FindingsFor("posts"), checkForeignKeyConsistency, SeverityError)
	require.Len(t, fk, 1)
	assert.Equal(t, "on_delete", fk[0].Details["mismatches"])

	email := findingsOf(report.FindingsFor("users"), checkColumnConsistency, SeverityError)
	require.Len(t, email, 1)
	assert.Equal(t, "type,nullable", email[0].Details["mismatches"])

	assert.Equal(t, SeverityWarning, report.TableStatus("orders"))
	assert.Equal(t, SeverityError, report.TableStatus("users"))

	require.NotEmpty(t, report.Fixes)
	assert.True(t, report.Fixes[0].Critical)
	for i := 1; i < len(report.Fixes); i++ {
		assert.LessOrEqual(t, fixTier(report.Fixes[i-1]), fixTier(report.Fixes[i]), "fixes are ordered by tier")
	}
}

func TestRunAll_Idempotent(t *testing.T) {
	o, loads := newTestOrchestrator(t, sampleTree)

	first, err := o.RunAll(context.Background())
	require.NoError(t, err)
	second, err := o.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, *loads, "RunAll always reloads sources")
	assert.Equal(t, first.Findings, second.Findings)
	assert.Equal(t, first.Fixes, second.Fixes)
	assert.Equal(t, first.Summary, second.Summary)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunSpecificChecks(t *testing.T) {
	o, loads := newTestOrchestrator(t, sampleTree)

	_, err := o.RunAll(context.Background())
	require.NoError(t, err)

	report, err := o.RunSpecificChecks(context.Background(), []string{checkColumnConsistency})
	require.NoError(t, err)
	assert.Equal(t, 1, *loads, "sources are reused between runs")
	assert.Equal(t, []string{checkColumnConsistency}, report.Checks)
	assert.Equal(t, 3, report.TotalChecks)
	assert.Empty(t, report.Fixes, "fix suggestions only run when requested")

	for _, f := range report.Findings {
		assert.Contains(t, []string{checkColumnConsistency, checkParse}, f.CheckName)
	}

	report, err = o.RunSpecificChecks(context.Background(), []string{checkTableExistence, checkFixSuggestions})
	require.NoError(t, err)
	assert.NotEmpty(t, report.Fixes)
}

func TestRunSpecificChecks_ConfigurationErrorsBeforeLoading(t *testing.T) {
	o, loads := newTestOrchestrator(t, sampleTree)

	_, err := o.RunSpecificChecks(context.Background(), []string{"column_consistency", "no_such_check"})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"no_such_check"}, cfgErr.Unknown)

	_, err = o.RunSpecificChecks(context.Background(), nil)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "no checks requested", cfgErr.Reason)

	assert.Zero(t, *loads, "no source is read for a bad request")
	assert.Equal(t, phaseIdle, o.Phase())
}

func TestRunAll_TableSubset(t *testing.T) {
	o, _ := newTestOrchestrator(t, sampleTree)
	o.cfg.Tables = []string{"posts", "POSTS", "broken"}

	report, err := o.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "broken"}, report.Tables)
	assert.Equal(t, 19, report.TotalChecks)

	o.cfg.Tables = []string{"posts", "ghost"}
	_, err = o.RunAll(context.Background())
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"ghost"}, cfgErr.Unknown)
}

func TestRunAll_MissingSourcesAreFindings(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]string{"README": "empty"})

	report, err := o.RunAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Tables)

	parse := findingsOf(report.Findings, checkParse, SeverityError)
	require.Len(t, parse, 4, "index, ER graph, DDL dir and details dir are each reported")
	for _, f := range parse {
		assert.Empty(t, f.TableName)
	}
	assert.True(t, report.HasErrors())
}

func TestRunAll_CanceledBeforeStart(t *testing.T) {
	o, _ := newTestOrchestrator(t, sampleTree)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.RunAll(ctx)
	assert.Nil(t, report)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotEqual(t, phaseDone, o.Phase())
}

func TestRunAll_CanceledWhileRunning(t *testing.T) {
	o, _ := newTestOrchestrator(t, sampleTree)
	o.cfg.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.onProgress = func(done, total int) {
		if done == 1 {
			cancel()
		}
	}

	report, err := o.RunAll(ctx)
	assert.Nil(t, report, "partial results are discarded")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunPhaseString(t *testing.T) {
	assert.Equal(t, "RUNNING_CHECKS", phaseRunningChecks.String())
	assert.Equal(t, "runPhase(9)", runPhase(9).String())
}
