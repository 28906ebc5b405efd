package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`

	group string
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

type expectedRule struct {
	group    string
	severity string
	metric   string
	runbook  string
}

var expectedRules = map[string]expectedRule{
	"PostingConsistencyFailures": {"posting", "critical", "corezen_postings_total", "#consistency-failures"},
	"PostingLatencyHigh":         {"posting", "warning", "corezen_posting_duration_seconds_bucket", "#posting-latency"},
	"StalePendingSerials":        {"posting", "warning", "corezen_stale_pending_items", "#stale-pending"},
	"JobFailuresRising":          {"jobs", "warning", "corezen_jobs_failures_total", "#job-failures"},
	"PendingSweepStalled":        {"jobs", "warning", "corezen_job_last_success_timestamp_seconds", "#job-failures"},
}

func loadAlertRules(t *testing.T) map[string]alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "corezen.yml"))
	require.NoError(t, err)
	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))

	rules := make(map[string]alertRule)
	for _, g := range spec.Groups {
		for _, r := range g.Rules {
			_, dup := rules[r.Alert]
			require.False(t, dup, "duplicate alert %s", r.Alert)
			r.group = g.Name
			rules[r.Alert] = r
		}
	}
	return rules
}

func TestAlertRulesMatchCollectors(t *testing.T) {
	rules := loadAlertRules(t)
	require.Len(t, rules, len(expectedRules))

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	require.NoError(t, err)

	for name, want := range expectedRules {
		t.Run(name, func(t *testing.T) {
			rule, ok := rules[name]
			require.True(t, ok, "missing rule")
			require.Equal(t, want.group, rule.group)
			require.Equal(t, want.severity, rule.Labels["severity"])
			require.Equal(t, "docs/runbook.md"+want.runbook, rule.Annotations["runbook"])
			require.NotEmpty(t, rule.Annotations["summary"])
			require.NotEmpty(t, rule.Annotations["description"])
			require.Contains(t, rule.Expr, want.metric)
			require.NotEmpty(t, rule.For, "rules need a hold duration")

			// anchors are the lowercased, hyphenated headings
			heading := "## " + strings.ReplaceAll(strings.TrimPrefix(want.runbook, "#"), "-", " ")
			require.Contains(t, strings.ToLower(string(runbook)), heading)
		})
	}
}
