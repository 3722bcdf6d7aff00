package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/dashgen/internal/agent"
	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/artifact"
	"github.com/kayz/dashgen/internal/config"
	"github.com/kayz/dashgen/internal/dataset"
	"github.com/kayz/dashgen/internal/persist"
	"github.com/kayz/dashgen/internal/promptbuild"
)

type stubGenerator struct {
	reply  string
	err    error
	calls  int
	prompt string
	table  *dataset.Table
	block  bool
}

func (s *stubGenerator) Name() string { return "stub/echo" }

func (s *stubGenerator) Generate(ctx context.Context, prompt string, table *dataset.Table) (string, error) {
	s.calls++
	s.prompt = prompt
	s.table = table
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.reply, s.err
}

type memoryHistory struct {
	runs []*persist.RunRecord
}

func (m *memoryHistory) SaveRun(r *persist.RunRecord) error {
	m.runs = append(m.runs, r)
	return nil
}

func writeSales(t *testing.T, dir string, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,region,sales\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "2024-01-%02d,north,%d\n", i+1, 100+i)
	}
	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Output.Path = filepath.Join(dir, config.DefaultOutputFile)
	cfg.PromptBuild.AuditEnabled = false
	return cfg, dir
}

func TestRunRepairsAndWrites(t *testing.T) {
	cfg, dir := testConfig(t)
	csvPath := writeSales(t, dir, 10)
	gen := &stubGenerator{reply: "```python\nimport dash\napp = dash.Dash(__name__)\n```"}
	hist := &memoryHistory{}

	p, err := New(cfg, gen, WithHistory(hist))
	require.NoError(t, err)

	res, err := p.Run(context.Background(), promptbuild.Request{
		DatasetPath:  csvPath,
		Requirements: "show sales over time",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompt, "show sales over time")
	assert.Contains(t, gen.prompt, csvPath)
	require.NotNil(t, gen.table)
	assert.Equal(t, 10, gen.table.RowCount())

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	code := string(data)
	assert.True(t, strings.HasPrefix(code, "import dash\n"))
	assert.True(t, strings.HasSuffix(code, artifact.MainTrailer))
	assert.True(t, res.Repaired)
	assert.Equal(t, 10, res.Rows)
	assert.Equal(t, len(data), res.Bytes)

	require.Len(t, hist.runs, 1)
	run := hist.runs[0]
	assert.Equal(t, persist.StatusSucceeded, run.Status)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, "stub", run.Provider)
	assert.Equal(t, "echo", run.Model)
	assert.Equal(t, promptbuild.Digest(gen.prompt), run.PromptDigest)
}

func TestRunPassesRequirementsVerbatim(t *testing.T) {
	cfg, dir := testConfig(t)
	csvPath := writeSales(t, dir, 3)
	gen := &stubGenerator{reply: "import dash\napp = dash.Dash(__name__)"}

	p, err := New(cfg, gen)
	require.NoError(t, err)

	requirements := "  show sales over time\n\t- by region  "
	_, err = p.Run(context.Background(), promptbuild.Request{DatasetPath: csvPath, Requirements: requirements})
	require.NoError(t, err)
	assert.Contains(t, gen.prompt, requirements)
}

func TestRunMissingDatasetSkipsGeneration(t *testing.T) {
	cfg, dir := testConfig(t)
	gen := &stubGenerator{reply: "import dash"}
	hist := &memoryHistory{}

	p, err := New(cfg, gen, WithHistory(hist))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), promptbuild.Request{
		DatasetPath:  filepath.Join(dir, "nope.csv"),
		Requirements: "anything",
	})
	require.Error(t, err)
	assert.Equal(t, KindDatasetNotFound, KindOf(err))
	assert.True(t, errors.Is(err, dataset.ErrNotFound))
	assert.Zero(t, gen.calls)
	assert.NoFileExists(t, cfg.Output.Path)

	require.Len(t, hist.runs, 1)
	assert.Equal(t, persist.StatusFailed, hist.runs[0].Status)
	assert.Equal(t, string(KindDatasetNotFound), hist.runs[0].ErrorKind)
}

func TestRunFailureKinds(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
		req  func(csv string) promptbuild.Request
		kind Kind
	}{
		{
			name: "blank requirements",
			gen:  &stubGenerator{reply: "import dash"},
			req:  func(csv string) promptbuild.Request { return promptbuild.Request{DatasetPath: csv, Requirements: "  "} },
			kind: KindInvalidRequest,
		},
		{
			name: "generator error",
			gen:  &stubGenerator{err: errors.New("connection reset")},
			kind: KindGenerationInvocation,
		},
		{
			name: "empty reply",
			gen:  &stubGenerator{err: agent.ErrEmptyResponse},
			kind: KindUnexpectedResponse,
		},
		{
			name: "no import marker",
			gen:  &stubGenerator{reply: "I cannot help with that."},
			kind: KindUnexpectedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, dir := testConfig(t)
			csvPath := writeSales(t, dir, 3)
			req := promptbuild.Request{DatasetPath: csvPath, Requirements: "chart it"}
			if tt.req != nil {
				req = tt.req(csvPath)
			}

			p, err := New(cfg, tt.gen)
			require.NoError(t, err)

			_, err = p.Run(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.NoFileExists(t, cfg.Output.Path)
		})
	}
}

func TestRunMalformedDataset(t *testing.T) {
	cfg, dir := testConfig(t)
	csvPath := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(csvPath, nil, 0644))
	gen := &stubGenerator{reply: "import dash"}

	p, err := New(cfg, gen)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), promptbuild.Request{DatasetPath: csvPath, Requirements: "x"})
	assert.Equal(t, KindDatasetParse, KindOf(err))
	assert.Zero(t, gen.calls)
}

func TestRunTemplateError(t *testing.T) {
	cfg, dir := testConfig(t)
	csvPath := writeSales(t, dir, 2)
	gen := &stubGenerator{reply: "import dash"}

	p, err := New(cfg, gen, WithComposer(promptbuild.NewComposerFromText("use {dataset_path} and {colour}")))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), promptbuild.Request{DatasetPath: csvPath, Requirements: "x"})
	assert.Equal(t, KindTemplateFormatting, KindOf(err))
	assert.Zero(t, gen.calls)
}

func TestRunSyntaxPolicyFail(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Validation.SyntaxCheck = config.SyntaxCheckFail
	csvPath := writeSales(t, dir, 2)
	gen := &stubGenerator{reply: "import dash\napp = dash.Dash(__name__"}

	p, err := New(cfg, gen)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), promptbuild.Request{DatasetPath: csvPath, Requirements: "x"})
	assert.Equal(t, KindSyntaxCheckFailed, KindOf(err))
	assert.NoFileExists(t, cfg.Output.Path)
}

func TestRunNoClobber(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Output.NoClobber = true
	require.NoError(t, os.WriteFile(cfg.Output.Path, []byte("old"), 0644))
	csvPath := writeSales(t, dir, 2)

	p, err := New(cfg, &stubGenerator{reply: "import dash"})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), promptbuild.Request{DatasetPath: csvPath, Requirements: "x"})
	assert.Equal(t, KindPersistence, KindOf(err))

	var pe *artifact.PersistenceError
	assert.True(t, errors.As(err, &pe))
}

func TestRunTimeout(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.AI.Timeout = 10 * time.Millisecond
	csvPath := writeSales(t, dir, 2)

	p, err := New(cfg, &stubGenerator{block: true})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), promptbuild.Request{DatasetPath: csvPath, Requirements: "x"})
	assert.Equal(t, KindGenerationInvocation, KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestBuildClassifiesErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AI.APIKey = ""
	_, err := Build(cfg, ai.DefaultRegistry())
	assert.Equal(t, KindCredentialMissing, KindOf(err))

	cfg.AI.APIKey = "k"
	cfg.AI.Provider = "nowhere"
	_, err = Build(cfg, ai.DefaultRegistry())
	assert.Equal(t, KindModelInitialization, KindOf(err))

	cfg.AI.Provider = ""
	gen, err := Build(cfg, ai.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, "gemini-openai/models/gemini-2.0-flash", gen.Name())
}

func TestNewWithoutGenerator(t *testing.T) {
	_, err := New(config.DefaultConfig(), nil)
	assert.Equal(t, KindModelInitialization, KindOf(err))
}
