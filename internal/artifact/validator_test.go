package artifact

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/dashgen/internal/config"
)

const script = `import dash
from dash import dcc, html
import pandas as pd

df = pd.read_csv(r'/data/sales.csv')
app = dash.Dash(__name__)
app.layout = html.Div([html.H1("Sales")])

if __name__ == '__main__':
    app.run(debug=True)`

func TestValidateKeepsCompleteScript(t *testing.T) {
	a, err := NewValidator(config.SyntaxCheckOff).ValidateAndRepair(script)
	require.NoError(t, err)
	assert.False(t, a.Repaired)
	assert.Equal(t, script+"\n", a.Code)
}

func TestValidateStripsFenceAndLabel(t *testing.T) {
	raw := "\n```python\n" + script + "\n```\n  "
	a, err := NewValidator("").ValidateAndRepair(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.Code, "import dash\n"), "got %q", a.Code[:20])
	assert.NotContains(t, a.Code, "`")
}

func TestValidateAppendsMainGuard(t *testing.T) {
	body := "import dash\napp = dash.Dash(__name__)"
	a, err := NewValidator("").ValidateAndRepair("```" + body + "```")
	require.NoError(t, err)

	assert.True(t, a.Repaired)
	assert.True(t, strings.HasPrefix(a.Code, body), "existing code is untouched")
	assert.True(t, strings.HasSuffix(a.Code, "    app.run(debug=True)\n"))
	assert.Equal(t, 1, strings.Count(a.Code, MainGuard))
	assert.Contains(t, a.Code, "# --- Main execution block ---")
}

func TestValidateIsIdempotent(t *testing.T) {
	v := NewValidator("")
	for _, raw := range []string{
		"python\nimport dash\nx = 1",
		"```python\n" + script + "\n```",
		script,
	} {
		first, err := v.ValidateAndRepair(raw)
		require.NoError(t, err)
		second, err := v.ValidateAndRepair(first.Code)
		require.NoError(t, err)
		assert.Equal(t, first.Code, second.Code)
		assert.False(t, second.Repaired)
	}
}

func TestValidateRejectsMissingImport(t *testing.T) {
	long := strings.Repeat("x", 2000) + " if __name__ == '__main__':"
	for _, raw := range []string{"", "print('hello')", "import plotly\n" + long} {
		_, err := NewValidator("").ValidateAndRepair(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnexpectedShape))

		var se *ShapeError
		require.True(t, errors.As(err, &se))
		assert.LessOrEqual(t, len([]rune(se.Preview)), 500)
	}
}

func TestCleanLeavesIdentifiersStartingWithLabel(t *testing.T) {
	assert.Equal(t, "python_version = 3\nimport dash", Clean("python_version = 3\nimport dash"))
	assert.Equal(t, "import dash", Clean("``` python   \n\timport dash ```"))
	assert.Equal(t, "", Clean("```python```"))
}

type rejectAll struct{}

func (rejectAll) Check(string) error { return errors.New("nope") }

func TestSyntaxPolicy(t *testing.T) {
	broken := "import dash\napp = dash.Dash(__name__\n"

	a, err := NewValidator(config.SyntaxCheckOff).ValidateAndRepair(broken)
	require.NoError(t, err)
	assert.Empty(t, a.Warnings)

	a, err = NewValidator(config.SyntaxCheckWarn).ValidateAndRepair(broken)
	require.NoError(t, err)
	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], "line ")

	_, err = NewValidator(config.SyntaxCheckFail).ValidateAndRepair(broken)
	assert.True(t, errors.Is(err, ErrSyntax))

	_, err = NewValidator(config.SyntaxCheckFail, WithSyntaxChecker(rejectAll{})).ValidateAndRepair(script)
	assert.True(t, errors.Is(err, ErrSyntax))

	_, err = NewValidator(config.SyntaxCheckFail).ValidateAndRepair(script)
	assert.NoError(t, err)
}

func TestPythonCheckerRejectsInvalidScripts(t *testing.T) {
	for name, code := range map[string]string{
		"doubled assignment": "import dash\napp = = dash.Dash(__name__)\n",
		"missing colon":      "import dash\nif True\n    x = 1\n",
		"bad parameters":     "import dash\ndef f(:)\n    pass\n",
		"unclosed call":      "import dash\napp = dash.Dash(__name__\n",
	} {
		_, err := NewValidator(config.SyntaxCheckFail).ValidateAndRepair(code)
		assert.True(t, errors.Is(err, ErrSyntax), "%s: got %v", name, err)
	}
}

func TestPythonCheckerReportsLine(t *testing.T) {
	err := PythonChecker{}.Check("import dash\n\napp = = dash.Dash(__name__)\n")
	var issue *SyntaxIssue
	require.True(t, errors.As(err, &issue), "got %v", err)
	assert.Equal(t, 3, issue.Line)

	assert.NoError(t, PythonChecker{}.Check(script+MainTrailer))
}
