package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// Data is the set of values a prompt template can reference.
type Data struct {
	Topic            string
	Side             string
	OpponentSide     string
	OpponentArgument string
	DebateHistory    string
	DataContext      string
}

// Template is a parsed prompt template.
type Template struct {
	name string
	tmpl *template.Template
}

// Parse parses text as a named prompt template.
func Parse(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// MustParse is like Parse but panics on error. It is meant for the
// built-in templates.
func MustParse(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.name
}

// Render executes the template with data.
func (t *Template) Render(data Data) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", t.name, err)
	}
	return buf.String(), nil
}

const openingText = `Trading Decision: {{.Topic}}

You are arguing the {{.Side}} side.

Available Data:
{{.DataContext}}

Give your opening statement explaining why this is a good opportunity to {{.Side | lower}}.
Keep it concise and persuasive, and ground every claim in the data above.
`

const counterText = `Trading Decision: {{.Topic}}

Your opponent ({{.OpponentSide}} side) just argued:
"{{.OpponentArgument}}"

The debate so far:
{{.DebateHistory}}

Available Data:
{{.DataContext}}

As the {{.Side}} side, answer your opponent's key points directly and reinforce your position with the available data.
Keep the tone formal and data-driven.
`

const rebuttalText = `Trading Decision: {{.Topic}}

Your opponent ({{.OpponentSide}} side) just argued:
"{{.OpponentArgument}}"

The debate so far:
{{.DebateHistory}}

Available Data:
{{.DataContext}}

As the {{.Side}} side, rebut their argument.
Point out where their reading of the data is incomplete and make the case for your position.
`

const finalArgumentText = `Trading Decision: {{.Topic}}

The debate so far:
{{.DebateHistory}}

Available Data:
{{.DataContext}}

This is your closing statement as the {{.Side}} side.
Summarise your strongest data-backed points and address what remains of your opponent's case.
`

const judgeText = `Trading Decision: {{.Topic}}

Full debate transcript:
{{.DebateHistory}}

ORIGINAL CONTEXT (For Fact-Checking):
{{.DataContext}}

Assess how both analysts, BUY and SELL, performed.
Weigh data interpretation, logical reasoning, argument structure and persuasiveness, and how faithfully each used the available data.

Decide which analyst made the better case and explain why.
Do not summarise the debate. Make a judgment.
`

// Built-in templates.
var (
	Opening       = MustParse("opening", openingText)
	Counter       = MustParse("counter", counterText)
	Rebuttal      = MustParse("rebuttal", rebuttalText)
	FinalArgument = MustParse("final_argument", finalArgumentText)
	Judge         = MustParse("judge", judgeText)
)
