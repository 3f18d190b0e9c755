package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	pretty "github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// render writes v in the selected output format. text renders the human
// form; when nil, text falls back to JSON.
func (a *app) render(v any, text func(w io.Writer) error) error {
	w := a.opts.Stdout
	switch a.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return writeYAML(w, v)
	}
	if text == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

// writeYAML renders v through its JSON form so field names match the JSON
// output and the API.
func writeYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return err
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle clears the flow style inherited from the JSON source.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// table writes rows aligned in columns. Without a header the rows are
// label/value pairs and the column rule is left out.
func table(w io.Writer, header []string, rows [][]string) error {
	t := pretty.NewWriter()
	if len(header) > 0 {
		t.AppendHeader(row(header))
	}
	for _, r := range rows {
		t.AppendRow(row(r))
	}
	style := pretty.StyleLight
	style.Options.DrawBorder = false
	if len(header) == 0 {
		style.Options.SeparateColumns = false
	}
	t.SetStyle(style)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func row(cols []string) pretty.Row {
	r := make(pretty.Row, len(cols))
	for i, c := range cols {
		r[i] = c
	}
	return r
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
