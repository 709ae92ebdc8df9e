package pipeline

import (
	"fmt"
	"strings"
)

// Output is the aggregated outcome of a batch, immutable after
// construction. Results keep the order the resolver emitted units in:
// ascending page number within a file, file-argument order across files.
type Output struct {
	Results       []UnitResult `json:"results"`
	PageSeparated bool         `json:"page_separated"`
}

// Aggregate collects unit results into an Output. The input slice is
// copied so later mutation by the caller cannot leak in.
func Aggregate(results []UnitResult, pageSeparated bool) *Output {
	copied := make([]UnitResult, len(results))
	copy(copied, results)
	return &Output{Results: copied, PageSeparated: pageSeparated}
}

// Failed reports whether any unit in the batch errored.
func (o *Output) Failed() bool {
	for _, u := range o.Results {
		if u.Failed() {
			return true
		}
	}
	return false
}

// Render formats the aggregated text. Without page separation the unit
// texts are joined with single newlines; with it, each unit becomes a
// "Page N:" block and blocks are joined with blank lines. Inputs spanning
// multiple files get a header line per file. Rendering the same Output
// twice yields byte-identical strings.
func (o *Output) Render() string {
	groups, order := o.groupByInput()
	multiFile := len(order) > 1

	fileBlocks := make([]string, 0, len(order))
	for _, input := range order {
		units := groups[input]
		var b strings.Builder
		if multiFile {
			b.WriteString("--- " + input + " ---\n")
		}
		if o.PageSeparated {
			blocks := make([]string, 0, len(units))
			for _, u := range units {
				blocks = append(blocks, fmt.Sprintf("Page %d:\n%s", u.Page, unitText(u)))
			}
			b.WriteString(strings.Join(blocks, "\n\n"))
		} else {
			lines := make([]string, 0, len(units))
			for _, u := range units {
				lines = append(lines, unitText(u))
			}
			b.WriteString(strings.Join(lines, "\n"))
		}
		fileBlocks = append(fileBlocks, b.String())
	}
	return strings.Join(fileBlocks, "\n\n")
}

func unitText(u UnitResult) string {
	if u.Failed() {
		return "Error: " + u.Error
	}
	return u.Text
}

func (o *Output) groupByInput() (map[string][]UnitResult, []string) {
	groups := make(map[string][]UnitResult)
	var order []string
	for _, u := range o.Results {
		if _, seen := groups[u.Input]; !seen {
			order = append(order, u.Input)
		}
		groups[u.Input] = append(groups[u.Input], u)
	}
	return groups, order
}
