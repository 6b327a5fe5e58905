package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/KaramelBytes/incomegap/internal/analysis"
	"github.com/KaramelBytes/incomegap/internal/hypothesis"
	"github.com/KaramelBytes/incomegap/internal/regression"
)

// rounded is the report cell format: two decimals, "nan" for NaN.
func rounded(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	return fmt.Sprintf("%.2f", f)
}

// MarkdownTable renders a pipe table.
func MarkdownTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// DescriptiveMarkdown writes the three descriptive tables, rounded to two
// decimals, each under a level-3 heading.
func DescriptiveMarkdown(w io.Writer, d *analysis.Descriptive) {
	fmt.Fprint(w, "### Overall\n\n")
	MarkdownTable(w, overallHeader, [][]string{overallRow(d.Overall, rounded)})
	fmt.Fprint(w, "\n### By gender\n\n")
	MarkdownTable(w, groupHeader("gender"), groupRows(d.ByGender, rounded))
	fmt.Fprint(w, "\n### By race\n\n")
	MarkdownTable(w, groupHeader("race"), groupRows(d.ByRace, rounded))
}

// Summary renders report/summary.md.
func Summary(rows int, d *analysis.Descriptive, tests *hypothesis.Results, model *regression.Result) []byte {
	var b strings.Builder
	pr := message.NewPrinter(language.English)

	b.WriteString("# Statistical Summary: Gender & Income Inequality\n\n")
	b.WriteString(pr.Sprintf("Total observations analyzed: **%d**\n\n", rows))
	b.WriteString("## Descriptive statistics\n\n")
	DescriptiveMarkdown(&b, d)

	b.WriteString("\n## Hypothesis tests\n\n")
	fmt.Fprintf(&b, "- Welch t-test (Male vs Female): **t=%.3f**, **p=%.4f**\n", tests.TTest.Statistic, tests.TTest.PValue)
	fmt.Fprintf(&b, "- Mann–Whitney: **U=%.3f**, **p=%.4f**\n", tests.MannWhitney.Statistic, tests.MannWhitney.PValue)

	b.WriteString("\n## Linear regression (log of income)\n\n")
	b.WriteString("Model: `log_income ~ gender + race + school_years + age + age²`\n\n")
	b.WriteString("```\n" + model.Summary() + "\n```\n")
	return []byte(b.String())
}
