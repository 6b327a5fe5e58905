package regression

import (
	"fmt"
	"math"
	"strings"
)

const summaryWidth = 78

// Summary renders the fitted model as a fixed-width text table: fit
// statistics, the coefficient table and residual diagnostics.
func (r *Result) Summary() string {
	var b strings.Builder
	rule := strings.Repeat("=", summaryWidth) + "\n"
	thin := strings.Repeat("-", summaryWidth) + "\n"

	b.WriteString(center("OLS Regression Results", summaryWidth) + "\n")
	b.WriteString(rule)
	left := [][2]string{
		{"Dep. Variable:", Response},
		{"Model:", "OLS"},
		{"Method:", "Least Squares"},
		{"No. Observations:", fmt.Sprintf("%d", r.NObs)},
		{"Df Residuals:", fmt.Sprintf("%d", r.DFResid)},
		{"Df Model:", fmt.Sprintf("%d", r.DFModel)},
		{"Covariance Type:", CovType},
	}
	right := [][2]string{
		{"R-squared:", num(r.RSquared, 3)},
		{"Adj. R-squared:", num(r.AdjRSquared, 3)},
		{"F-statistic:", num(r.FStatistic, 2)},
		{"Prob (F-statistic):", sci(r.FPValue)},
		{"Log-Likelihood:", num(r.LogLikelihood, 2)},
		{"AIC:", num(r.AIC, 1)},
		{"BIC:", num(r.BIC, 1)},
	}
	writePairs(&b, left, right)
	b.WriteString(rule)

	fmt.Fprintf(&b, "%-16s %10s %10s %10s %8s %10s %10s\n", "", "coef", "std err", "z", "P>|z|", "[0.025", "0.975]")
	b.WriteString(thin)
	for _, c := range r.Coefficients {
		fmt.Fprintf(&b, "%-16s %10s %10s %10s %8s %10s %10s\n",
			c.Name, num(c.Estimate, 4), num(c.StdErr, 4), num(c.Z, 3), num(c.PValue, 3), num(c.CILow, 3), num(c.CIHigh, 3))
	}
	b.WriteString(rule)
	writePairs(&b,
		[][2]string{
			{"Durbin-Watson:", num(r.DurbinWatson, 3)},
			{"Skew:", num(r.Skew, 3)},
			{"Kurtosis:", num(r.Kurtosis, 3)},
		},
		[][2]string{
			{"Jarque-Bera (JB):", num(r.JarqueBera, 3)},
			{"Prob(JB):", sci(r.JBPValue)},
			{"Cond. No.", sci(r.CondNo)},
		})
	b.WriteString(rule)
	b.WriteString("Notes:\n")
	b.WriteString("[1] Standard Errors are heteroscedasticity robust (" + CovType + ")")
	if r.Dropped > 0 {
		fmt.Fprintf(&b, "\n[2] %d rows with missing values were dropped before fitting", r.Dropped)
	}
	return b.String()
}

func writePairs(b *strings.Builder, left, right [][2]string) {
	half := summaryWidth / 2
	for i := 0; i < len(left) || i < len(right); i++ {
		var l, r string
		if i < len(left) {
			l = pad(left[i], half-1)
		} else {
			l = strings.Repeat(" ", half-1)
		}
		if i < len(right) {
			r = pad(right[i], half-1)
		}
		b.WriteString(l + "  " + strings.TrimRight(r, " ") + "\n")
	}
}

// pad left-aligns the label and right-aligns the value within width.
func pad(kv [2]string, width int) string {
	gap := width - len(kv[0]) - len(kv[1])
	if gap < 1 {
		gap = 1
	}
	return kv[0] + strings.Repeat(" ", gap) + kv[1]
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", (width-len(s))/2) + s
}

func num(f float64, prec int) string {
	if math.IsNaN(f) {
		return "nan"
	}
	if math.IsInf(f, 0) {
		if f > 0 {
			return "inf"
		}
		return "-inf"
	}
	return fmt.Sprintf("%.*f", prec, f)
}

func sci(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return num(f, 0)
	}
	return fmt.Sprintf("%.3g", f)
}
