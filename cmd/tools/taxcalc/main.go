// Command taxcalc prints a personal, payroll or business tax assessment.
//
//	taxcalc -kind personal -income 5000000 -rent 200000
//	taxcalc -kind payroll -salary 450000 -pension 8 -format json
//	taxcalc -kind business -revenue 50000000 -expenses 30000000
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxestimator-api/internal/calculator"
	"github.com/noah-isme/taxestimator-api/internal/tax"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "taxcalc: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("taxcalc", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		kind     = fs.String("kind", "personal", "personal (pit), payroll (paye) or business (cit)")
		format   = fs.String("format", "text", "text or json")
		rules    = fs.String("rules", os.Getenv("TAX_RULES_FILE"), "optional YAML rule file; defaults to the embedded rules")
		income   = fs.String("income", "0", "annual income (personal)")
		rent     = fs.String("rent", "0", "rent relief (personal)")
		salary   = fs.String("salary", "0", "monthly salary (payroll)")
		pension  = fs.String("pension", "", "pension rate percent (payroll); empty uses the default")
		housing  = fs.String("housing", "", "housing fund rate percent (payroll); empty uses the default")
		revenue  = fs.String("revenue", "0", "annual revenue (business)")
		expenses = fs.String("expenses", "0", "annual expenses (business)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine := tax.MustDefaultEngine()
	if strings.TrimSpace(*rules) != "" {
		loaded, err := tax.LoadEngine(*rules)
		if err != nil {
			return err
		}
		engine = loaded
	}
	k, ok := calculator.ParseKind(*kind)
	if !ok {
		return fmt.Errorf("unknown kind %q (want %s)", *kind, calculator.KindList())
	}

	var input any
	switch k {
	case calculator.KindPersonal:
		input = map[string]string{"annual_income": *income, "rent_relief": *rent}
	case calculator.KindPayroll:
		m := map[string]string{"monthly_salary": *salary}
		if *pension != "" {
			m["pension_rate_percent"] = *pension
		}
		if *housing != "" {
			m["housing_fund_rate_percent"] = *housing
		}
		input = m
	case calculator.KindBusiness:
		input = map[string]string{"annual_revenue": *revenue, "annual_expenses": *expenses}
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return err
	}
	result, err := calculator.New(engine).Compute(k, raw)
	if err != nil {
		return err
	}

	switch strings.ToLower(*format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "text":
		return renderText(out, result)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func renderText(out io.Writer, result any) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	row := func(label string, v decimal.Decimal) {
		fmt.Fprintf(tw, "%s\t%s\t\n", label, naira(v))
	}
	switch res := result.(type) {
	case tax.PersonalTaxResult:
		personalRows(tw, row, res)
	case tax.PayrollResult:
		row("Monthly salary", res.MonthlySalary)
		row("Annual salary", res.AnnualSalary)
		fmt.Fprintf(tw, "Pension rate\t%s%%\t\n", res.PensionRatePercent.StringFixed(2))
		row("Annual pension", res.AnnualPensionContribution)
		fmt.Fprintf(tw, "Housing fund rate\t%s%%\t\n", res.HousingFundRatePercent.StringFixed(2))
		row("Annual housing fund", res.AnnualHousingFundContribution)
		personalRows(tw, row, res.PersonalTaxResult)
		row("Net monthly salary", res.NetMonthlySalary)
	case tax.BusinessTaxResult:
		row("Annual revenue", res.AnnualRevenue)
		row("Annual expenses", res.AnnualExpenses)
		row("Taxable profit", res.TaxableProfit)
		fmt.Fprintf(tw, "Tier\t%s (%s%%)\t\n", res.TierLabel, res.CompanyTaxRate.Shift(2).StringFixed(0))
		row("Company tax", res.CompanyTax)
		row("Education levy", res.EducationLevy)
		row("Total tax", res.TotalTax)
		row("Net profit", res.NetProfit)
		fmt.Fprintf(tw, "Effective rate\t%s%%\t\n", res.EffectiveRatePercent.StringFixed(2))
	default:
		return errors.New("unsupported result")
	}
	return tw.Flush()
}

func personalRows(tw io.Writer, row func(string, decimal.Decimal), res tax.PersonalTaxResult) {
	row("Gross income", res.GrossIncome)
	row("Consolidated relief", res.ReliefAmount)
	row("Total relief", res.TotalRelief)
	row("Taxable income", res.TaxableIncome)
	for _, b := range res.Breakdown {
		fmt.Fprintf(tw, "  %s @ %s%%\t%s\t\n", b.Label, b.Rate.Shift(2).StringFixed(0), naira(b.Tax))
	}
	row("Computed tax", res.ComputedTax)
	row("Minimum tax", res.MinimumTax)
	label := "Final tax"
	if res.IsMinimumTaxApplied {
		label = "Final tax (minimum)"
	}
	row(label, res.FinalTax)
	row("Monthly tax", res.MonthlyTax)
	fmt.Fprintf(tw, "Effective rate\t%s%%\t\n", res.EffectiveRatePercent.StringFixed(2))
}

// naira formats v with thousands separators and two decimals.
func naira(v decimal.Decimal) string {
	s := v.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return sign + "₦" + b.String() + "." + frac
}
