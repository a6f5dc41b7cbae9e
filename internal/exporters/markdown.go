package exporters

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/reports"
	"github.com/clinicmgr/clinic/internal/settingsstore"
	"github.com/clinicmgr/clinic/internal/utils"
)

// GenerateReceipt renders one invoice as a printable Markdown receipt.
func GenerateReceipt(inv *entities.Invoice, profile settingsstore.ClinicProfile) string {
	var b strings.Builder

	writeClinicHeader(&b, profile)

	fmt.Fprintf(&b, "## Receipt %s\n\n", inv.Number)
	fmt.Fprintf(&b, "- **Date:** %s\n", inv.InvoiceDay)
	if inv.Patient != nil {
		fmt.Fprintf(&b, "- **Patient:** %s (%s)\n", escapeMarkdown(inv.Patient.FullName()), inv.Patient.Code)
	}
	if inv.InvoiceType != "" {
		fmt.Fprintf(&b, "- **Type:** %s\n", inv.InvoiceType)
	}
	fmt.Fprintf(&b, "- **Status:** %s\n\n", inv.PaymentStatus)

	if len(inv.Items) > 0 {
		b.WriteString("### Items\n\n")
		b.WriteString("| Description | Qty | Unit price | Total |\n")
		b.WriteString("|---|---:|---:|---:|\n")
		for _, item := range inv.Items {
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n",
				escapeMarkdown(item.Description), item.Quantity, money(item.UnitPrice, profile), money(item.TotalPrice, profile))
		}
		b.WriteString("\n")
	}

	if len(inv.Payments) > 0 {
		b.WriteString("### Payments\n\n")
		b.WriteString("| Date | Method | Reference | Amount |\n")
		b.WriteString("|---|---|---|---:|\n")
		for _, p := range inv.Payments {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				p.PaymentDate.Format(timestampLayout), p.Method, escapeMarkdown(p.Reference), money(p.Amount, profile))
		}
		b.WriteString("\n")
	}

	b.WriteString("### Totals\n\n")
	fmt.Fprintf(&b, "| Total | %s |\n", money(inv.TotalAmount, profile))
	b.WriteString("|---|---:|\n")
	if inv.DiscountAmount.IsPositive() {
		fmt.Fprintf(&b, "| Discount | -%s |\n", money(inv.DiscountAmount, profile))
	}
	fmt.Fprintf(&b, "| Net | %s |\n", money(inv.NetAmount, profile))
	fmt.Fprintf(&b, "| Paid | %s |\n", money(inv.PaidAmount, profile))
	fmt.Fprintf(&b, "| **Remaining** | **%s** |\n", money(inv.RemainingAmount, profile))

	if inv.Notes != "" {
		fmt.Fprintf(&b, "\n> %s\n", strings.ReplaceAll(inv.Notes, "\n", "\n> "))
	}

	return b.String()
}

// GenerateMonthlyReport renders the month summary as Markdown.
func GenerateMonthlyReport(rep *reports.MonthlyReport, profile settingsstore.ClinicProfile) string {
	var b strings.Builder

	writeClinicHeader(&b, profile)

	fmt.Fprintf(&b, "## Monthly report: %s %d\n\n", rep.Month, rep.Year)
	fmt.Fprintf(&b, "Period %s to %s.\n\n", rep.From, rep.To)

	b.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Visits | %d |\n", rep.Visits)
	fmt.Fprintf(&b, "| New patients | %d |\n", rep.NewPatients)
	fmt.Fprintf(&b, "| Invoices issued | %d |\n", rep.InvoicesIssued)
	fmt.Fprintf(&b, "| Invoiced | %s |\n", money(rep.InvoicedAmount, profile))
	fmt.Fprintf(&b, "| Discounts | %s |\n", money(rep.Discounts, profile))
	fmt.Fprintf(&b, "| Revenue | %s |\n", money(rep.Revenue, profile))
	fmt.Fprintf(&b, "| Outstanding debts | %s |\n\n", money(rep.OutstandingDebts, profile))

	if len(rep.VisitTypes) > 0 {
		b.WriteString("### Visits by type\n\n| Type | Visits |\n|---|---:|\n")
		for _, k := range sortedKeys(rep.VisitTypes) {
			fmt.Fprintf(&b, "| %s | %d |\n", k, rep.VisitTypes[k])
		}
		b.WriteString("\n")
	}

	if len(rep.RevenueByType) > 0 {
		b.WriteString("### Revenue by invoice type\n\n| Type | Paid |\n|---|---:|\n")
		for _, k := range sortedKeys(rep.RevenueByType) {
			label := k
			if label == "" {
				label = "other"
			}
			fmt.Fprintf(&b, "| %s | %s |\n", label, money(rep.RevenueByType[k], profile))
		}
		b.WriteString("\n")
	}

	if len(rep.DailyRevenue) > 0 {
		b.WriteString("### Daily revenue\n\n| Day | Amount |\n|---|---:|\n")
		for _, d := range rep.DailyRevenue {
			fmt.Fprintf(&b, "| %s | %s |\n", d.Day, money(d.Amount, profile))
		}
	}

	return b.String()
}

// Receipt writes the invoice receipt into the export directory.
func (e *Exporter) Receipt(inv *entities.Invoice, profile settingsstore.ClinicProfile) (ExportResult, error) {
	name := utils.ExportFilename(string(KindReceipt)+" "+inv.Number, e.now(), KindReceipt.Ext())
	return e.writeFile(name, func(w io.Writer) (int, error) {
		_, err := io.WriteString(w, GenerateReceipt(inv, profile))
		return len(inv.Items), err
	})
}

func (e *Exporter) MonthlyReport(rep *reports.MonthlyReport, profile settingsstore.ClinicProfile) (ExportResult, error) {
	return e.writeFile(e.FileName(KindMonthlyReport), func(w io.Writer) (int, error) {
		_, err := io.WriteString(w, GenerateMonthlyReport(rep, profile))
		return len(rep.DailyRevenue), err
	})
}

func writeClinicHeader(b *strings.Builder, profile settingsstore.ClinicProfile) {
	name := profile.Name
	if name == "" {
		name = "Clinic"
	}
	fmt.Fprintf(b, "# %s\n\n", escapeMarkdown(name))

	var contact []string
	for _, s := range []string{profile.Address, profile.Phone, profile.Email} {
		if s != "" {
			contact = append(contact, escapeMarkdown(s))
		}
	}
	if len(contact) > 0 {
		fmt.Fprintf(b, "%s\n\n", strings.Join(contact, " · "))
	}
	fmt.Fprintf(b, "_Generated %s_\n\n", time.Now().Format(timestampLayout))
}

func money(d decimal.Decimal, profile settingsstore.ClinicProfile) string {
	if profile.Currency == "" {
		return d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + profile.Currency
}

// escapeMarkdown keeps user text from breaking table cells.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
