package exporters

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/clinicmgr/clinic/internal/database/patients"
	"github.com/clinicmgr/clinic/internal/entities"
)

// utf8BOM lets spreadsheet applications detect the encoding of Arabic names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const timestampLayout = "2006-01-02 15:04"

var (
	patientHeader   = []string{"Code", "First Name", "Last Name", "Gender", "Date of Birth", "Phone", "National ID", "Blood Type", "Address", "Registered", "Active"}
	visitHeader     = []string{"Day", "Queue #", "Patient Code", "Patient", "Type", "Status", "Chief Complaint", "Diagnosis", "Fee", "Paid"}
	invoiceHeader   = []string{"Number", "Date", "Patient Code", "Patient", "Type", "Total", "Discount", "Net", "Paid", "Remaining", "Status"}
	inventoryHeader = []string{"Code", "Name", "Category", "Unit", "Quantity", "Minimum Stock", "Unit Price", "Stock Value", "Expiry Date", "Supplier", "Low Stock"}
	debtHeader      = []string{"Patient Code", "Patient", "Phone", "Unpaid Invoices", "Total Debt"}
)

// writeCSV writes the BOM, header and rows. It returns the number of data rows.
func writeCSV(w io.Writer, header []string, rows [][]string) (int, error) {
	if _, err := w.Write(utf8BOM); err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, err
	}
	if err := cw.WriteAll(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func WritePatientsCSV(w io.Writer, list []entities.Patient) (int, error) {
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, []string{
			p.Code, p.FirstName, p.LastName, string(p.Gender), formatDate(time.Time(p.DateOfBirth)),
			p.Phone, p.NationalID, p.BloodType, p.Address,
			formatDate(p.RegistrationDate), strconv.FormatBool(p.IsActive),
		})
	}
	return writeCSV(w, patientHeader, rows)
}

func WriteVisitsCSV(w io.Writer, list []entities.Visit) (int, error) {
	rows := make([][]string, 0, len(list))
	for _, v := range list {
		code, name := patientCells(v.Patient)
		rows = append(rows, []string{
			v.QueueDay, strconv.Itoa(v.QueueNumber), code, name, string(v.VisitType), string(v.Status),
			v.ChiefComplaint, v.Diagnosis, v.ExaminationFee.StringFixed(2), strconv.FormatBool(v.IsPaid),
		})
	}
	return writeCSV(w, visitHeader, rows)
}

func WriteInvoicesCSV(w io.Writer, list []entities.Invoice) (int, error) {
	rows := make([][]string, 0, len(list))
	for _, inv := range list {
		code, name := patientCells(inv.Patient)
		rows = append(rows, []string{
			inv.Number, inv.InvoiceDay, code, name, inv.InvoiceType,
			inv.TotalAmount.StringFixed(2), inv.DiscountAmount.StringFixed(2), inv.NetAmount.StringFixed(2),
			inv.PaidAmount.StringFixed(2), inv.RemainingAmount.StringFixed(2), string(inv.PaymentStatus),
		})
	}
	return writeCSV(w, invoiceHeader, rows)
}

func WriteInventoryCSV(w io.Writer, list []entities.InventoryItem) (int, error) {
	rows := make([][]string, 0, len(list))
	for _, item := range list {
		expiry := ""
		if item.ExpiryDate != nil {
			expiry = formatDate(*item.ExpiryDate)
		}
		rows = append(rows, []string{
			item.Code, item.Name, item.Category, item.Unit, strconv.Itoa(item.Quantity), strconv.Itoa(item.MinimumStock),
			item.UnitPrice.StringFixed(2), item.StockValue().StringFixed(2), expiry, item.SupplierName,
			strconv.FormatBool(item.IsLowStock()),
		})
	}
	return writeCSV(w, inventoryHeader, rows)
}

func WriteDebtsCSV(w io.Writer, list []patients.PatientDebt) (int, error) {
	rows := make([][]string, 0, len(list))
	for _, d := range list {
		rows = append(rows, []string{
			d.Patient.Code, d.Patient.FullName(), d.Patient.Phone,
			strconv.Itoa(d.InvoiceCount), d.TotalDebt.StringFixed(2),
		})
	}
	return writeCSV(w, debtHeader, rows)
}

// Patients writes a patients CSV into the export directory.
func (e *Exporter) Patients(list []entities.Patient) (ExportResult, error) {
	return e.writeFile(e.FileName(KindPatients), func(w io.Writer) (int, error) {
		return WritePatientsCSV(w, list)
	})
}

func (e *Exporter) Visits(list []entities.Visit) (ExportResult, error) {
	return e.writeFile(e.FileName(KindVisits), func(w io.Writer) (int, error) {
		return WriteVisitsCSV(w, list)
	})
}

func (e *Exporter) Invoices(list []entities.Invoice) (ExportResult, error) {
	return e.writeFile(e.FileName(KindInvoices), func(w io.Writer) (int, error) {
		return WriteInvoicesCSV(w, list)
	})
}

func (e *Exporter) Inventory(list []entities.InventoryItem) (ExportResult, error) {
	return e.writeFile(e.FileName(KindInventory), func(w io.Writer) (int, error) {
		return WriteInventoryCSV(w, list)
	})
}

func (e *Exporter) Debts(list []patients.PatientDebt) (ExportResult, error) {
	return e.writeFile(e.FileName(KindDebts), func(w io.Writer) (int, error) {
		return WriteDebtsCSV(w, list)
	})
}

func patientCells(p *entities.Patient) (string, string) {
	if p == nil {
		return "", ""
	}
	return p.Code, p.FullName()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(entities.DayLayout)
}
