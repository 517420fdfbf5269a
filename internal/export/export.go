// Package export renders filtered contact and entity data to the bulk
// output formats: csv, json, xlsx, and vcard. CSV and JSON carry the
// same fields in the same order so downstream consumers can switch
// formats without remapping.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/store"
)

// Format names a supported output format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
	FormatVCard Format = "vcard"
)

// ParseFormat validates a user-supplied format name. "excel" is accepted
// as an alias for xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "vcard", "vcf":
		return FormatVCard, nil
	}
	return "", eris.Errorf("export: unsupported format %q", s)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatVCard:
		return "text/vcard"
	default:
		return "text/csv"
	}
}

// Extension returns the file extension, without the dot.
func (f Format) Extension() string {
	if f == FormatVCard {
		return "vcf"
	}
	return string(f)
}

// contactColumns is the shared column set of the contact master exports.
// CSV header order and JSON key order both follow it.
var contactColumns = []string{
	"contact_id", "name", "title", "email", "phone", "contact_type",
	"source", "source_type",
	"department_name", "jurisdiction_name", "government_level",
	"website", "validation_status", "created_at",
}

func contactValues(row store.ContactRow) []string {
	return []string{
		fmt.Sprintf("%d", row.ID),
		row.Name,
		row.Title,
		row.Email,
		row.Phone,
		string(row.Type),
		row.Level,
		sourceType(row),
		row.DepartmentName,
		row.JurisdictionName,
		row.Level,
		row.Website,
		string(row.ValidationStatus),
		row.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// sourceType carries the department category as record provenance;
// uncategorized departments fall back to the generic site type.
func sourceType(row store.ContactRow) string {
	if row.DepartmentCategory != "" {
		return row.DepartmentCategory
	}
	return "government"
}

// Contacts writes rows to w in the requested format.
func Contacts(w io.Writer, format Format, rows []store.ContactRow) error {
	switch format {
	case FormatCSV:
		return ContactsCSV(w, rows)
	case FormatJSON:
		return ContactsJSON(w, rows)
	case FormatXLSX:
		return ContactsXLSX(w, rows)
	case FormatVCard:
		return ContactsVCard(w, rows)
	}
	return eris.Errorf("export: unsupported format %q", format)
}

// ContactsCSV writes the contact master CSV: one header row, one data
// row per contact.
func ContactsCSV(w io.Writer, rows []store.ContactRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(contactColumns); err != nil {
		return eris.Wrap(err, "export: csv header")
	}
	for _, row := range rows {
		if err := cw.Write(contactValues(row)); err != nil {
			return eris.Wrap(err, "export: csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: csv flush")
}

// ContactsJSON writes the same fields as the CSV export as an array of
// objects keyed by the CSV column names.
func ContactsJSON(w io.Writer, rows []store.ContactRow) error {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		values := contactValues(row)
		obj := make(map[string]string, len(contactColumns))
		for i, col := range contactColumns {
			obj[col] = values[i]
		}
		out = append(out, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(out), "export: json encode")
}

// ContactsXLSX writes a single-sheet workbook with the CSV columns.
func ContactsXLSX(w io.Writer, rows []store.ContactRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Contacts")
	if err != nil {
		return eris.Wrap(err, "export: xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range contactColumns {
		header.AddCell().SetString(col)
	}
	for _, row := range rows {
		xr := sheet.AddRow()
		for _, v := range contactValues(row) {
			xr.AddCell().SetString(v)
		}
	}
	return eris.Wrap(f.Write(w), "export: xlsx write")
}

// ContactsVCard writes one vCard 3.0 entry per contact. Contacts with
// neither a personal name nor a department name are skipped; a contact
// without its own name borrows the department's.
func ContactsVCard(w io.Writer, rows []store.ContactRow) error {
	var b strings.Builder
	for _, row := range rows {
		name := row.Name
		if name == "" {
			name = row.DepartmentName
		}
		if name == "" {
			continue
		}
		b.WriteString("BEGIN:VCARD\r\n")
		b.WriteString("VERSION:3.0\r\n")
		b.WriteString("FN:" + vcardEscape(name) + "\r\n")
		b.WriteString("ORG:" + vcardEscape(row.JurisdictionName) + ";" + vcardEscape(row.DepartmentName) + "\r\n")
		if row.Title != "" {
			b.WriteString("TITLE:" + vcardEscape(row.Title) + "\r\n")
		}
		if row.Email != "" {
			b.WriteString("EMAIL;TYPE=WORK:" + row.Email + "\r\n")
		}
		if row.Phone != "" {
			b.WriteString("TEL;TYPE=WORK,VOICE:" + row.Phone + "\r\n")
		}
		if row.Website != "" {
			b.WriteString("URL:" + row.Website + "\r\n")
		}
		b.WriteString("END:VCARD\r\n")
	}
	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "export: vcard write")
}

func vcardEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

// recordColumns is the column set of entity-list snapshots written after
// an index scrape.
var recordColumns = []string{"agency_name", "homepage_url", "parent_department", "section"}

// RecordsCSV writes an extracted entity list as CSV. The columns round-
// trip through ingest.LoadCSV unchanged.
func RecordsCSV(w io.Writer, records []model.AgencyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordColumns); err != nil {
		return eris.Wrap(err, "export: records csv header")
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.Name, rec.URL, rec.ParentDepartment, rec.Section}); err != nil {
			return eris.Wrap(err, "export: records csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: records csv flush")
}

// RecordsJSON writes an extracted entity list as a JSON array.
func RecordsJSON(w io.Writer, records []model.AgencyRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(records), "export: records json encode")
}
