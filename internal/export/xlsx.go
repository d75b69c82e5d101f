package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contract-cli/internal/model"
)

// Sheet names in the review workbook, in order.
const (
	SheetSummary     = "Summary"
	SheetFields      = "Fields"
	SheetAmendments  = "Amendments"
	SheetConflicts   = "Conflicts"
	SheetValidations = "Validations"
)

// WriteXLSX writes res as a review workbook.
func WriteXLSX(w io.Writer, res *model.PipelineResult) error {
	f, err := buildWorkbook(res)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

// SaveXLSX writes res as a review workbook at path.
func SaveXLSX(path string, res *model.PipelineResult) error {
	f, err := buildWorkbook(res)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func buildWorkbook(res *model.PipelineResult) (*xlsx.File, error) {
	if res == nil {
		return nil, eris.New("xlsx: nil result")
	}
	f := xlsx.NewFile()

	summary, err := addSheet(f, SheetSummary, "Key", "Value")
	if err != nil {
		return nil, err
	}
	addRow(summary, "File", res.FileName)
	addRow(summary, "Document Type", string(res.Classification.DocumentType))
	addRow(summary, "Classification Confidence", res.Classification.Confidence)
	addRow(summary, "Overall Confidence", res.OverallConfidence)
	addRow(summary, "Requires Review", res.RequiresReview)
	addRow(summary, "Review Reasons", strings.Join(res.ReviewReasons, "; "))
	addRow(summary, "Fields", res.FieldCount())
	addRow(summary, "Amendments", len(res.Amendments.Amendments))
	addRow(summary, "Conflicts", len(res.Conflicts))
	addRow(summary, "Input Tokens", res.Usage.InputTokens)
	addRow(summary, "Output Tokens", res.Usage.OutputTokens)
	addRow(summary, "Cost (USD)", res.Usage.Cost)
	for _, d := range res.Diagnostics {
		addRow(summary, "Diagnostic: "+d.Stage, d.Kind+": "+d.Message)
	}

	fields, err := addSheet(f, SheetFields, "Category", "Name", "Label", "Type", "Value", "Confidence", "Page", "Source Quote")
	if err != nil {
		return nil, err
	}
	for _, fl := range res.OrderedFields() {
		addRow(fields, string(fl.Category), fl.Name, fl.Label, string(fl.ValueType), fl.Value, fl.Confidence, fl.SourcePage, fl.SourceQuote)
	}

	amendments, err := addSheet(f, SheetAmendments, "Number", "Date", "Type", "Field", "Original", "Revised", "Confidence", "Page", "Description", "Source Quote")
	if err != nil {
		return nil, err
	}
	for _, a := range res.Amendments.Amendments {
		addRow(amendments, a.AmendmentNumber, a.AmendmentDate, string(a.AmendmentType), a.AffectedField, a.OriginalValue, a.RevisedValue, a.Confidence, a.SourcePage, a.Description, a.SourceQuote)
	}

	conflicts, err := addSheet(f, SheetConflicts, "Amendment", "Type", "Field", "Conflict")
	if err != nil {
		return nil, err
	}
	for _, c := range res.Conflicts {
		addRow(conflicts, c.Amendment.AmendmentNumber, string(c.Amendment.AmendmentType), c.Amendment.AffectedField, c.ConflictDescription)
	}

	validations, err := addSheet(f, SheetValidations, "Field", "Valid", "Level", "Message")
	if err != nil {
		return nil, err
	}
	for _, v := range res.Validations {
		addRow(validations, v.Field, v.IsValid, string(v.Level), v.Message)
	}

	return f, nil
}

func addSheet(f *xlsx.File, name string, headers ...string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range headers {
		row.AddCell().SetString(h)
	}
	return sheet, nil
}

func addRow(sheet *xlsx.Sheet, values ...any) {
	row := sheet.AddRow()
	for _, v := range values {
		setCell(row.AddCell(), v)
	}
}

func setCell(cell *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
		cell.SetString("")
	case string:
		cell.SetString(x)
	case *string:
		if x != nil {
			cell.SetString(*x)
		}
	case int:
		cell.SetInt(x)
	case *int:
		if x != nil {
			cell.SetInt(*x)
		}
	case float64:
		cell.SetFloat(x)
	case bool:
		cell.SetBool(x)
	default:
		cell.SetString(fmt.Sprint(x))
	}
}
