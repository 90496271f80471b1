// Package export 把员工列表渲染为可下载的文件。传入的记录应已经按调用者的权限脱敏，
// 被隐藏的薪资和生日在所有格式中都输出为空。
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Employees"

var header = []string{
	"ID", "Manager ID", "First Name", "Last Name", "Email", "Employee Number",
	"Department", "Position", "Salary", "Birth Date",
}

// ParseFormat 空字符串视为 csv
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", apperror.Newf(apperror.KindValidation, "Unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

func (f Format) Filename() string {
	return "employees." + string(f)
}

func Write(w io.Writer, format Format, employees []domain.EmployeeView) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, employees)
	case FormatJSON:
		return writeJSON(w, employees)
	case FormatXLSX:
		return writeXLSX(w, employees)
	default:
		return apperror.Newf(apperror.KindValidation, "Unsupported export format %q", format)
	}
}

func record(e domain.EmployeeView) []string {
	managerID := ""
	if e.ManagerID != nil {
		managerID = strconv.FormatInt(*e.ManagerID, 10)
	}
	salary := ""
	if e.Salary != nil {
		salary = e.Salary.StringFixed(2)
	}
	birthDate := ""
	if e.BirthDate != nil {
		birthDate = *e.BirthDate
	}

	return []string{
		strconv.FormatInt(e.ID, 10),
		managerID,
		e.FirstName,
		e.LastName,
		e.Email,
		e.EmployeeNumber,
		e.Department,
		e.Position,
		salary,
		birthDate,
	}
}

func writeCSV(w io.Writer, employees []domain.EmployeeView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range employees {
		if err := cw.Write(record(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, employees []domain.EmployeeView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"employees": employees})
}

func writeXLSX(w io.Writer, employees []domain.EmployeeView) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	rows := make([][]string, 0, len(employees)+1)
	rows = append(rows, header)
	for _, e := range employees {
		rows = append(rows, record(e))
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return err
	}
	return nil
}
