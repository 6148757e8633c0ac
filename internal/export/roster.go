package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/crod-center/crod-bot/internal/models"
)

var rosterHeader = []string{"№", "ФИО", "Роль", "Telegram"}

// GroupRoster собирает xlsx со списком группы: сначала вожатые, потом дети.
func GroupRoster(groupNum int, mentors []models.MentorRecord, children []models.ChildRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := fmt.Sprintf("Группа %d", groupNum)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := make([][]string, 0, len(mentors)+len(children))
	for _, m := range mentors {
		rows = append(rows, []string{m.FullName, models.Mentor.Title(), linkedMark(m.TelegramID)})
	}
	for _, c := range children {
		rows = append(rows, []string{c.FullName, models.Child.Title(), linkedMark(c.TelegramID)})
	}

	for col, h := range rosterHeader {
		if err := f.SetCellStr(sheet, cell(col+1, 1), h); err != nil {
			return nil, fmt.Errorf("set header: %w", err)
		}
	}
	for i, row := range rows {
		r := i + 2
		if err := f.SetCellInt(sheet, cell(1, r), int64(i+1)); err != nil {
			return nil, fmt.Errorf("set cell: %w", err)
		}
		for c, val := range row {
			if err := f.SetCellStr(sheet, cell(c+2, r), val); err != nil {
				return nil, fmt.Errorf("set cell: %w", err)
			}
		}
	}

	end := colName(len(rosterHeader)) + "1"
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", end, bold)
	}
	_ = f.AutoFilter(sheet, "A1:"+end, nil)

	// эвристическая ширина по самому длинному значению
	for c := 1; c <= len(rosterHeader); c++ {
		w := float64(utf8.RuneCountInString(rosterHeader[c-1]))
		if c > 1 {
			for _, row := range rows {
				if l := float64(utf8.RuneCountInString(row[c-2])); l > w {
					w = l
				}
			}
		}
		w = w*1.1 + 2
		if w > 50 {
			w = 50
		}
		_ = f.SetColWidth(sheet, colName(c), colName(c), w)
	}
	return f, nil
}

// RosterBytes — то же, сразу в байтах для отправки документом.
func RosterBytes(groupNum int, mentors []models.MentorRecord, children []models.ChildRecord) ([]byte, error) {
	f, err := GroupRoster(groupNum, mentors, children)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write roster: %w", err)
	}
	return buf.Bytes(), nil
}

func linkedMark(tgID *int64) string {
	if tgID == nil {
		return "не привязан"
	}
	return "привязан"
}

func cell(col, row int) string {
	return fmt.Sprintf("%s%d", colName(col), row)
}

func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}
