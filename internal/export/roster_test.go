package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/crod-center/crod-bot/internal/models"
)

func TestRosterBytes(t *testing.T) {
	tgID := int64(999)
	mentors := []models.MentorRecord{
		{ID: 1, FullName: "Иванова О.П.", GroupNum: 3, TelegramID: &tgID},
		{ID: 2, FullName: "Кузнецова А.В.", GroupNum: 3},
	}
	children := []models.ChildRecord{{ID: 5, FullName: "Петя Васечкин", GroupNum: 3}}

	data, err := RosterBytes(3, mentors, children)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Группа 3")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, rosterHeader, rows[0])
	assert.Equal(t, []string{"1", "Иванова О.П.", "Вожатый", "привязан"}, rows[1])
	assert.Equal(t, []string{"2", "Кузнецова А.В.", "Вожатый", "не привязан"}, rows[2])
	assert.Equal(t, []string{"3", "Петя Васечкин", "Ребёнок", "не привязан"}, rows[3])
}

func TestColName(t *testing.T) {
	assert.Equal(t, "A", colName(1))
	assert.Equal(t, "Z", colName(26))
	assert.Equal(t, "AA", colName(27))
}
