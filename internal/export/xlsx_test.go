package export

import (
	"bytes"
	"testing"

	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleProfiles() []*profiles.Profile {
	a := profiles.New(1001, profiles.DefaultScaleBounds)
	a.FirstName = "Sara"
	a.LastName = "Ahmadi"
	a.StudentID = 40012345
	a.Skills = []string{"Python", "Go"}
	a.IsSignedUp = true

	b := profiles.New(1002, profiles.DefaultScaleBounds)
	b.FirstName = "Reza"
	return []*profiles.Profile{a, b}
}

func TestHeader(t *testing.T) {
	h := Header(schema.Default())
	require.Len(t, h, schema.Default().Len()+3)
	assert.Equal(t, "User ID", h[0])
	assert.Equal(t, "First name", h[1])
	assert.Equal(t, "Verified", h[len(h)-1])
}

func TestRow_BlanksAndLists(t *testing.T) {
	s := schema.Default()
	row := Row(sampleProfiles()[0], s)

	assert.Equal(t, int64(1001), row[0])
	assert.Equal(t, "Sara", row[1+s.Index("first_name")])
	assert.Equal(t, int64(40012345), row[1+s.Index("student_id")])
	assert.Equal(t, "", row[1+s.Index("email")])
	assert.Equal(t, "", row[1+s.Index("phone_number")])
	assert.Equal(t, "Python, Go", row[1+s.Index("skills")])
	assert.Equal(t, "Yes", row[len(row)-2])
	assert.Equal(t, "No", row[len(row)-1])
}

func TestBuild_ReadBack(t *testing.T) {
	s := schema.Default()
	data, err := Build(sampleProfiles(), s)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header(s), rows[0])
	assert.Equal(t, "1001", rows[1][0])
	assert.Equal(t, "Sara", rows[1][1])
	assert.Equal(t, "Python, Go", rows[1][1+s.Index("skills")])
	assert.Equal(t, "Reza", rows[2][1])
}

func TestBuild_Empty(t *testing.T) {
	data, err := Build(nil, schema.Default())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
