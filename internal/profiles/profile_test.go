package profiles

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeProfile(id int64) *Profile {
	p := New(id, DefaultScaleBounds)
	p.FirstName = "Ana"
	p.LastName = "Lopez"
	p.StudyField = "Physics"
	p.StudentID = 4001
	p.Degree = "BSc"
	p.University = "Tehran"
	p.Email = "ana@example.com"
	p.PhoneNumber = 9121234567
	return p
}

func TestCheckSchema_Default(t *testing.T) {
	require.NoError(t, CheckSchema(schema.Default()))
}

func TestCheckSchema_Mismatch(t *testing.T) {
	s := schema.MustNew([]schema.Field{{Name: "email", Kind: schema.KindInt}})
	assert.Error(t, CheckSchema(s))

	s = schema.MustNew([]schema.Field{{Name: "nickname", Kind: schema.KindString}})
	assert.Error(t, CheckSchema(s))
}

func TestNew_AllSentinels(t *testing.T) {
	s := schema.Default()
	p := New(1001, DefaultScaleBounds)

	assert.Equal(t, int64(1001), p.UserID)
	assert.Equal(t, 38, p.Scale)
	assert.True(t, p.SelfReserve)
	for _, f := range s.Fields() {
		v, ok := p.Value(f.Name)
		require.True(t, ok, f.Name)
		assert.True(t, f.IsEmpty(v), f.Name)
	}
	assert.False(t, p.IsComplete(s))
	assert.Len(t, p.Missing(s), 8)
}

func TestSetValue_KindChecked(t *testing.T) {
	p := New(1, DefaultScaleBounds)

	require.NoError(t, p.SetValue("first_name", "Ana"))
	assert.Equal(t, "Ana", p.FirstName)

	err := p.SetValue("student_id", "abc")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "student_id", verr.Field)
	assert.True(t, errors.Is(err, common.ErrorValidation))
	assert.Zero(t, p.StudentID)

	require.NoError(t, p.SetValue("skills", []string{"go", "go", "sql"}))
	assert.Equal(t, []string{"go", "sql"}, p.Skills)

	assert.Error(t, p.SetValue("unknown", "x"))
}

func TestAppendValue_NoDuplicates(t *testing.T) {
	p := New(1, DefaultScaleBounds)

	changed, err := p.AppendValue("skills", "python")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = p.AppendValue("skills", "python")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{"python"}, p.Skills)

	_, err = p.AppendValue("email", "x")
	assert.Error(t, err)
}

func TestToggleValue_TwiceRestores(t *testing.T) {
	p := New(1, DefaultScaleBounds)
	p.Interests = []string{"ai"}

	present, err := p.ToggleValue("interests", "robotics")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []string{"ai", "robotics"}, p.Interests)

	present, err = p.ToggleValue("interests", "robotics")
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, []string{"ai"}, p.Interests)
}

func TestIsComplete_RecheckedAfterMutation(t *testing.T) {
	s := schema.Default()
	p := completeProfile(1)
	assert.True(t, p.IsComplete(s))
	assert.Empty(t, p.Missing(s))

	require.NoError(t, p.SetValue("email", ""))
	assert.False(t, p.IsComplete(s))
	assert.Equal(t, []string{"Email"}, p.Missing(s))

	require.NoError(t, p.SetValue("email", "a@b.c"))
	assert.True(t, p.IsComplete(s))
}

func TestAdjustScale_Clamped(t *testing.T) {
	b := DefaultScaleBounds
	for start := b.Min; start <= b.Max; start++ {
		p := &Profile{Scale: start}
		assert.LessOrEqual(t, p.AdjustScale(true, b), b.Max)
		p.Scale = start
		assert.GreaterOrEqual(t, p.AdjustScale(false, b), b.Min)
	}

	p := &Profile{Scale: b.Max}
	assert.Equal(t, b.Max, p.AdjustScale(true, b))
	p.Scale = b.Min
	assert.Equal(t, b.Min, p.AdjustScale(false, b))
	p.Scale = 20
	assert.Equal(t, 21, p.AdjustScale(true, b))
}

func TestClone_IsDeep(t *testing.T) {
	p := completeProfile(1)
	p.Skills = []string{"go"}
	c := p.Clone()
	c.Skills[0] = "rust"
	c.FirstName = "Bo"

	assert.Equal(t, "go", p.Skills[0])
	assert.Equal(t, "Ana", p.FirstName)
	assert.Nil(t, (*Profile)(nil).Clone())
}

func TestFullName(t *testing.T) {
	p := completeProfile(1)
	assert.Equal(t, "Ana Lopez", p.FullName())
}
