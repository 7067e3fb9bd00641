package profiles

import (
	"testing"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, []string{}},
		{"comma string", " go, sql ,go,", []string{"go", "sql"}},
		{"slice", []string{"a", " b", "a"}, []string{"a", "b"}},
		{"any slice", []any{"x", int64(3)}, []string{"x", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeList("skills", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeList("skills", 42)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestCoerce(t *testing.T) {
	s := schema.Default()
	sid, _ := s.Lookup("student_id")
	name, _ := s.Lookup("first_name")

	v, err := Coerce(sid, " 4001 ")
	require.NoError(t, err)
	assert.Equal(t, int64(4001), v)

	_, err = Coerce(sid, "forty")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = Coerce(sid, "0")
	assert.ErrorIs(t, err, common.ErrorValidation)

	v, err = Coerce(schema.Field{Name: "floor", Kind: schema.KindInt}, "0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	v, err = Coerce(name, " Ana ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", v)

	_, err = Coerce(name, "   ")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestParseCredentials(t *testing.T) {
	s := schema.Default()
	text := "First name : Ana\nStudent ID: 4001\nSkills : go, sql + rust\nemail:ana@example.com\nNickname: x\nno separator"

	c := ParseCredentials(text, s)
	require.NotNil(t, c)
	assert.Equal(t, "Ana", c["first_name"])
	assert.Equal(t, int64(4001), c["student_id"])
	assert.Equal(t, []any{"go", "sql", "rust"}, c["skills"])
	assert.Equal(t, "ana@example.com", c["email"])
	assert.NotContains(t, c, "Nickname")
}

func TestParseCredentials_NothingKnown(t *testing.T) {
	assert.Nil(t, ParseCredentials("hello world", schema.Default()))
}
