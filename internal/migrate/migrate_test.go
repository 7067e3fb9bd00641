package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) records.Repository {
	t.Helper()
	repo := records.NewJSONFileRepository(filepath.Join(t.TempDir(), "database.json"))
	require.NoError(t, repo.SetMany(context.Background(), []records.Record{
		{Key: "1", Value: []byte(`{"first_name":"Ada","self_reserve":false}`)},
		{Key: "2", Value: []byte(`{"first_name":"Alan"}`)},
	}))
	return repo
}

func fields(t *testing.T, repo records.Repository, key string) map[string]any {
	t.Helper()
	b, err := repo.Get(context.Background(), key)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42", "42"},
		{"true", "true"},
		{`["a","b"]`, `["a","b"]`},
		{"hello", `"hello"`},
		{`"quoted"`, `"quoted"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(ParseValue(tt.in)))
		})
	}
}

func TestApply_AddKey(t *testing.T) {
	repo := seed(t)

	n, err := Apply(context.Background(), repo, AddKey("scale", ParseValue("38")))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, float64(38), fields(t, repo, "1")["scale"])
	assert.Equal(t, float64(38), fields(t, repo, "2")["scale"])
}

func TestApply_EditKeyOnlyWherePresent(t *testing.T) {
	repo := seed(t)

	n, err := Apply(context.Background(), repo, EditKey("self_reserve", ParseValue("true")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, true, fields(t, repo, "1")["self_reserve"])
	assert.NotContains(t, fields(t, repo, "2"), "self_reserve")
}

func TestApply_RenameKey(t *testing.T) {
	repo := seed(t)

	n, err := Apply(context.Background(), repo, RenameKey("first_name", "given_name"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got := fields(t, repo, "2")
	assert.Equal(t, "Alan", got["given_name"])
	assert.NotContains(t, got, "first_name")

	n, err = Apply(context.Background(), repo, RenameKey("given_name", "given_name"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApply_DeleteKey(t *testing.T) {
	repo := seed(t)

	n, err := Apply(context.Background(), repo, DeleteKey("self_reserve"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotContains(t, fields(t, repo, "1"), "self_reserve")
	assert.Equal(t, "Ada", fields(t, repo, "1")["first_name"])
}

type failingRepo struct {
	records.Repository
	listErr, setErr error
	recs            []records.Record
}

func (f failingRepo) List(context.Context) ([]records.Record, error) { return f.recs, f.listErr }
func (f failingRepo) SetMany(context.Context, []records.Record) error { return f.setErr }

func TestApply_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Apply(ctx, failingRepo{listErr: errors.New("offline")}, DeleteKey("x"))
	assert.ErrorContains(t, err, "list records")

	_, err = Apply(ctx, failingRepo{recs: []records.Record{{Key: "1", Value: []byte("not json")}}}, DeleteKey("x"))
	assert.ErrorContains(t, err, "decode record 1")

	_, err = Apply(ctx, failingRepo{
		recs:   []records.Record{{Key: "1", Value: []byte(`{"x":1}`)}},
		setErr: errors.New("read only"),
	}, DeleteKey("x"))
	assert.ErrorContains(t, err, "write records")
}

func TestShow(t *testing.T) {
	repo := seed(t)
	var buf bytes.Buffer

	require.NoError(t, Show(context.Background(), repo, &buf))
	assert.Contains(t, buf.String(), "1:\n")
	assert.Contains(t, buf.String(), `"first_name": "Alan"`)
}
