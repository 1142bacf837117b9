package tags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	tags map[string]struct{}
}

func newMemRepo(names ...string) *memRepo {
	m := &memRepo{tags: make(map[string]struct{})}
	for _, n := range names {
		m.tags[n] = struct{}{}
	}
	return m
}

func (m *memRepo) AllTags(context.Context) ([]string, error) {
	out := make([]string, 0, len(m.tags))
	for t := range m.tags {
		out = append(out, t)
	}
	return out, nil
}

func (m *memRepo) EnsureTags(_ context.Context, names []string) error {
	for _, n := range names {
		m.tags[n] = struct{}{}
	}
	return nil
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Invoice", "invoice", true},
		{" invoice ", "invoice", true},
		{"home   office", "home office", true},
		{"2024", "2024", true},
		{"", "", false},
		{"   ", "", false},
		{"Löhne", "", false},
		{"факту́ра", "", false},
	}
	for _, c := range cases {
		got, ok := Normalize(c.in)
		assert.Equal(t, c.ok, ok, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestResolveCaseAndWhitespaceVariantsAreOneEntry(t *testing.T) {
	v, err := Load(context.Background(), newMemRepo("invoice"), nil)
	require.NoError(t, err)

	for _, raw := range []string{"Invoice", "invoice", " invoice "} {
		tag, existing, ok := v.Resolve(raw)
		require.True(t, ok, "input %q", raw)
		assert.True(t, existing, "input %q", raw)
		assert.Equal(t, "invoice", tag, "input %q", raw)
	}
}

func TestResolvePluralFoldsToExistingTag(t *testing.T) {
	v, err := Load(context.Background(), newMemRepo("invoice", "tax"), nil)
	require.NoError(t, err)

	tag, existing, ok := v.Resolve("Invoices")
	require.True(t, ok)
	assert.True(t, existing)
	assert.Equal(t, "invoice", tag)

	tag, existing, ok = v.Resolve("taxes")
	require.True(t, ok)
	assert.True(t, existing)
	assert.Equal(t, "tax", tag)
}

func TestResolveExistingPluralWinsOverNewSingular(t *testing.T) {
	// vocabulary already holds the plural; a singular candidate reuses it
	v, err := Load(context.Background(), newMemRepo("receipts"), nil)
	require.NoError(t, err)

	tag, existing, ok := v.Resolve("receipt")
	require.True(t, ok)
	assert.True(t, existing)
	assert.Equal(t, "receipts", tag)
}

func TestResolveAllDedupesWithinDocument(t *testing.T) {
	v, err := Load(context.Background(), newMemRepo(), nil)
	require.NoError(t, err)

	got := v.ResolveAll([]string{"Invoice", "invoice", "payroll", "Löhne", " payroll "})
	assert.Equal(t, []string{"invoice", "payroll"}, got)
}

func TestCommitPersistsAndRemembers(t *testing.T) {
	repo := newMemRepo()
	v, err := Load(context.Background(), repo, nil)
	require.NoError(t, err)

	require.NoError(t, v.Commit(context.Background(), []string{"payroll", "2024"}))
	assert.Contains(t, repo.tags, "payroll")
	assert.ElementsMatch(t, []string{"2024", "payroll"}, v.AllTags())

	tag, existing, ok := v.Resolve("Payroll")
	require.True(t, ok)
	assert.True(t, existing)
	assert.Equal(t, "payroll", tag)
}
