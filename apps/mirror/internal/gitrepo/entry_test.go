package gitrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/treemirror/apps/mirror/internal/gitrepo"
)

func TestDecodeListing(t *testing.T) {
	body := []byte(`[
		{"name":"lib","path":"ext/lib","type":"dir","url":"https://api/ext/lib","html_url":"https://html/ext/lib"},
		{"name":"a.py","path":"ext/a.py","type":"file","url":"https://api/ext/a.py","html_url":"https://html/ext/a.py","size":12,"download_url":"https://raw/ext/a.py"},
		{"name":"link","path":"ext/link","type":"symlink","url":"https://api/ext/link","size":3}
	]`)

	entries, err := gitrepo.DecodeListing(body)

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].IsDir())
	assert.False(t, entries[1].IsDir())
	assert.Equal(t, int64(12), entries[1].Size)
	assert.Equal(t, "https://raw/ext/a.py", entries[1].DownloadURL)
	assert.False(t, entries[2].IsDir(), "symlinks are files")
}

func TestDecodeListing_RejectsObject(t *testing.T) {
	_, err := gitrepo.DecodeListing([]byte(`{"name":"a.py","type":"file"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory listing")
}

func TestDecodeListing_RejectsInvalidEntry(t *testing.T) {
	_, err := gitrepo.DecodeListing([]byte(`[{"name":"lib","type":"dir"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no url")
}

func TestDecodeListing_Empty(t *testing.T) {
	entries, err := gitrepo.DecodeListing([]byte(` [] `))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInMem_ListDir(t *testing.T) {
	m := gitrepo.NewInMem()
	m.SetListing("api/root", gitrepo.Dir("b", "root/b"), gitrepo.File("a", "root/a", 1))
	m.Fail("api/broken", errors.New("boom"))

	entries, err := m.ListDir(context.Background(), "api/root")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, []string{entries[0].Name, entries[1].Name})

	_, err = m.ListDir(context.Background(), "api/broken")
	assert.EqualError(t, err, "boom")

	_, err = m.ListDir(context.Background(), "api/missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"api/root", "api/broken", "api/missing"}, m.Calls())
}
