package dump

import (
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `<mediawiki xmlns="http://www.mediawiki.org/xml/export-0.10/" version="0.10">
  <siteinfo><sitename>Wikipedia</sitename></siteinfo>
  <page>
    <title>Mars</title>
    <ns>0</ns>
    <id>14640471</id>
    <revision><id>1</id><text>old text</text></revision>
    <revision><id>2</id><text xml:space="preserve">{{Infobox planet|name=Mars &amp; moons}}</text></revision>
  </page>
  <page>
    <title>Talk:Mars</title>
    <ns>1</ns>
    <id>99</id>
    <revision><id>3</id><text /></revision>
  </page>
</mediawiki>`

func readAll(t *testing.T, r *Reader) []*Entry {
	t.Helper()
	var entries []*Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return entries
		}
		require.NoError(t, err)
		entries = append(entries, e)
	}
}

func TestReaderPlain(t *testing.T) {
	entries := readAll(t, NewReader(strings.NewReader(sampleDump)))
	require.Len(t, entries, 2)

	mars := entries[0]
	assert.Equal(t, "Mars", mars.Title)
	assert.Equal(t, int64(14640471), mars.ID)
	assert.Equal(t, 0, mars.Namespace)
	assert.Equal(t, "{{Infobox planet|name=Mars & moons}}", mars.Text, "latest revision wins")

	assert.Equal(t, 1, entries[1].Namespace)
	assert.Empty(t, entries[1].Text)
}

func TestOpenGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.xml.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleDump))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Len(t, readAll(t, r), 2)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xml"))
	assert.Error(t, err)
}
