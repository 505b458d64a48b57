package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysconsole/internal/parse"
)

func TestRenderEmpty(t *testing.T) {
	out := Render(nil, Column{Field: "Name", Header: "Name", Width: 10})
	assert.Equal(t, NoRecords, out)

	out = Spec{Columns: []Column{{Field: "Name", Header: "Name", Width: 10}}, Empty: "No disks found."}.Render([]parse.Record{})
	assert.Equal(t, "No disks found.", out)
	assert.NotContains(t, out, "\n")
}

func TestRenderLayout(t *testing.T) {
	recs := []parse.Record{
		{"Name": "averyveryverylongname", "State": "Running"},
		{"Name": "short"},
	}
	out := Render(recs,
		Column{Field: "Name", Header: "Name", Width: 8},
		Column{Field: "State", Header: "State", Width: 7},
	)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Name     State", lines[0])
	assert.Equal(t, "-------- -------", lines[1])
	assert.Equal(t, "averyver Running", lines[2])
	assert.Equal(t, "short    N/A", lines[3])
}

func TestRenderWideRunes(t *testing.T) {
	out := Render([]parse.Record{{"Name": "服务器服务器"}}, Column{Field: "Name", Header: "Name", Width: 5})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "服务", lines[2])
}

func TestGiB(t *testing.T) {
	assert.Equal(t, NA, GiB("0", nil))
	assert.Equal(t, NA, GiB("", nil))
	assert.Equal(t, NA, GiB("abc", nil))
	assert.Equal(t, "1.00", GiB("1073741824", nil))
	assert.Equal(t, "1.50", GiB("1610612736", nil))
	assert.Equal(t, "2.00", KiBToGiB("2097152", nil))
}

func TestUsedPercentZeroDenominator(t *testing.T) {
	rec := parse.Record{"Size": "0", "FreeSpace": "0"}
	assert.Equal(t, NA, UsedPercent("Size", "FreeSpace")("", rec))
	assert.Equal(t, NA, UsedGiB("Size", "FreeSpace")("", rec))
	assert.Equal(t, NA, UsedPercent("Size", "FreeSpace")("", parse.Record{"Size": "10"}))
}

func TestLogicalDiskEndToEnd(t *testing.T) {
	const (
		size256 = "274877906944"
		free100 = "107374182400"
		size512 = "549755813888"
		free400 = "429496729600"
	)
	raw := "\r\r\n\r\r\nCaption=C:\r\r\nFileSystem=NTFS\r\r\nFreeSpace=" + free100 + "\r\r\nSize=" + size256 +
		"\r\r\n\r\r\n\r\r\nCaption=D:\r\r\nFileSystem=NTFS\r\r\nFreeSpace=" + free400 + "\r\r\nSize=" + size512 + "\r\r\n"

	recs := parse.KeyValueBlocks(raw)
	require.Len(t, recs, 2)

	out := Render(recs,
		Column{Field: "Caption", Header: "Caption", Width: 8},
		Column{Field: "Size", Header: "Size (GiB)", Width: 12, Convert: GiB},
		Column{Field: "FreeSpace", Header: "Free (GiB)", Width: 12, Convert: GiB},
		Column{Header: "Used (GiB)", Width: 12, Convert: UsedGiB("Size", "FreeSpace")},
		Column{Header: "Used %", Width: 8, Convert: UsedPercent("Size", "FreeSpace")},
	)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"C:", "256.00", "100.00", "156.00", "60.94%"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"D:", "512.00", "400.00", "112.00", "21.88%"}, strings.Fields(lines[3]))
}
