package data

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProtocolTable(t *testing.T) {
	tbl, err := ParseProtocolTable([]byte(`
- name: C_PUT_WARE_ITEM
  min_version: 3
- name: S_ITEMLIST
`))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Count())
	require.Equal(t, []string{"C_PUT_WARE_ITEM", "S_ITEMLIST"}, tbl.Names())
	require.Equal(t, 3, tbl.Get("C_PUT_WARE_ITEM").MinVersion)
	require.Zero(t, tbl.Get("S_ITEMLIST").MinVersion)
	require.Nil(t, tbl.Get("C_VIEW_WARE"))
}

func TestParseProtocolTableRejectsBadEntries(t *testing.T) {
	for name, raw := range map[string]string{
		"no name":   "- min_version: 2\n",
		"duplicate": "- name: A\n- name: A\n",
		"negative":  "- name: A\n  min_version: -1\n",
		"not list":  "name: A\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProtocolTable([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestShippedProtocolList(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "data", "yaml", "protocol_list.yaml")

	tbl, err := LoadProtocolTable(path)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		"C_GET_WARE_ITEM", "C_PUT_WARE_ITEM", "C_VIEW_WARE",
		"S_VIEW_WARE_EX", "S_CANCEL_CONTRACT", "S_REQUEST_CONTRACT", "S_ITEMLIST",
	}, tbl.Names())
	require.Equal(t, 2, tbl.Get("C_VIEW_WARE").MinVersion)
}
