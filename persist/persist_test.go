package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"openibank/worldline"
)

func TestWriteMetadataReceiptsAndWorldLineSlice(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)

	meta := Metadata{RunID: "run-1", Mode: "live", WorldLineID: "wl-1", Version: "v1"}
	require.NoError(t, w.WriteMetadata(meta))

	metaPath := filepath.Join(dir, "runs", "run-1", "metadata.json")
	raw, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	var got Metadata
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, meta, got)

	receipts := []ReceiptRef{
		{ID: "receipt_1", Value: map[string]string{"receipt_id": "receipt_1"}},
		{ID: "receipt_2", Value: map[string]string{"receipt_id": "receipt_2"}},
	}
	require.NoError(t, w.WriteReceipts("run-1", receipts))

	aggRaw, err := os.ReadFile(filepath.Join(dir, "runs", "run-1", "receipts.json"))
	require.NoError(t, err)
	var agg []map[string]string
	require.NoError(t, json.Unmarshal(aggRaw, &agg))
	require.Len(t, agg, 2)

	perFile, err := os.ReadFile(filepath.Join(dir, "runs", "run-1", "receipts", "receipt_1.json"))
	require.NoError(t, err)
	var single map[string]string
	require.NoError(t, json.Unmarshal(perFile, &single))
	require.Equal(t, "receipt_1", single["receipt_id"])

	wl := worldline.New(nil)
	ev, err := wl.AppendEvent(worldline.Draft{RunID: "run-1", AgentID: "buyer", Stage: worldline.StageIntent, Payload: map[string]string{"k": "v"}})
	require.NoError(t, err)

	require.NoError(t, w.WriteWorldLineSlice("run-1", []worldline.Event{ev}))
	slicePath := filepath.Join(dir, "runs", "run-1", "worldline_slice.json")
	sliceRaw, err := os.ReadFile(slicePath)
	require.NoError(t, err)
	var events []worldline.Event
	require.NoError(t, json.Unmarshal(sliceRaw, &events))
	require.Len(t, events, 1)
	require.Equal(t, ev.ID, events[0].ID)
}
