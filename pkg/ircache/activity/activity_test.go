package activity

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogCreation(t *testing.T) {
	l := NewLog(0)
	require.NotNil(t, l)
}

func TestLogWrite(t *testing.T) {
	l := NewLog(1024)
	n, err := l.Write([]byte("add_ir_graph HASH_A"))
	require.NoError(t, err)
	require.Equal(t, 19, n)
}

func TestLogReadEmpty(t *testing.T) {
	l := NewLog(4)
	buf := make([]byte, 4)
	_, err := l.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestLogWriteReadOverwrite(t *testing.T) {
	l := NewLog(4)
	n, err := l.Write([]byte("asdfg"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	buf := make([]byte, 4)
	n, err = l.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte("sdfg"), buf)
}

func TestLogWriteReadString(t *testing.T) {
	l := NewLog(4)
	n, err := l.Write([]byte("asdfg"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	str := new(strings.Builder)
	nw, err := io.Copy(str, l)
	require.NoError(t, err)
	require.Equal(t, int64(4), nw)
	require.Equal(t, "sdfg", str.String())
}

func TestLogSnapshotDoesNotConsume(t *testing.T) {
	l := NewLog(8)
	_, err := l.Write([]byte("route/a"))
	require.NoError(t, err)

	first := l.Snapshot()
	second := l.Snapshot()
	require.Equal(t, first, second)
	require.Equal(t, "route/a", string(first))
}

func TestRecordDispatchRoundTrip(t *testing.T) {
	l := NewLog(1024)
	l.RecordDispatch(DispatchRecord{RouteHash: 42, MessageID: 7, PayloadSize: 256})
	l.RecordDispatch(DispatchRecord{RouteHash: 43, MessageID: 8, PayloadSize: 0})

	records := l.Records()
	require.Len(t, records, 2)
	require.Equal(t, DispatchRecord{RouteHash: 42, MessageID: 7, PayloadSize: 256}, records[0])
	require.Equal(t, DispatchRecord{RouteHash: 43, MessageID: 8, PayloadSize: 0}, records[1])
}

func TestRecordDispatchDropsTruncatedOldestLine(t *testing.T) {
	l := NewLog(120)
	for i := range 10 {
		l.RecordDispatch(DispatchRecord{RouteHash: uint32(i), MessageID: uint32(i), PayloadSize: i})
	}

	// The ring is far smaller than 10 lines' worth of text, so the
	// oldest records are evicted and any line left straddling the
	// eviction boundary must be dropped rather than misparsed, but the
	// most recent, fully-buffered record must still round-trip.
	records := l.Records()
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	require.Equal(t, DispatchRecord{RouteHash: 9, MessageID: 9, PayloadSize: 9}, last)
	for _, rec := range records {
		require.Less(t, int(rec.RouteHash), 10)
	}
}
