package ledger

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tidA = "E2000017221101441700B6B6"
	tidB = "E2001234ABCD00001700FFFF"
)

func TestFold_Scenario(t *testing.T) {
	l := New()
	t1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	t2 := t1.Add(time.Second)
	t3 := t2.Add(time.Second)

	require.True(t, l.Fold(tidA, t1))
	require.True(t, l.Fold(tidA, t2))
	require.True(t, l.Fold(tidB, t3))

	recs := l.Records()
	require.Len(t, recs, 2)

	assert.Equal(t, tidA, recs[0].TID)
	assert.Equal(t, 1, recs[0].SequenceID)
	assert.Equal(t, 2, recs[0].SightingCount)
	assert.Equal(t, t1, recs[0].FirstSeenAt)
	assert.Equal(t, t2, recs[0].LastSeenAt)

	assert.Equal(t, tidB, recs[1].TID)
	assert.Equal(t, 2, recs[1].SequenceID)
	assert.Equal(t, 1, recs[1].SightingCount)

	totals := l.Totals()
	assert.Equal(t, int64(3), totals.TotalSightings)
	assert.Equal(t, 2, totals.UniqueCount)
	assert.Equal(t, t3, totals.LastSeenAt)
}

func TestFold_CaseInsensitiveKeepsFirstSpelling(t *testing.T) {
	l := New()
	now := time.Now()

	l.Fold("e2000017221101441700b6b6", now)
	l.Fold(tidA, now)

	require.Equal(t, 1, l.Len())
	rec, ok := l.Lookup(tidA)
	require.True(t, ok)
	assert.Equal(t, "e2000017221101441700b6b6", rec.TID)
	assert.Equal(t, 2, rec.SightingCount)
}

func TestFold_RejectsMalformed(t *testing.T) {
	l := New()
	var events []Event
	l.Observe(func(e Event) { events = append(events, e) })

	assert.False(t, l.Fold("", time.Now()))
	assert.False(t, l.Fold("   ", time.Now()))
	assert.False(t, l.Fold("E200-XYZ", time.Now()))

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, int64(0), l.Totals().TotalSightings)
	assert.Empty(t, events)
}

// 编号恰好是 {1..k}，无空洞无重复；且显示顺序等于首次出现顺序
func TestFold_SequenceIDsDenseAndOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tids := make([]string, 30)
	for i := range tids {
		tids[i] = fmt.Sprintf("E2000017%016X", rng.Uint64())
	}

	l := New()
	var firstOrder []string
	seen := map[string]bool{}
	counts := map[string]int{}
	now := time.Now()

	for i := 0; i < 1000; i++ {
		tid := tids[rng.Intn(len(tids))]
		if !seen[tid] {
			seen[tid] = true
			firstOrder = append(firstOrder, tid)
		}
		counts[tid]++
		require.True(t, l.Fold(tid, now.Add(time.Duration(i)*time.Millisecond)))
	}

	recs := l.Records()
	require.Len(t, recs, len(firstOrder))
	for i, r := range recs {
		assert.Equal(t, i+1, r.SequenceID)
		assert.Equal(t, firstOrder[i], r.TID)
		assert.Equal(t, counts[r.TID], r.SightingCount)
	}
	assert.Equal(t, int64(1000), l.Totals().TotalSightings)
}

func TestClear(t *testing.T) {
	l := New()
	now := time.Now()
	l.Fold(tidA, now)
	l.Fold(tidB, now)

	require.ErrorIs(t, l.Clear(false), ErrClearNotConfirmed)
	assert.Equal(t, 2, l.Len())

	require.NoError(t, l.Clear(true))
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, Totals{}, l.Totals())

	l.Fold(tidB, now)
	rec, ok := l.Lookup(tidB)
	require.True(t, ok)
	assert.Equal(t, 1, rec.SequenceID)
	assert.Equal(t, 1, rec.SightingCount)
}

func TestObserver_EventOrder(t *testing.T) {
	l := New()
	var kinds []string
	l.Observe(func(e Event) {
		switch ev := e.(type) {
		case RecordInserted:
			kinds = append(kinds, fmt.Sprintf("insert:%d", ev.Record.SequenceID))
		case RecordUpdated:
			kinds = append(kinds, fmt.Sprintf("update:%d", ev.Record.SequenceID))
		case TotalsChanged:
			kinds = append(kinds, fmt.Sprintf("totals:%d", ev.Totals.TotalSightings))
		case Cleared:
			kinds = append(kinds, "cleared")
		}
	})

	now := time.Now()
	l.Fold(tidA, now)
	l.Fold(tidA, now)
	require.NoError(t, l.Clear(true))

	assert.Equal(t, []string{
		"insert:1", "totals:1",
		"update:1", "totals:2",
		"cleared", "totals:0",
	}, kinds)
}

func TestSelection(t *testing.T) {
	l := New()
	now := time.Now()
	l.Fold(tidA, now)
	l.SetAutoSelect(true)
	l.Fold(tidB, now)

	sel := l.Selected()
	require.Len(t, sel, 1)
	assert.Equal(t, 2, sel[0].SequenceID)

	on, err := l.Toggle(1)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Len(t, l.Selected(), 2)

	l.SelectAll(false)
	assert.Empty(t, l.Selected())

	require.NoError(t, l.SetSelected(2, true))
	assert.Len(t, l.Selected(), 1)

	_, err = l.Toggle(3)
	assert.ErrorIs(t, err, ErrUnknownRecord)
	assert.ErrorIs(t, l.SetSelected(0, true), ErrUnknownRecord)
}

func TestRecords_IsSnapshot(t *testing.T) {
	l := New()
	l.Fold(tidA, time.Now())

	recs := l.Records()
	recs[0].SightingCount = 99

	rec, _ := l.Get(1)
	assert.Equal(t, 1, rec.SightingCount)
}

func TestFormatTID(t *testing.T) {
	assert.Equal(t, "E200 0017 2211 0144 1700 B6B6", FormatTID(tidA))
	assert.Equal(t, "ABC", FormatTID("ABC"))
	assert.Equal(t, "", FormatTID(""))
}
