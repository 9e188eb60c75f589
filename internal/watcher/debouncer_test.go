package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEventPassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	// When: one event is added
	d.Add(FileEvent{Path: "guide.md", Operation: OpCreate})

	// Then: it is emitted after the window
	batch := receive(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "guide.md", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation
	}{
		{"modify burst", []Operation{OpModify, OpModify, OpModify}, []Operation{OpModify}},
		{"create then modify", []Operation{OpCreate, OpModify}, []Operation{OpCreate}},
		{"create then delete", []Operation{OpCreate, OpDelete}, nil},
		{"modify then delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
		{"delete then create", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(30 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "a.md", Operation: op})
			}
			// A second path guarantees a batch even when a.md cancels out.
			d.Add(FileEvent{Path: "z.md", Operation: OpModify})

			batch := receive(t, d)
			var got []Operation
			for _, ev := range batch {
				if ev.Path == "a.md" {
					got = append(got, ev.Operation)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDebouncer_BatchIsSortedByPath(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "c.md", Operation: OpModify})
	d.Add(FileEvent{Path: "a.md", Operation: OpModify})
	d.Add(FileEvent{Path: "b.md", Operation: OpModify})

	batch := receive(t, d)
	require.Len(t, batch, 3)
	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, []string{batch[0].Path, batch[1].Path, batch[2].Path})
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(FileEvent{Path: "a.md"})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "b.md"})

	_, ok := <-d.Output()
	assert.False(t, ok)
}
