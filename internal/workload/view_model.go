package workload

import (
	"context"
	"sort"

	"github.com/Swind/go-background-task/core"
)

// Row is one line of the view model.
type Row struct {
	Index int
	Sum   string
	Err   string
}

// ViewModel is owned by a single UI thread. Only Apply and Summary may touch
// it, and only from that thread.
type ViewModel struct {
	rows      map[int]Row
	succeeded int
	failed    int
	bytes     int64
}

// NewViewModel creates an empty view model.
func NewViewModel() *ViewModel {
	return &ViewModel{rows: make(map[int]Row)}
}

// Apply folds one result into the view.
func (m *ViewModel) Apply(result Checksum, err error) {
	row := Row{Index: result.Index, Sum: result.Sum}
	if err != nil {
		row.Err = err.Error()
		m.failed++
	} else {
		m.succeeded++
		m.bytes += int64(result.Size)
	}
	m.rows[result.Index] = row
}

// Summary is a copy of the view model that is safe to use on any goroutine.
type Summary struct {
	Succeeded int
	Failed    int
	Bytes     int64
	Rows      []Row
}

// Summary copies the current state, ordered by index.
func (m *ViewModel) Summary() Summary {
	s := Summary{Succeeded: m.succeeded, Failed: m.failed, Bytes: m.bytes, Rows: make([]Row, 0, len(m.rows))}
	for _, row := range m.rows {
		s.Rows = append(s.Rows, row)
	}
	sort.Slice(s.Rows, func(i, k int) bool { return s.Rows[i].Index < s.Rows[k].Index })
	return s
}

// SummaryOn reads the view model on the UI thread that owns it.
func SummaryOn(ctx context.Context, ui *core.UIThread, m *ViewModel) (Summary, error) {
	out := make(chan Summary, 1)
	if err := ui.SubmitNamed("view.summary", func(ctx context.Context) {
		out <- m.Summary()
	}); err != nil {
		return Summary{}, err
	}
	select {
	case s := <-out:
		return s, nil
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}
