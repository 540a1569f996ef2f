package timeline

import (
	"opscal/internal/model"
)

// minBlockHeight keeps all-day and zero-duration events visible as a sliver
// instead of a zero-height line, as a fraction of the window height.
const minBlockHeight = 0.01

// layoutEpsilon absorbs float rounding so an event starting exactly when the
// previous block ends still reuses its column.
const layoutEpsilon = 1e-9

// Layout assigns a column and vertical extent to every event in the window.
//
// The input must already be filtered to window-intersecting events and sorted
// ascending by start; the aggregator guarantees both. The packing is a greedy
// first-fit over columns: each event goes into the first column whose previous
// block ends at or above the event's top, or opens a new column. Column
// assignments are stable across identical inputs, and every block reports the
// total number of columns opened during the pass so a consumer can divide the
// available width evenly.
func Layout(events []model.Event, w model.TimeWindow) []model.LayoutBlock {
	total := w.End.Sub(w.Start)
	if total <= 0 || len(events) == 0 {
		return []model.LayoutBlock{}
	}

	// bottoms[i] is the bottom edge of the last block assigned to column i.
	bottoms := make([]float64, 0, 4)
	blocks := make([]model.LayoutBlock, 0, len(events))

	for _, ev := range events {
		start, end := ev.Start, ev.End
		if start.Before(w.Start) {
			start = w.Start
		}
		if end.After(w.End) {
			end = w.End
		}

		top := float64(start.Sub(w.Start)) / float64(total)
		height := float64(end.Sub(start)) / float64(total)
		if height < minBlockHeight {
			height = minBlockHeight
		}

		column := -1
		for i, bottom := range bottoms {
			if bottom <= top+layoutEpsilon {
				column = i
				bottoms[i] = top + height
				break
			}
		}
		if column < 0 {
			bottoms = append(bottoms, top+height)
			column = len(bottoms) - 1
		}

		blocks = append(blocks, model.LayoutBlock{
			EventID: ev.ID,
			Top:     top,
			Height:  height,
			Column:  column,
		})
	}

	// Every block reports the global maximum, even ones placed before later
	// columns opened.
	for i := range blocks {
		blocks[i].TotalColumns = len(bottoms)
	}
	return blocks
}
