// Package dashboard holds the analysis page state as an immutable value
// updated by a reducer, plus a Session that turns range changes into
// superseding fetches.
package dashboard

import "time"

// Status of the range selection.
type Status int

const (
	Idle Status = iota
	RangeSelected
)

func (s Status) String() string {
	switch s {
	case RangeSelected:
		return "range_selected"
	default:
		return "idle"
	}
}

// Tabs of the analysis page.
const (
	TabOverview   = "overview"
	TabDaily      = "daily"
	TabCategories = "categories"
)

// State is the full analysis page state. Values are never modified in place.
type State struct {
	Status     Status
	Range      Range
	ActiveTab  string
	OpenDialog string // empty when no dialog is open
}

// Action is a state transition request.
type Action interface{ isAction() }

type (
	SelectRange struct{ Range Range }
	SelectTab   struct{ Tab string }
	OpenDialog  struct{ Name string }
	CloseDialog struct{}
)

func (SelectRange) isAction() {}
func (SelectTab) isAction()   {}
func (OpenDialog) isAction()  {}
func (CloseDialog) isAction() {}

// Initial returns the state on first load: the default range is already
// selected.
func Initial(now time.Time) State {
	return State{
		Status:    RangeSelected,
		Range:     DefaultRange(now),
		ActiveTab: TabOverview,
	}
}

// Reduce applies an action and returns the next state. Ranges are passed
// through unvalidated.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SelectRange:
		s.Status = RangeSelected
		s.Range = a.Range
	case SelectTab:
		if a.Tab != "" {
			s.ActiveTab = a.Tab
		}
	case OpenDialog:
		s.OpenDialog = a.Name
	case CloseDialog:
		s.OpenDialog = ""
	}
	return s
}

// NeedsFetch reports whether moving from prev to next changes the cache key.
// Re-selecting the range that is already loaded is a no-op; Session.Reload
// is the way to fetch the same key again.
func NeedsFetch(prev, next State) bool {
	if next.Status != RangeSelected {
		return false
	}
	return prev.Status != RangeSelected || prev.Range.Key() != next.Range.Key()
}
