package listview

type SelectionState string

const (
	SelectionNone SelectionState = "none"
	SelectionSome SelectionState = "some"
	SelectionAll  SelectionState = "all"
)

// Selection tracks the selected row ids of the current page, in selection order.
type Selection struct {
	rows     []string
	selected map[string]bool
	order    []string
}

func NewSelection(rowIDs []string) *Selection {
	rows := make([]string, len(rowIDs))
	copy(rows, rowIDs)
	return &Selection{rows: rows, selected: map[string]bool{}}
}

func (s *Selection) known(id string) bool {
	for _, row := range s.rows {
		if row == id {
			return true
		}
	}
	return false
}

// Toggle flips one row; ids not on the page are ignored.
func (s *Selection) Toggle(id string) {
	if !s.known(id) {
		return
	}
	if s.selected[id] {
		delete(s.selected, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return
	}
	s.selected[id] = true
	s.order = append(s.order, id)
}

// ToggleAll selects every row unless all are already selected, in which case it clears.
func (s *Selection) ToggleAll() {
	if s.State() == SelectionAll {
		s.selected = map[string]bool{}
		s.order = nil
		return
	}
	for _, row := range s.rows {
		if !s.selected[row] {
			s.selected[row] = true
			s.order = append(s.order, row)
		}
	}
}

func (s *Selection) State() SelectionState {
	return StateOf(len(s.order), len(s.rows))
}

func (s *Selection) Selected() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ToolbarVisible reports whether bulk actions apply (at least one row selected).
func (s *Selection) ToolbarVisible() bool {
	return len(s.order) > 0
}

func StateOf(selected, total int) SelectionState {
	switch {
	case selected <= 0 || total <= 0:
		return SelectionNone
	case selected >= total:
		return SelectionAll
	default:
		return SelectionSome
	}
}

// SelectionView is the selection state as sent to clients.
type SelectionView struct {
	State          SelectionState `json:"state"`
	Selected       []string       `json:"selected"`
	ToolbarVisible bool           `json:"toolbar_visible"`
}

func (s *Selection) View() SelectionView {
	return SelectionView{State: s.State(), Selected: s.Selected(), ToolbarVisible: s.ToolbarVisible()}
}
