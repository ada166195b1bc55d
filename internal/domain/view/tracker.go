// Package view keeps a client's picture of the todo list consistent with the
// server while mutations are in flight.
//
// Each pending (item, action) pair moves through
//
//	Settled -> Optimistic -> Reconciling -> Settled
//
// The display shows the optimistic guess until the mutation result and a
// fresh authoritative list arrive. On failure the guess is dropped and the
// authoritative value shows again; the error is kept for display.
package view

import (
	"sync"

	"todoapp/internal/domain/todo"
)

type Action string

const (
	ActionAdd    Action = "add"
	ActionToggle Action = "toggle"
	ActionDelete Action = "delete"
)

type Phase int

const (
	PhaseSettled Phase = iota
	PhaseOptimistic
	PhaseReconciling
)

func (p Phase) String() string {
	switch p {
	case PhaseOptimistic:
		return "optimistic"
	case PhaseReconciling:
		return "reconciling"
	default:
		return "settled"
	}
}

// Key identifies one pending mutation. Adds have no id yet and use ID 0.
type Key struct {
	ID     int64
	Action Action
}

type pendingAction struct {
	phase     Phase
	completed bool // optimistic value for toggles
}

// Row is one displayed item.
type Row struct {
	todo.Todo
	Pending bool
}

// Tracker holds the authoritative list plus optimistic overlays.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	items   []*todo.Todo
	pending map[Key]*pendingAction
	adds    int
	err     error
}

func NewTracker(items []*todo.Todo) *Tracker {
	return &Tracker{
		items:   cloneItems(items),
		pending: make(map[Key]*pendingAction),
	}
}

// BeginToggle shows the flipped value immediately. It returns false when a
// toggle of the same item is already pending or the item is not visible.
func (t *Tracker) BeginToggle(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := Key{ID: id, Action: ActionToggle}
	if _, busy := t.pending[key]; busy {
		return false
	}
	if _, deleting := t.pending[Key{ID: id, Action: ActionDelete}]; deleting {
		return false
	}
	item := t.find(id)
	if item == nil {
		return false
	}

	t.pending[key] = &pendingAction{phase: PhaseOptimistic, completed: !item.Completed}
	return true
}

// BeginDelete hides the item immediately. It returns false when a delete of
// the same item is already pending or the item is not visible.
func (t *Tracker) BeginDelete(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := Key{ID: id, Action: ActionDelete}
	if _, busy := t.pending[key]; busy {
		return false
	}
	if t.find(id) == nil {
		return false
	}

	t.pending[key] = &pendingAction{phase: PhaseOptimistic}
	return true
}

// BeginAdd validates text locally and registers an in-flight add. The caller
// clears its input right away; a failed add never restores the text.
func (t *Tracker) BeginAdd(text string) (string, error) {
	params := todo.CreateTodoParams{Text: text}
	params.Normalize()
	if err := params.Validate(); err != nil {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		return "", err
	}

	t.mu.Lock()
	t.adds++
	t.mu.Unlock()
	return params.Text, nil
}

// Dispatch marks the mutation as sent. The control stays disabled.
func (t *Tracker) Dispatch(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[key]
	if !ok || p.phase != PhaseOptimistic {
		return false
	}
	p.phase = PhaseReconciling
	return true
}

// Resolve settles key. A non-nil fresh list becomes the authoritative state
// whether or not the mutation failed. When the mutation succeeded but no
// fresh list could be fetched, the acknowledged change is applied locally.
func (t *Tracker) Resolve(key Key, err error, fresh []*todo.Todo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if key.Action == ActionAdd {
		if t.adds > 0 {
			t.adds--
		}
	}
	p := t.pending[key]
	delete(t.pending, key)

	switch {
	case fresh != nil:
		t.items = cloneItems(fresh)
	case err == nil && p != nil:
		t.applyAcknowledged(key, p)
	}

	if err != nil {
		t.err = err
	}
}

// Apply settles a Result produced by Perform or PerformAdd.
func (t *Tracker) Apply(r Result) {
	switch {
	case r.Err != nil:
		t.Resolve(r.Key, r.Err, r.Fresh)
	case r.RefreshErr != nil:
		// the mutation landed; only the refresh failed
		t.Resolve(r.Key, nil, nil)
		t.mu.Lock()
		t.err = r.RefreshErr
		t.mu.Unlock()
	default:
		t.Resolve(r.Key, nil, r.Fresh)
	}
}

// Replace adopts a new authoritative list from an external refresh. Pending
// overlays stay in place until their own results arrive.
func (t *Tracker) Replace(fresh []*todo.Todo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = cloneItems(fresh)
}

// Rows returns the list as it should be displayed right now.
func (t *Tracker) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]Row, 0, len(t.items))
	for _, item := range t.items {
		if _, deleting := t.pending[Key{ID: item.ID, Action: ActionDelete}]; deleting {
			continue
		}
		row := Row{Todo: *item}
		if p, toggling := t.pending[Key{ID: item.ID, Action: ActionToggle}]; toggling {
			row.Completed = p.completed
			row.Pending = true
		}
		rows = append(rows, row)
	}
	return rows
}

// Phase reports where key is in its lifecycle.
func (t *Tracker) Phase(key Key) Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.pending[key]; ok {
		return p.phase
	}
	return PhaseSettled
}

// Disabled reports whether the control for (id, action) must ignore input.
func (t *Tracker) Disabled(id int64, action Action) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[Key{ID: id, Action: action}]
	return ok
}

// Adding reports whether any add is in flight.
func (t *Tracker) Adding() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.adds > 0
}

// PendingCount returns the number of in-flight mutations, adds included.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) + t.adds
}

// Err returns the last surfaced failure.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tracker) ClearErr() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = nil
}

func (t *Tracker) applyAcknowledged(key Key, p *pendingAction) {
	switch key.Action {
	case ActionToggle:
		if item := t.find(key.ID); item != nil {
			updated := *item
			updated.Completed = p.completed
			t.replaceItem(&updated)
		}
	case ActionDelete:
		kept := make([]*todo.Todo, 0, len(t.items))
		for _, item := range t.items {
			if item.ID != key.ID {
				kept = append(kept, item)
			}
		}
		t.items = kept
	}
}

func (t *Tracker) find(id int64) *todo.Todo {
	for _, item := range t.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (t *Tracker) replaceItem(updated *todo.Todo) {
	for i, item := range t.items {
		if item.ID == updated.ID {
			t.items[i] = updated
			return
		}
	}
}

func cloneItems(items []*todo.Todo) []*todo.Todo {
	out := make([]*todo.Todo, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	return out
}
