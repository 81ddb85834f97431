package locator

// Binding joins one facility to the marker and list entry rendered for it.
type Binding struct {
	FacilityID int
	Marker     Handle
	Entry      Handle
	Content    Content
}

// ViewBinding is the per-render join table from Facility.ID to its on-screen
// handles. It is rebuilt on every render and never mutated afterwards.
type ViewBinding struct {
	generation uint64
	bindings   []Binding
}

// Generation identifies the render pass that produced the binding.
func (b *ViewBinding) Generation() uint64 {
	if b == nil {
		return 0
	}
	return b.generation
}

// Len returns the number of bound facilities.
func (b *ViewBinding) Len() int {
	if b == nil {
		return 0
	}
	return len(b.bindings)
}

// Lookup returns the binding for facility id.
func (b *ViewBinding) Lookup(id int) (Binding, bool) {
	if b == nil || id < 0 || id >= len(b.bindings) {
		return Binding{}, false
	}
	return b.bindings[id], true
}

// Bindings returns a copy of all bindings in facility order.
func (b *ViewBinding) Bindings() []Binding {
	if b == nil {
		return nil
	}
	out := make([]Binding, len(b.bindings))
	copy(out, b.bindings)
	return out
}
