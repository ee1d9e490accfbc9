package hph

// slotNames label the two location generations in logs.
var slotNames = [2]string{"a", "b"}

// locationArena owns the two generations of the N×D location array. Exactly
// one slot is active; the other holds the reference copy taken by the last
// snapshot. Rolling back flips the active tag instead of copying.
type locationArena struct {
	slots  [2][]float64
	active int
}

func newLocationArena(n, dim int) *locationArena {
	return &locationArena{
		slots: [2][]float64{
			make([]float64, n*dim),
			make([]float64, n*dim),
		},
	}
}

// current returns the authoritative generation.
func (a *locationArena) current() []float64 {
	return a.slots[a.active]
}

// staged returns the generation holding the reference copy.
func (a *locationArena) staged() []float64 {
	return a.slots[1-a.active]
}

// activeName returns the label of the authoritative slot.
func (a *locationArena) activeName() string {
	return slotNames[a.active]
}

// snapshot copies the active generation into the staged slot so later
// in-place updates leave a reference to roll back to.
func (a *locationArena) snapshot() {
	copy(a.slots[1-a.active], a.slots[a.active])
}

// flip makes the staged generation authoritative.
func (a *locationArena) flip() {
	a.active = 1 - a.active
}
