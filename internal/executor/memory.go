// internal/executor/memory.go
package executor

// selectorMemory is the one-shot carry-over of a confirmed element reference.
// Only a wait_for_element action arms it; the immediately following action
// consumes (and disarms) it whether or not it revalidates. The disarmed ref
// sticks around as the most-recently-used reference for diagnostics and
// capture verification.
type selectorMemory struct {
	ref   string
	armed bool
}

// arm stores a freshly confirmed reference, eligible for one-shot reuse.
func (m *selectorMemory) arm(ref string) {
	m.ref = ref
	m.armed = true
}

// remember stores a reference as most-recently-used without making it
// eligible for reuse.
func (m *selectorMemory) remember(ref string) {
	m.ref = ref
	m.armed = false
}

// takeArmed returns the armed reference, if any, and always disarms.
func (m *selectorMemory) takeArmed() (string, bool) {
	if !m.armed {
		return "", false
	}
	m.armed = false
	return m.ref, true
}

// disarm drops eligibility but keeps the last-used reference.
func (m *selectorMemory) disarm() {
	m.armed = false
}

// clear wipes the memory entirely. Navigation does this: no reference
// survives a page load.
func (m *selectorMemory) clear() {
	m.ref = ""
	m.armed = false
}

// last returns the most-recently-used reference, armed or not.
func (m *selectorMemory) last() string {
	return m.ref
}
