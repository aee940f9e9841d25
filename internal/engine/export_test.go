package engine

// HoldQuery takes the shared index lock as an in-flight query would and
// returns its release.
func (e *Engine) HoldQuery() func() {
	e.index.RLock()
	return e.index.RUnlock
}
