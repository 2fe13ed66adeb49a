package vault

// ExtendRetention extends every per-principal entry whose remaining lifetime
// fell below the retention threshold, restoring archived ones. Entries with
// enough lifetime left are untouched, so repeated runs are harmless. It
// returns the number of entries extended.
func (e *Engine) ExtendRetention() (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.inFlight {
		return 0, ErrReentrantCall
	}
	e.inFlight = true
	defer func() { e.inFlight = false }()
	extended := 0
	snapshot := e.state.Snapshot()
	keys, err := e.state.VaultPrincipalKeys()
	if err == nil {
		for _, key := range keys {
			var ok bool
			if ok, err = e.state.ExtendTTL(key); err != nil {
				break
			}
			if ok {
				extended++
			}
		}
	}
	if err == nil {
		err = e.state.Commit()
	}
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.logger.Error("retention maintenance failed", "error", err)
		return 0, err
	}
	if extended > 0 {
		e.logger.Info("retention extended", "entries", extended)
	}
	e.metrics.AddRetentionExtended(extended)
	return extended, nil
}
