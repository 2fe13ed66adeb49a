package vault

func (e *Engine) phase(cfg *Config) Phase {
	if cfg == nil {
		return PhaseUninitialized
	}
	if e.now() >= cfg.Maturity {
		return PhaseMatured
	}
	return PhaseActive
}

// Phase reports the derived lifecycle stage.
func (e *Engine) Phase() (Phase, error) {
	if e == nil || e.state == nil {
		return PhaseUninitialized, errNilState
	}
	cfg, ok, err := e.state.VaultConfig()
	if err != nil {
		return PhaseUninitialized, err
	}
	if !ok {
		return PhaseUninitialized, nil
	}
	return e.phase(cfg), nil
}
