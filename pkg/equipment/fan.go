package equipment

// NewFan builds the generic Controller for a ventilation fan: a coil
// drive, a running-feedback input, and a panel auto/manual switch, with
// the Auto gate enforced (operators cannot override a fan under
// automatic environment control from the status API).
func NewFan(mgr Reader, name, title, onOffCoil, runningFeedback, autoManual string) (*Controller, error) {
	cfg, err := NewConfig(name, title).
		WithOnOff(onOffCoil).
		WithFeedback(runningFeedback).
		WithAutoManual(autoManual).
		WithEnforceAutoGate(true).
		Build()
	if err != nil {
		return nil, err
	}
	return New(mgr, cfg), nil
}
