package ui

// quietPresenter consumes events but produces no output. The channel still
// has to be drained so the engine's emits never back up.
type quietPresenter struct{}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
