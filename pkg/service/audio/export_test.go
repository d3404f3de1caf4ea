package audio

import "context"

// WithCommandRunner replaces process execution, for tests
func WithCommandRunner(run func(ctx context.Context, name string, args ...string) ([]byte, error)) Option {
	return func(p *Processor) {
		p.run = run
	}
}
