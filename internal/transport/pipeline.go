package transport

import "net/http"

// Options assembles a pipeline
type Options struct {
	// Candidates is called once per logical request
	Candidates func() []string
	// Client is shared by all addresses, DefaultHTTPClient when nil
	Client *http.Client
	// Credentials supplies the bearer token; nil sends no Authorization
	Credentials CredentialSource
	// Instrumentation observes requests and attempts, global logger only
	// when nil
	Instrumentation *Instrumentation
}

// NewPipeline composes the full request pipeline:
// request id, instrumentation, auth, failover and the HTTP transport.
func NewPipeline(opts Options) Doer {
	instr := opts.Instrumentation
	if instr == nil {
		instr = NewInstrumentation(nil, nil, nil)
	}

	core := WithFailover(opts.Candidates, Dialer(opts.Client), WithObserver(instr))

	middlewares := []Middleware{WithRequestID(), instr.Middleware()}
	if opts.Credentials != nil {
		middlewares = append(middlewares, WithAuth(opts.Credentials))
	}
	return Chain(core, middlewares...)
}
