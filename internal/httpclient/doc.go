// Package httpclient turns configured targets into HTTP requests and sends them for the
// dispatcher.
//
// # Request Building
//
// [NewRequestBuilders] creates one builder per configured URL; each [RequestBuilder.Build]
// call yields a fresh request with its own headers and body reader:
//
//	builders, err := httpclient.NewRequestBuilders(cfg)
//	if err != nil {
//		return err
//	}
//	reqs, buildErr := httpclient.Requests(ctx, builders, !cfg.Once)
//
// # Sending
//
// [Requester] adapts an [net/http.Client] to the dispatcher's client interface. It reads
// every response to the end, reports statuses >= 400 as errors, and starts a client span
// per request when tracing is enabled:
//
//	client := httpclient.NewRequester(httpclient.NewClient(cfg.Timeout), httpclient.WithTracing(provider))
//
// [NewClient] returns a pooled client whose own timeout is twice the dispatcher timeout,
// so calls the dispatcher has given up on still release their connections.
package httpclient
