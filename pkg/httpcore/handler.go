package httpcore

import "context"

// Handler is the terminal function producing the business response for
// a matched route. It may return:
//
//   - a *Response (optionally completed),
//   - a PlatformResponse, which bypasses further normalization,
//   - a proxy directive, consumed by the dispatch loop, or
//   - any other value, serialized per the route's produced media type.
type Handler func(ctx context.Context, req *Request, res *Response) (any, error)

// Next advances the filter chain to the following link.
type Next func(ctx context.Context) (any, error)

// Filter is a middleware-like function invoked before the terminal
// handler. A filter short-circuits the chain by returning without
// calling next, or by producing a completed response.
type Filter func(ctx context.Context, req *Request, res *Response, next Next) (any, error)

// ErrorHandler converts a request-time error into a normalized error
// response. A default exists; routers may override it per scope.
type ErrorHandler func(ctx context.Context, err error, req *Request) *Response
