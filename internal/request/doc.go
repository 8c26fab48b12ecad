// Package request implements the synchronous request/response cycle for
// one-shot reference and historical queries.
//
// A request is submitted once, then events are polled with a bounded
// timeout until the provider flags the response complete; every response
// message seen along the way is collected, since a provider may answer
// across several messages. Any lower-level failure marks the session broken
// so the next call self-heals.
package request
