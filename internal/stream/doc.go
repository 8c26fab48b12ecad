// Package stream implements the long-running subscription pipeline.
//
// Loop polls the subscription session, classifies events, updates the
// registry on provider-reported subscription failures, and pushes batched
// updates to the fan-out sink at a bounded rate. The loop never terminates
// on a bad event: failures mark the session broken, the loop backs off
// briefly, and the next iteration self-heals by reopening the session and
// replaying the registry's subscriptions.
//
// Service is the thin bridge the API surface uses to subscribe and
// unsubscribe securities.
package stream
