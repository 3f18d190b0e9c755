// Package store tracks the fetch lifecycle of remote resources, one slot per
// resource key. It is structured into small files by concern:
//
//   - types.go: Status, Key, Snapshot, Definition.
//   - config.go: Config and package defaults; New applies defaults.
//   - store.go: Store with Trigger/Refetch/Select/Await/Put and resolution.
//   - resource.go: typed access (Define, Bind, Resource[T], Slot[T]).
//   - events.go: Event, EventPublisher, fan-out; eventpub_memory.go for tests.
//   - metrics.go: Prometheus publisher.
//   - errors.go: error values and IsX helpers.
//
// A slot moves NotStarted -> Loading -> {Ready, Failed}, and from Ready or
// Failed back to Loading. Trigger is a no-op while a slot is Loading or Ready;
// Refetch always issues a new fetch. Every fetch is tagged with a per-key
// sequence number and only the latest issued fetch may resolve the slot.
// A failed fetch never clears previously fetched data.
//
// Fetch failures never escape the store: they are recorded as slot state with
// a non-empty, human-readable error message.
package store
