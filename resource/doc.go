// Package resource provides capability handle management.
//
// Capability hosts hand out opaque handles for streams, descriptors,
// directory iterators, pollables and clocks. This package maps those
// integer handles to Go values and recycles freed slots.
//
// # Handle Table
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	handle := table.Insert(resource.KindDescriptor, desc)
//
//	// Kind-checked retrieval
//	value, ok := table.GetKind(handle, resource.KindDescriptor) // ok
//	value, ok := table.GetKind(handle, resource.KindPollable)   // !ok
//
//	// Remove calls Drop on values implementing Dropper
//	table.Remove(handle)
//
// # Leak Accounting
//
// Every handle a guest obtains must be released through the path that owns
// it. A LiveCounter subscribed to the table reports what is still alive:
//
//	counter := resource.NewLiveCounter()
//	table.Subscribe(counter)
//	...
//	if n := counter.Live(resource.KindDirectoryEntryStream); n != 0 {
//	    log.Printf("%d directory iterators leaked", n)
//	}
//
// Handles are not garbage collected. Call table.Close() to release
// everything when an instance is torn down.
package resource
