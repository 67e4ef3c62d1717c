// Package method maps wire method names to the Go types that implement them.
//
// Every call type declares its wire name through Method(). Entity packages
// register (call, response, name) triples once at process start, normally
// into Default from an init function. After registration the table is read
// only: Seal it before building requests and lookups need no coordination
// with writers.
//
// Lookups work in both directions:
//
//	name, _ := method.Default.ResolveName(reflect.TypeFor[shape.GetCall[tasks.Task]]())
//	// "Task/get"
//	call, resp, _ := method.Default.ResolveTypes("Task/get")
package method
