// Package filter provides the composable predicate tree used by query calls.
//
// A Filter is either a leaf wrapping one entity-specific Condition, or an
// operator node (AND, OR, NOT) over an ordered sequence of child filters:
//
//	f := filter.And(
//	    filter.Where(tasks.TaskFilterCondition{InTaskList: "L1"}),
//	    filter.Not(filter.Where(tasks.TaskFilterCondition{Status: "completed"})),
//	)
//
// Filters are values. Children are copied in and out, so a tree can never
// contain itself. The zero Filter means "no filter" and is omitted from
// call arguments.
//
// SERIALIZATION:
//
// Leaves serialize as the condition object, nodes as
// {"conditions":[...],"operator":"AND"}. Output goes through
// wire.MarshalCanonical, so trees with the same shape and leaf values are
// byte-identical and trees differing in any operator are not. A leaf whose
// encoding contains an "operator" member is rejected, since it would be
// indistinguishable from a node.
package filter
