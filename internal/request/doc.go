// Package request assembles method calls into one batch request.
//
// A Builder accepts calls in order, assigns each a client id, and records
// result references: instructions for the server to substitute part of an
// earlier call's response into a later call's arguments. References may only
// point backward in invocation order, mirroring the server's single pass over
// the batch:
//
//	b := request.NewBuilder()
//	q, _ := b.Add(shape.QueryCall[tasks.Task, tasks.TaskFilterCondition]{AccountID: "A1"})
//	b.Add(shape.GetCall[tasks.Task]{AccountID: "A1", IDsRef: request.Ref(q, request.PathIDs)})
//	req, err := b.Build()
//
// References are inert on the client. A referenced field "ids" serializes as
// "#ids" holding {"resultOf","name","path"}; nothing is resolved locally.
//
// Thread-safety: a Builder is single-threaded and does no locking. A built
// Request is immutable and safe to share.
package request
