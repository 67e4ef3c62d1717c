// Package tasks defines the Task and TaskList record types and registers
// their get, set, query and changes methods.
//
// Importing the package registers the methods in method.Default:
//
//	b := request.NewBuilder()
//	q, _ := b.Add(tasks.Query{AccountID: acct, Filter: filter.Where(tasks.TaskFilterCondition{Status: tasks.StatusNeedsAction})})
//	b.Add(tasks.Get{AccountID: acct, IDsRef: request.Ref(q, request.PathIDs)})
package tasks
