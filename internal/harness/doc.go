// Package harness checks dispatch and caching against fabricated server
// responses.
//
// The dispatcher trusts the server: it does not verify that a get response
// accounts for every requested id or that a set response reports every
// submitted key. The harness does, so fixtures and fakes used in tests can
// be held to the protocol.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	account: A1
//	batch:
//	  calls:
//	    - id: fetch
//	      method: Task/get
//	      args: {ids: [t1, t2]}
//	responses:
//	  - method: Task/get
//	    id: fetch
//	    args: {accountId: A1, state: s1, list: [{id: t1}], notFound: [t2]}
//	assertions:
//	  - type: get_partition
//	    call: fetch
//	  - type: cache_entity
//	    entity: Task
//	    id: t1
//	    expect: {id: t1}
//
// # Assertion Types
//
//   - get_partition: list and notFound split the requested ids
//   - set_partition: every create key, update id and destroy id is reported once
//   - result_order: results came back in exactly the given client id order
//   - result_ok / result_error: a call succeeded, or failed with a given type
//   - cache_entity / cache_state: what the in-memory cache holds afterwards
//
// References such as "#ids" are resolved against the fabricated responses,
// so partitions can be checked for calls that never list their ids.
//
// The partition checks are also exported for direct use with typed calls:
//
//	if err := harness.GetPartition(call, resp); err != nil {
//	    t.Fatal(err)
//	}
package harness
