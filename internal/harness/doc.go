// Package harness runs ordering scenarios through a real engine.
//
// A scenario lists events with fixed indices, the order in which they are
// published, and what the resulting trace must contain. The harness
// publishes them from one goroutine, shuts the engine down, decodes the
// trace and checks it.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: reverse_order
//	description: "Events published newest first are written in index order"
//	events:
//	  - index: 0
//	    kind: call
//	    location: com.example.Main.main
//	    static: true
//	    args:
//	      - { type: string, value: "hello" }
//	  - index: 1
//	    kind: store
//	    class: com.example.Main
//	    line: 12
//	    name: count
//	    value: { type: int, value: 42 }
//	  - index: 2
//	    kind: array_store
//	    class: com.example.Main
//	    line: 13
//	    array: 7
//	    array_index: 0
//	    value: { type: object, class: com.example.Foo, ident: 9 }
//	publish_order: [2, 1, 0]
//	expect_order: [0, 1, 2]
//
// publish_order may omit indices (a gap) or repeat them (a duplicate);
// expect_stall then describes the ordering stall reported at shutdown:
//
//	expect_stall:
//	  index: 2      # first index that never arrived (omitted if none)
//	  pending: 1    # events still parked behind it
//	  stale: [1]    # duplicate or stale indices
//
// # Golden Files
//
// RunWithGolden compares the raw trace bytes with
// testdata/golden/{name}.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
