// Package boundary detects module transitions in a running conversation.
//
// Two signals feed the detector, and confirmation requires both inside a
// short pending window. The authoritative signal is a state-update turn
// whose structured payload names a new current module; the corroborating
// signal is a narrative transition cue in prose. Either one alone opens a
// pending window, and if its partner never lands the detector reverts,
// because narration routinely mentions other places without the party
// going anywhere and state payloads can echo stale data.
package boundary
