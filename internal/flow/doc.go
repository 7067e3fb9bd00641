// Package flow drives a profile through the schema fields.
//
// # Modes
//
// Sign-up visits fields strictly in schema order. Single-valued input is
// written and the step advances; multi-valued input is appended and the
// step only advances on an explicit Advance. Reaching the end finalizes the
// profile when it is complete and unique.
//
// Edit jumps straight to a chosen field and returns to the field picker
// afterwards. Multi-valued choices toggle membership.
//
// # Rendering
//
// Every accepted change re-renders one fixed message per flow: the outline
// of all fields followed by the prompt for the current field and its
// option buttons.
//
// The profile is re-fetched from the store at the start of every event;
// the session only carries the flow position.
package flow
