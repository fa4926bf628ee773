// Package engine contains the turn engine: the state machine that resolves
// infection and treatment dice, role effects, cures, panic, and the win and
// loss conditions of Epidemic Express.
//
// The engine is single-threaded and synchronous. Every exported operation runs
// to completion, mutates the one GameState the engine owns, and then hands an
// immutable copy of that state to each subscriber. Invalid or out-of-phase
// calls are silent no-ops; nothing returns an error.
package engine
