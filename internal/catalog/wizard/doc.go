// Package wizard sequences the multi-step addon creation flow.
//
// Each user-facing action is a transition: the wizard reloads the draft
// for the session token, consults the duplicate resolver or the import
// orchestrator as needed, mutates the aggregate, writes the draft back,
// and reports the next step. Transitions that require a draft treat a
// missing one as a signal to route back to the creation entry point, so an
// expired or lost session never turns into a hard failure.
package wizard
