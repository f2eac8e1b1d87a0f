// Package agent turns free-form SMS conversations into validated actions
// against the download lifecycle. A bounded loop presents a closed action
// registry to a language-model oracle, executes at most one validated action
// per iteration, and falls back to a canned reply when the iteration cap is
// hit.
package agent
