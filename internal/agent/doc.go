// Package agent is the agent-execution engine driven by research sessions.
//
// The package implements:
//   - Engine: a stream interface yielding raw events (graph path, stream mode, payload)
//   - ReactAgent: a model/tool loop that emits "updates" and "values" events per step
//   - Built-in tools over a virtual file system and todo list kept in State
//   - NewTaskTool: the delegation tool that runs a sub-agent as a nested graph
//   - Builder: composes a fresh supervisor per session from configuration
package agent
