// Package orchestrator decides who should act next in the company.
//
// The Orchestrator inspects open tasks, the active meeting and the time of
// the last message, and returns at most one Decision per tick:
//   - assign: the top open task has no role, so the coordinator routes it
//   - standup: nothing is running and no meeting is open
//   - nudge: the active meeting has been silent past the threshold
//
// Decide is a pure function of that state. TurnLoop is the host loop that
// ticks on an interval and executes each decision once, in the goroutine
// that produced it, by assigning tasks, opening meetings and posting agent
// replies.
//
// Example usage:
//
//	agents, _ := orchestrator.NewAgentRegistry(config.DefaultAgents(), "ceo")
//	loop := orchestrator.NewTurnLoop(orchestrator.RequiredConfig{
//		Store:   db,
//		Agents:  agents,
//		Replies: api.NewResponder(client),
//	}, orchestrator.WithSilenceThreshold(30*time.Second))
//	err := loop.Run(ctx)
package orchestrator
