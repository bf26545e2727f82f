package types

// Replicated property keys. Session keys are written by the authority only;
// peer/<id>/... keys by their owner (the authority may set a peer's side).
//
// Session keys:
//   phase: "initializing" | "preFight" | "fighting" | "roundEnd" | "matchEnd"
//   currentRound: number        // 1-based
//   scoreA: number
//   scoreB: number
//   roundEndTimestamp: number   // ms on the session clock
//   roundActive: "true" | "false"
//   spawnPhaseComplete: "true" | "false"
//   matchWinner: "" | "A" | "B" | "draw"
//   endReason: "knockout" | "timeout" | "forfeit" | "score"
//
// Per-peer keys (peer/<id>/<sub>):
//   selectedCharacterIndex: number
//   colorR, colorG, colorB: number // 0-255
//   side: "left" | "right"
//   spawned: "true" | "false"
//
// Action payloads:
//   SpawnNow: {}
//   PhaseChanged: { phase: string, round: number }
//   RoundEnded: { round: number, winner: "A" | "B" | "draw", reason: string }
//   RequestRoundEnd: { round: number, winner: "A" | "B", reason: string }
//   ResetForRound: {}
//   RoundStarted: { round: number, endsAt: number } // ns on the session clock
