package types

// Client -> Server
// setProperty:
//   key: string   // session key, or "peer/<id>/<sub>" for per-peer keys
//   value: string
//
// action:
//   target: { kind: "all" | "others" | "authority" | "peer", peerId?: string }
//   action:
//     name: "SpawnNow" | "PhaseChanged" | "RoundEnded" | "RequestRoundEnd" |
//           "ResetForRound" | "RoundStarted"
//     payload: object // shape depends on name, see snapshot.go

// Server -> Client
// welcome:
//   you: string       // your peer id
//   authority: string // peer id that owns session keys
//   nowMs: number     // session clock at send time
//   peers: [{ id: string, nick: string }]
//   entries: [{ key, value, writer, seq }] // full property snapshot
//
// peerJoined:
//   peer: { id: string, nick: string }
//
// peerLeft:
//   peer: { id: string, nick: string }
//   authority: string // post-departure authority, may have migrated
//
// property:
//   entry: { key: string, value: string, writer: string, seq: number }
//
// action:
//   from: string
//   action: { name: string, payload: object }
//
// error:
//   error: string // "session full", "key not writable", ...
