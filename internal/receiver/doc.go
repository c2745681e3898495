// Package receiver implements the Onkyo receiver protocol engine for onkyod.
//
// It covers everything that happens between a human-readable client command
// such as "volume 40" and the ISCP bytes written to the serial line, and back
// again from the receiver's asynchronous status frames to the notification
// lines broadcast to clients.
//
// # Components
//
//   - Wire codec: Frame/Unframe wrap and unwrap the "!1" envelope, and
//     FrameReader splits a byte stream into frames.
//   - StatusTable: exact-match table of status codes plus numeric decoders
//     (volume, tuner, preset, sleep, subwoofer level, A/V sync).
//   - CommandTable: the command grammar, one encoder per command family.
//   - Queue: per-receiver FIFO with duplicate suppression and power gating.
//   - Session: one attached receiver, owning its device handle, queue,
//     pacing state, power set and virtual sleep timers.
//
// # Concurrency
//
// Nothing in this package locks. A Session is owned by exactly one goroutine
// (the gateway event loop). The tables are immutable after construction and
// may be shared freely.
//
// # Wire format
//
//	outgoing: "!1" + body + "\r"           e.g. "!1PWR01\r"
//	incoming: "!1" + code + "\x1a"          e.g. "!1MVL32\x1a"
package receiver
