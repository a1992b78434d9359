package mailmux

import "expvar"

// postmasterMetrics record postmaster and mailbox activity counters.
// Mailbox and session counters go to the package-level rootMetrics; each
// Postmaster keeps its own private instance for its worker gauges and
// protocol-error count.
type postmasterMetrics struct {
	framesRead     expvar.Int
	framesWritten  expvar.Int
	messagesIn     expvar.Int
	messagesOut    expvar.Int
	bytesGathered  expvar.Int
	protocolErrors expvar.Int
	readWorkers    expvar.Int // gauge: currently running reader workers
	writeWorkers   expvar.Int // gauge: currently running writer workers
	sessionsActive expvar.Int

	emap *expvar.Map
}

func newPostmasterMetrics() *postmasterMetrics {
	m := &postmasterMetrics{emap: new(expvar.Map)}
	m.emap.Set("frames_read", &m.framesRead)
	m.emap.Set("frames_written", &m.framesWritten)
	m.emap.Set("messages_in", &m.messagesIn)
	m.emap.Set("messages_out", &m.messagesOut)
	m.emap.Set("bytes_gathered", &m.bytesGathered)
	m.emap.Set("protocol_errors", &m.protocolErrors)
	m.emap.Set("read_workers", &m.readWorkers)
	m.emap.Set("write_workers", &m.writeWorkers)
	m.emap.Set("sessions_active", &m.sessionsActive)
	return m
}

var rootMetrics = newPostmasterMetrics()
