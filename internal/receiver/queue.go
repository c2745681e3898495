package receiver

// QueuedCommand is one pending wire command.
type QueuedCommand struct {
	// Body is the unframed wire command, e.g. "MVL32". It is also the
	// deduplication key.
	Body string

	// Zone is used to drop the command if the zone is off when it reaches
	// the head of the queue.
	Zone Zone

	// Power commands are never dropped.
	Power bool
}

// Queue is a FIFO of pending commands with body-level deduplication.
// It is not safe for concurrent use.
type Queue struct {
	items   []QueuedCommand
	pending map[string]struct{}
	limit   int
}

// NewQueue creates a queue holding at most limit commands. A limit of zero
// or less means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{
		pending: make(map[string]struct{}),
		limit:   limit,
	}
}

// Push appends cmd unless an identical body is already pending, in which
// case it reports false and changes nothing.
func (q *Queue) Push(cmd QueuedCommand) (bool, error) {
	if _, dup := q.pending[cmd.Body]; dup {
		return false, nil
	}
	if q.limit > 0 && len(q.items) >= q.limit {
		return false, ErrQueueFull
	}
	q.items = append(q.items, cmd)
	q.pending[cmd.Body] = struct{}{}
	return true, nil
}

// PopSendable removes and returns the first command that may be sent given
// the current power state. Non-power commands for powered-off zones ahead
// of it are discarded; the number dropped is returned.
func (q *Queue) PopSendable(power PowerSet) (cmd QueuedCommand, ok bool, discarded int) {
	for len(q.items) > 0 {
		head := q.items[0]
		q.items[0] = QueuedCommand{}
		q.items = q.items[1:]
		delete(q.pending, head.Body)

		if head.Power || power.Has(head.Zone) {
			return head, true, discarded
		}
		discarded++
	}
	q.items = nil
	return QueuedCommand{}, false, discarded
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	return len(q.items)
}

// Bodies returns the pending wire bodies in send order.
func (q *Queue) Bodies() []string {
	out := make([]string, len(q.items))
	for i, c := range q.items {
		out[i] = c.Body
	}
	return out
}
