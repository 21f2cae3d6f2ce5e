package jobctl

import (
	"fmt"
	"text/tabwriter"

	redisx "github.com/rishansujesh/job-registry/internal/redis"
)

// EventsLag prints the event stream length, the entries the consumer group
// has read but not acknowledged, and the dead letter backlog.
func (a *App) EventsLag() error {
	ctx, cancel := a.context()
	defer cancel()

	stream, err := redisx.Stats(ctx, a.Params.Redis, a.Params.Stream, a.Params.Group)
	if err != nil {
		return err
	}
	dlq, err := redisx.Stats(ctx, a.Params.Redis, a.Params.DeadLetter, "")
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.Out, 1, 1, 2, ' ', 0)
	fmt.Fprintf(w, "Stream:\t%s\n", a.Params.Stream)
	fmt.Fprintf(w, "Length:\t%d\n", stream.Length)
	fmt.Fprintf(w, "Unacknowledged (%s):\t%d\n", a.Params.Group, stream.Pending)
	fmt.Fprintf(w, "Dead letters (%s):\t%d\n", a.Params.DeadLetter, dlq.Length)
	return w.Flush()
}

// EventsPending lists up to count dead-lettered events awaiting requeue.
func (a *App) EventsPending(count int64) error {
	ctx, cancel := a.context()
	defer cancel()

	letters, err := redisx.DeadLetters(ctx, a.Params.Redis, a.Params.DeadLetter, count)
	if err != nil {
		return err
	}
	if len(letters) == 0 {
		fmt.Fprintf(a.Out, "No dead letters on %s\n", a.Params.DeadLetter)
		return nil
	}
	w := tabwriter.NewWriter(a.Out, 1, 1, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tFAILED AT\tERROR")
	for _, l := range letters {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.ID, l.SourceID, l.FailedAt, l.Error)
	}
	return w.Flush()
}

// RequeueDeadLetters moves up to count dead letters back onto the event
// stream.
func (a *App) RequeueDeadLetters(count int64) error {
	ctx, cancel := a.context()
	defer cancel()

	moved, err := redisx.Requeue(ctx, a.Params.Redis, a.Params.DeadLetter, a.Params.Stream, count)
	fmt.Fprintf(a.Out, "Requeued %d events from %s to %s\n", moved, a.Params.DeadLetter, a.Params.Stream)
	return err
}
