package jobctl

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/rishansujesh/job-registry/internal/protocol"
)

// Hash prints the id the descriptor in path hashes to. A claimed id that
// differs from it is an error.
func (a *App) Hash(path string) error {
	job, err := parseDescriptor(path)
	if err != nil {
		return err
	}
	computed := job.ComputedID()
	fmt.Fprintln(a.Out, computed.String())

	claimed := job.ID()
	if !claimed.IsZero() && claimed != computed {
		return errors.Errorf("descriptor claims id %s but its content hashes to %s", claimed, computed)
	}
	return nil
}

// Create submits the descriptor in path. Anything but OK is an error.
func (a *App) Create(path string) error {
	b, err := readDescriptor(path)
	if err != nil {
		return err
	}
	ctx, cancel := a.context()
	defer cancel()

	resp, err := a.Params.JobAPI.CreateJobJSON(ctx, b)
	if err != nil {
		return errors.WithMessage(err, "creating job")
	}
	switch resp.Status {
	case protocol.StatusOK:
		fmt.Fprintf(a.Out, "Created job %s\n", resp.ID)
		return nil
	case protocol.StatusJobAlreadyExists:
		fmt.Fprintf(a.Out, "Job %s already exists\n", resp.ID)
		return errors.Errorf("job %s already exists", resp.ID)
	default:
		fmt.Fprintf(a.Out, "Job rejected: %s\n", resp.Status)
		for _, e := range resp.Errors {
			fmt.Fprintf(a.Out, "  - %s\n", e)
		}
		return errors.Errorf("job rejected with status %s", resp.Status)
	}
}

// Get prints a stored job as YAML.
func (a *App) Get(id string) error {
	ctx, cancel := a.context()
	defer cancel()

	view, err := a.Params.JobAPI.GetJob(ctx, id)
	if err != nil {
		return errors.WithMessagef(err, "getting job %s", id)
	}
	b, err := yaml.Marshal(view)
	if err != nil {
		return errors.Wrapf(err, "encoding job %s", id)
	}
	_, err = a.Out.Write(b)
	return err
}

// List prints one line per stored job.
func (a *App) List(req protocol.ListJobsRequest) error {
	ctx, cancel := a.context()
	defer cancel()

	views, err := a.Params.JobAPI.ListJobs(ctx, req)
	if err != nil {
		return errors.WithMessage(err, "listing jobs")
	}
	w := tabwriter.NewWriter(a.Out, 1, 1, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIMAGE\tCREATED\tAUDIT")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Job.ID(), v.Job.Image(), v.CreatedAt.UTC().Format(time.RFC3339), auditState(v))
	}
	return w.Flush()
}

func auditState(v protocol.JobView) string {
	if v.AuditOK == nil {
		return "-"
	}
	state := "ok"
	if !*v.AuditOK {
		state = "MISMATCH"
	}
	if v.AuditedAt != nil {
		state += " (" + v.AuditedAt.UTC().Format(time.RFC3339) + ")"
	}
	return state
}

// Delete removes a job. A job that does not exist is an error.
func (a *App) Delete(id string) error {
	ctx, cancel := a.context()
	defer cancel()

	resp, err := a.Params.JobAPI.DeleteJob(ctx, id)
	if err != nil {
		return errors.WithMessagef(err, "deleting job %s", id)
	}
	if resp.Status == protocol.DeleteStatusJobNotFound {
		return errors.Errorf("job %s not found", id)
	}
	fmt.Fprintf(a.Out, "Deleted job %s\n", id)
	return nil
}

// JobIDFromArgs accepts an id either as one name:version:hash argument or
// as three separate arguments.
func JobIDFromArgs(args []string) (string, error) {
	switch len(args) {
	case 1:
		return args[0], nil
	case 3:
		return strings.Join(args, ":"), nil
	default:
		return "", errors.Errorf("expected <name:version:hash> or <name> <version> <hash>, got %d arguments", len(args))
	}
}
