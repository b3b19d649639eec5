package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Pulp tasks",
	}

	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "wait <id|pulp_href|all>",
		Short: "Wait for a task, or for every running task",
		Args:  cobra.ExactArgs(1),
		RunE:  runTaskWait,
	})

	return cmd
}

func newTaskListCmd() *cobra.Command {
	var onlyRunning bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			list, err := c.ListTasks(cmd.Context(), onlyRunning)
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return printJSON(cc.Out, list.Results)
			}

			printTaskTable(cc, list.Results)

			return nil
		},
	}

	cmd.Flags().BoolVar(&onlyRunning, "only-running", false, "only waiting and running tasks")

	return cmd
}

func printTaskTable(cc *CLIContext, tasks []galaxy.Task) {
	if len(tasks) == 0 {
		cc.Statusf("No tasks.\n")
		return
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			galaxy.PulpHrefToID(t.PulpHref),
			t.Name,
			string(t.State),
			formatTime(t.StartedAt),
			formatTime(t.FinishedAt),
		})
	}

	printTable(cc.Out, []string{"ID", "NAME", "STATE", "STARTED", "FINISHED"}, rows)
}

func runTaskWait(cmd *cobra.Command, args []string) error {
	cc, c, err := session(cmd)
	if err != nil {
		return err
	}

	if args[0] == "all" {
		left, err := c.WaitAll(cmd.Context())
		if err != nil {
			return err
		}

		if left > 0 {
			return fmt.Errorf("%w: %d tasks still running", galaxy.ErrTaskTimeout, left)
		}

		cc.Statusf("All tasks finished\n")

		return nil
	}

	id := galaxy.PulpHrefToID(args[0])
	if id == "" {
		return fmt.Errorf("%q is not a task id or pulp_href", args[0])
	}

	task, err := c.WaitTask(cmd.Context(), id)
	if err != nil {
		return err
	}

	cc.Statusf("Task %s %s\n", id, task.State)

	return nil
}
