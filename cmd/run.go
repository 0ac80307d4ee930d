package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"workflow-builder/api/services/catalog"
	"workflow-builder/api/services/credential"
	"workflow-builder/api/services/execution"
	"workflow-builder/api/services/identity"
	"workflow-builder/api/services/workflow"
)

func newRunCmd() *cobra.Command {
	var (
		creds       []string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "run <file.yaml>",
		Short: "Execute a workflow document locally with the built-in executors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("concurrency") {
				cfg.ExecutionConcurrency = concurrency
			}
			vault, err := parseCredentials(creds)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			wf, err := workflow.DecodeYAML(f)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = identity.WithPrincipal(ctx, identity.Principal{UserID: "cli"})
			return runWorkflow(ctx, cmd.OutOrStdout(), newEngine(vault, catalog.Default()), wf)
		},
	}
	cmd.Flags().StringArrayVar(&creds, "credential", nil, "credential available to the run as Provider=Name (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "max nodes run at once")
	return cmd
}

// parseCredentials builds a vault from Provider=Name pairs.
func parseCredentials(pairs []string) (*credential.StaticVault, error) {
	vault := credential.NewStaticVault()
	for i, pair := range pairs {
		provider, name, ok := strings.Cut(pair, "=")
		if !ok || provider == "" || name == "" {
			return nil, fmt.Errorf("invalid credential %q, want Provider=Name", pair)
		}
		vault.Add(credential.Entry{Ref: workflow.CredentialRef{
			ID:       fmt.Sprintf("cli-%d", i+1),
			Name:     name,
			Provider: provider,
		}})
	}
	return vault, nil
}

// runWorkflow executes wf, printing each log entry as it is appended and the
// node statuses at the end. A run that does not succeed is an error.
func runWorkflow(ctx context.Context, out io.Writer, engine *execution.Engine, wf *workflow.Workflow) error {
	graph := workflow.NewGraph()
	if err := graph.Load(wf); err != nil {
		return err
	}
	exec, err := engine.Start(ctx, wf, graph)
	if err != nil {
		return err
	}

	replay, live, cancel := exec.Subscribe()
	defer cancel()
	for _, entry := range replay {
		printLog(out, entry)
	}
	for {
		select {
		case entry, open := <-live:
			if !open {
				<-exec.Done()
				return report(out, exec, graph)
			}
			printLog(out, entry)
		case <-ctx.Done():
			engine.Stop(wf.ID)
			ctx = context.Background()
		}
	}
}

func printLog(out io.Writer, entry execution.Log) {
	node := entry.NodeID
	if node == "" {
		node = "-"
	}
	fmt.Fprintf(out, "%s %-5s [%s] %s\n",
		entry.Timestamp.Format("15:04:05.000"), strings.ToUpper(string(entry.Level)), node, entry.Message)
}

func report(out io.Writer, exec *execution.Execution, graph *workflow.Graph) error {
	snap := exec.Snapshot()
	fmt.Fprintln(out)
	for _, n := range graph.Nodes() {
		fmt.Fprintf(out, "  %-24s %s\n", n.DisplayName(), n.Status)
	}
	fmt.Fprintf(out, "\nExecution %s: %s\n", snap.Status, snap.Summary)
	if snap.Status != execution.StatusSuccess {
		return fmt.Errorf("execution %s", snap.Status)
	}
	return nil
}
