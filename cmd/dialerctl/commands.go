package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acme/predictive-dialer/internal/domain"
)

func registerCommands() {
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(queueCmd())
	for _, action := range []string{"start", "pause", "stop"} {
		rootCmd.AddCommand(lifecycleCmd(action))
	}
	rootCmd.AddCommand(skipCmd())
	rootCmd.AddCommand(resultCmd())
	rootCmd.AddCommand(callsCmd())
	rootCmd.AddCommand(leadsCmd())
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show engine state and active calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := newClient().State(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(snap)
			}
			renderState(os.Stdout, snap)
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List the lead queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			leads, err := newClient().Queue(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(leads)
			}
			renderLeads(os.Stdout, leads)
			return nil
		},
	}

	var file string
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the queue with leads from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var leads []domain.Lead
			if err := json.Unmarshal(raw, &leads); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			updated, err := newClient().SetQueue(cmd.Context(), leads)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(updated)
			}
			renderLeads(os.Stdout, updated)
			return nil
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "JSON array of leads")
	_ = set.MarkFlagRequired("file")
	cmd.AddCommand(set)
	return cmd
}

func lifecycleCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: "Send " + action + " to the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := newClient().Lifecycle(cmd.Context(), action)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(snap)
			}
			fmt.Printf("state: %s\n", snap.State)
			return nil
		},
	}
}

func skipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "End the post-call wait early",
		RunE: func(cmd *cobra.Command, args []string) error {
			skipped, err := newClient().SkipWaiting(cmd.Context())
			if err != nil {
				return err
			}
			if skipped {
				fmt.Println("wait skipped")
			} else {
				fmt.Println("not waiting")
			}
			return nil
		},
	}
}

func resultCmd() *cobra.Command {
	var result, comment string
	cmd := &cobra.Command{
		Use:   "result <lead-id>",
		Short: "Record the call result for a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lead, err := newClient().SetResult(cmd.Context(), args[0], result, comment)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(lead)
			}
			renderLeads(os.Stdout, []domain.Lead{lead})
			return nil
		},
	}
	cmd.Flags().StringVar(&result, "result", "", "call result")
	cmd.Flags().StringVar(&comment, "comment", "", "operator comment")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func callsCmd() *cobra.Command {
	var (
		limit int
		token string
	)
	cmd := &cobra.Command{
		Use:   "calls <lead-id>",
		Short: "Show a lead's call history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := newClient().Calls(cmd.Context(), args[0], limit, token)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(page)
			}
			renderCalls(os.Stdout, page)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().StringVar(&token, "page-token", "", "token from a previous page")
	return cmd
}

func leadsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "leads", Short: "Manage the persistent lead store"}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count stored leads by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := newClient().LeadStats(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(stats)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"State", "Leads"})
			states := make([]string, 0, len(stats.ByState))
			for s := range stats.ByState {
				states = append(states, s)
			}
			sort.Strings(states)
			for _, s := range states {
				tw.AppendRow(table.Row{s, stats.ByState[s]})
			}
			tw.AppendFooter(table.Row{"Total", stats.Total})
			tw.Render()
			return nil
		},
	})

	var file string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Import leads from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var leads []map[string]any
			if err := json.Unmarshal(raw, &leads); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			n, err := newClient().ImportLeads(cmd.Context(), leads)
			if err != nil {
				return err
			}
			fmt.Printf("imported %d leads\n", n)
			return nil
		},
	}
	imp.Flags().StringVarP(&file, "file", "f", "", "JSON array of leads")
	_ = imp.MarkFlagRequired("file")
	cmd.AddCommand(imp)
	return cmd
}

func renderState(w io.Writer, snap domain.Snapshot) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRow(table.Row{"State", snap.State})
	tw.AppendRow(table.Row{"Queue", snap.QueueLength})
	tw.AppendRow(table.Row{"Pending", snap.PendingCount})
	tw.AppendRow(table.Row{"Completed", snap.CompletedCount})
	tw.AppendRow(table.Row{"Failed", snap.FailedCount})
	current := "-"
	if snap.CurrentLead != nil {
		current = snap.CurrentLead.ID + " " + snap.CurrentLead.Phone
	}
	tw.AppendRow(table.Row{"In call", current})
	if snap.Waiting && snap.WaitingUntil != nil {
		tw.AppendRow(table.Row{"Waiting until", snap.WaitingUntil.Local().Format(time.TimeOnly)})
	}
	tw.Render()

	if len(snap.ActiveCalls) == 0 {
		return
	}
	calls := table.NewWriter()
	calls.SetOutputMirror(w)
	calls.AppendHeader(table.Row{"Call", "Lead", "Phone", "Status", "Ringing for"})
	for _, c := range snap.ActiveCalls {
		calls.AppendRow(table.Row{c.CallID, c.Lead.ID, c.Lead.Phone, c.Status, time.Since(c.StartTime).Round(time.Second)})
	}
	calls.Render()
}

func renderLeads(w io.Writer, leads []domain.Lead) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Phone", "Name", "Status", "Attempts", "Result", "Error"})
	for _, l := range leads {
		tw.AppendRow(table.Row{l.ID, l.Phone, l.DisplayName, l.Status, l.Attempts, l.CallResult, l.Error})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "Total", len(leads)})
	tw.Render()
}

func renderCalls(w io.Writer, page CallPage) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"When", "Event", "Call", "Status", "Error"})
	for _, ev := range page.Items {
		tw.AppendRow(table.Row{ev.OccurredAt.Local().Format(time.DateTime), ev.Event, ev.CallID, ev.Status, ev.Error})
	}
	tw.Render()
	if page.NextPageToken != "" {
		fmt.Fprintf(w, "next page: --page-token %s\n", page.NextPageToken)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
