package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/dais/internal/config"
	"github.com/kalambet/dais/internal/contacts"
	"github.com/kalambet/dais/internal/docstore"
	"github.com/kalambet/dais/internal/household"
	"github.com/kalambet/dais/internal/storage"
)

// --- household ---

var householdCmd = &cobra.Command{
	Use:   "household",
	Short: "Household cards, tasks and completions",
}

var householdCardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "List cards with their tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		weekday, _ := cmd.Flags().GetInt("weekday")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listCards(cmd.Context(), client, cmd.OutOrStdout(), weekday)
	},
}

func listCards(ctx context.Context, c *apiClient, w io.Writer, weekday int) error {
	resp, err := c.get(ctx, "/household/cards")
	if err != nil {
		return err
	}
	var list struct {
		Cards []household.CardWithTasks `json:"cards"`
	}
	if err := decodeJSON(resp, &list); err != nil {
		return err
	}

	shown := 0
	for _, card := range list.Cards {
		if weekday != 0 && card.Weekday != weekday {
			continue
		}
		shown++
		printItem(w, card.ID, "%s  %s", colorize(colorBold, household.WeekdayLabel(card.Weekday)), card.Title)
		for _, a := range card.Tasks {
			fmt.Fprintf(w, "    - %s\n", a.Task.Label)
		}
	}
	if shown == 0 {
		fmt.Fprintln(w, "No cards found.")
	}
	return nil
}

var householdCompleteCmd = &cobra.Command{
	Use:   "complete <card-id>",
	Short: "Mark a card as done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, _ := cmd.Flags().GetStringSlice("task")
		note, _ := cmd.Flags().GetString("note")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return completeCard(cmd.Context(), client, cmd.OutOrStdout(), args[0], tasks, note)
	},
}

func completeCard(ctx context.Context, c *apiClient, w io.Writer, cardID string, taskIDs []string, note string) error {
	if taskIDs == nil {
		taskIDs = []string{}
	}
	resp, err := c.post(ctx, "/household/entries", map[string]any{
		"cardId":           cardID,
		"completedTaskIds": taskIDs,
		"note":             note,
	})
	if err != nil {
		return err
	}
	var result household.CompletionResult
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	printSuccess("%s erledigt (+%d XP)", result.Entry.CardTitle, result.XPEarned)
	for _, label := range result.Entry.CompletedTasks {
		fmt.Fprintf(w, "  ✓ %s\n", label)
	}
	return nil
}

var householdWeekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show completions of the current week",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listWeek(cmd.Context(), client, cmd.OutOrStdout(), from)
	},
}

func listWeek(ctx context.Context, c *apiClient, w io.Writer, from string) error {
	path := "/household/entries"
	if from != "" {
		path += "?from=" + url.QueryEscape(from)
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	var week struct {
		Entries []household.EntrySummary `json:"entries"`
	}
	if err := decodeJSON(resp, &week); err != nil {
		return err
	}
	if len(week.Entries) == 0 {
		fmt.Fprintln(w, "Nothing done yet this week.")
		return nil
	}
	for _, e := range week.Entries {
		line := fmt.Sprintf("%s  %s  %s", e.CreatedAt.Local().Format("Mon 02.01. 15:04"), e.CardTitle,
			strings.Join(e.CompletedTasks, ", "))
		if e.Note != nil {
			line += "  (" + *e.Note + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

var householdTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List household tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/household/tasks")
		if err != nil {
			return err
		}
		var tasks []household.Task
		if err := decodeJSON(resp, &tasks); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, t := range tasks {
			label := t.Label
			if !t.Active {
				label = colorize(colorDim, label+" (inaktiv)")
			}
			printItem(w, t.ID, "%s", label)
		}
		return nil
	},
}

var householdTasksAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Add a household task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/household/tasks", map[string]string{"label": strings.Join(args, " ")})
		if err != nil {
			return err
		}
		var task household.Task
		if err := decodeJSON(resp, &task); err != nil {
			return err
		}
		printSuccess("Added task %s (%s)", task.Label, task.ID)
		return nil
	},
}

var householdLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the household journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/household/logs?limit=%d", limit))
		if err != nil {
			return err
		}
		var entries []storage.JournalEntry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(w, "Journal is empty.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.ContentHTML)
		}
		return nil
	},
}

func init() {
	householdCardsCmd.Flags().Int("weekday", 0, "only cards for this weekday (1 = Monday)")
	householdCompleteCmd.Flags().StringSlice("task", nil, "completed task id (repeatable)")
	householdCompleteCmd.Flags().String("note", "", "optional note")
	householdWeekCmd.Flags().String("from", "", "week start (YYYY-MM-DD)")
	householdLogCmd.Flags().Int("limit", 20, "maximum number of journal entries")

	householdTasksCmd.AddCommand(householdTasksAddCmd)
	householdCmd.AddCommand(householdCardsCmd)
	householdCmd.AddCommand(householdCompleteCmd)
	householdCmd.AddCommand(householdWeekCmd)
	householdCmd.AddCommand(householdTasksCmd)
	householdCmd.AddCommand(householdLogCmd)
}

// --- contacts ---

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "People to keep in touch with",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts with their plans and recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listContacts(cmd.Context(), client, cmd.OutOrStdout())
	},
}

func listContacts(ctx context.Context, c *apiClient, w io.Writer) error {
	resp, err := c.get(ctx, "/contacts")
	if err != nil {
		return err
	}
	var payload contacts.Payload
	if err := decodeJSON(resp, &payload); err != nil {
		return err
	}
	if len(payload.Persons) == 0 {
		fmt.Fprintln(w, "No contacts.")
		return nil
	}

	totals := make(map[string]int, len(payload.Stats))
	for _, s := range payload.Stats {
		totals[s.PersonID] = s.Total
	}
	for _, p := range payload.Persons {
		printItem(w, p.ID, "%s (%s), %d Kontakte", colorize(colorBold, p.Name), p.Relation.Label(), totals[p.ID])
		for _, a := range p.Assignments {
			fmt.Fprintf(w, "    %s: %s\n", a.Cadence.Label(), a.Activity.Label())
		}
	}
	return nil
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a contact",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		relation, _ := cmd.Flags().GetString("relation")
		note, _ := cmd.Flags().GetString("note")
		body := map[string]any{"name": strings.Join(args, " "), "relation": relation}
		if note != "" {
			body["note"] = note
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/contacts", body)
		if err != nil {
			return err
		}
		var def contacts.PersonDefinition
		if err := decodeJSON(resp, &def); err != nil {
			return err
		}
		printSuccess("Added %s (%s)", def.Name, def.ID)
		return nil
	},
}

var contactsRemoveCmd = &cobra.Command{
	Use:   "rm <person-id>",
	Short: "Delete a contact with all plans and logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/contacts/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]bool
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var contactsPlanCmd = &cobra.Command{
	Use:   "plan <person-id> <activity> <cadence>",
	Short: "Plan an activity for a contact (use --off to remove the plan)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		off, _ := cmd.Flags().GetBool("off")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/contacts/"+url.PathEscape(args[0])+"/assignments", map[string]any{
			"activity": args[1],
			"cadence":  args[2],
			"enabled":  !off,
		})
		if err != nil {
			return err
		}
		var result struct {
			Assignments []contacts.Assignment `json:"assignments"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, a := range result.Assignments {
			fmt.Fprintf(w, "  %s: %s\n", a.Cadence.Label(), a.Activity.Label())
		}
		return nil
	},
}

var contactsLogCmd = &cobra.Command{
	Use:   "log <person-id> <activity>",
	Short: "Record an interaction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("note")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return logContact(cmd.Context(), client, args[0], args[1], note)
	},
}

func logContact(ctx context.Context, c *apiClient, personID, activity, note string) error {
	body := map[string]any{"activity": activity}
	if note != "" {
		body["note"] = note
	}
	resp, err := c.post(ctx, "/contacts/"+url.PathEscape(personID)+"/logs", body)
	if err != nil {
		return err
	}
	var l contacts.Log
	if err := decodeJSON(resp, &l); err != nil {
		return err
	}
	printSuccess("%s logged for %s", l.Activity.Label(), personID)
	return nil
}

var contactsStatsCmd = &cobra.Command{
	Use:   "stats [person-id...]",
	Short: "Show activity distribution per contact",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return showContactStats(cmd.Context(), client, cmd.OutOrStdout(), args, days)
	},
}

func showContactStats(ctx context.Context, c *apiClient, w io.Writer, ids []string, days int) error {
	q := url.Values{}
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	path := "/contacts/stats"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	var stats []contacts.StatsEntry
	if err := decodeJSON(resp, &stats); err != nil {
		return err
	}
	for _, s := range stats {
		printItem(w, s.PersonID, "%d total", s.Total)
		for _, share := range s.Distribution {
			fmt.Fprintf(w, "    %-20s %s %3d%% (%d)\n", share.Activity.Label(), bar(share.Percentage), share.Percentage, share.Count)
		}
	}
	return nil
}

func init() {
	contactsAddCmd.Flags().String("relation", string(contacts.RelationFriend), "family, friend, colleague, business_partner or network")
	contactsAddCmd.Flags().String("note", "", "optional note")
	contactsPlanCmd.Flags().Bool("off", false, "remove the plan instead of adding it")
	contactsLogCmd.Flags().String("note", "", "optional note")
	contactsStatsCmd.Flags().Int("days", 0, "look-back window in days (server default when 0)")

	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsAddCmd)
	contactsCmd.AddCommand(contactsRemoveCmd)
	contactsCmd.AddCommand(contactsPlanCmd)
	contactsCmd.AddCommand(contactsLogCmd)
	contactsCmd.AddCommand(contactsStatsCmd)
}

// --- store ---

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the JSON fallback documents",
}

var storeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load both documents and report their contents",
	Long: `Load both documents directly from disk, without a running server.

Missing documents are seeded with the default data. Malformed records are
repaired on load and logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return checkStores(cmd.Context(), cmd.OutOrStdout(), cfg.HouseholdPath(), cfg.ContactsPath())
	},
}

type storeReport struct {
	path  string
	lines []string
}

func checkStores(ctx context.Context, w io.Writer, householdPath, contactsPath string) error {
	logger := slog.Default()
	var hhReport, hcReport storeReport

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hh := household.Open(householdPath, docstore.WithLogger(logger))
		st, err := hh.Docs().Snapshot(gCtx)
		if err != nil {
			return fmt.Errorf("household: %w", err)
		}
		hhReport = storeReport{path: householdPath, lines: []string{
			fmt.Sprintf("version %d", st.Version),
			fmt.Sprintf("%d tasks", len(st.Tasks)),
			fmt.Sprintf("%d cards", len(st.Cards)),
			fmt.Sprintf("%d entries", len(st.Entries)),
		}}
		return nil
	})
	g.Go(func() error {
		hc := contacts.Open(contactsPath, docstore.WithLogger(logger))
		st, err := hc.Docs().Snapshot(gCtx)
		if err != nil {
			return fmt.Errorf("contacts: %w", err)
		}
		hcReport = storeReport{path: contactsPath, lines: []string{
			fmt.Sprintf("version %d", st.Version),
			fmt.Sprintf("%d persons", len(st.Persons)),
			fmt.Sprintf("%d assignments", len(st.Assignments)),
			fmt.Sprintf("%d logs", len(st.Logs)),
		}}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range []storeReport{hhReport, hcReport} {
		fmt.Fprintln(w, colorize(colorBold, r.path))
		for _, l := range r.lines {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
	return nil
}

func init() {
	storeCmd.AddCommand(storeCheckCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
