package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/atelierbr/jiragate/internal/flagutil"
	"github.com/atelierbr/jiragate/internal/jiragate/jira"
	"github.com/atelierbr/jiragate/internal/jiragate/policy"
	"github.com/atelierbr/jiragate/internal/jiragate/service"
)

var (
	jiraOptions  flagutil.JiraOptions
	tempoOptions flagutil.TempoOptions
	storeOptions flagutil.StoreOptions
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jiragate",
		Short: "Field-gated Jira issue operations for automation agents",
		Long: `jiragate exposes Jira issue operations with a curated field surface:
noisy custom fields are filtered per issue type, values are normalized
into readable form, and every mutation is mirrored into a local history
database. Time can be logged against issues through Tempo.`,
	}

	// Add global flags
	jiraOptions.AddPFlags(rootCmd.PersistentFlags())
	tempoOptions.AddPFlags(rootCmd.PersistentFlags())
	storeOptions.AddPFlags(rootCmd.PersistentFlags())

	// Add subcommands
	rootCmd.AddCommand(
		newIssueCmd(),
		newChildrenCmd(),
		newTypesCmd(),
		newFieldsCmd(),
		newCreateCmd(),
		newTransitionsCmd(),
		newTransitionCmd(),
		newCommentCmd(),
		newCommentsCmd(),
		newHistoryCmd(),
		newStatsCmd(),
		newAccountsCmd(),
		newWorklogCmd(),
		newTodayCmd(),
	)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

func createService(ctx context.Context) (*service.Service, error) {
	rawClient, err := jiraOptions.Client()
	if err != nil {
		return nil, fmt.Errorf("cannot create Jira client: %w", err)
	}

	fieldPolicy, err := policy.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load field policy: %w", err)
	}

	store, err := storeOptions.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot open tracking store: %w", err)
	}

	// Tempo credentials are validated lazily, only by the commands that
	// actually talk to Tempo
	return service.NewService(jira.NewClient(rawClient, fieldPolicy), tempoOptions.Client(), store), nil
}

func printJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode output: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

func newIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue <issue-key>",
		Short: "Show the normalized view of an issue",
		Long: `Show an issue with its custom fields normalized into readable form.
Fields blacklisted for the issue type are omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			projection, err := svc.IssueInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(projection)
		},
	}
}

func newChildrenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "children <issue-key>",
		Short: "List all child issues of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			children, err := svc.Children(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(children)
		},
	}
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List all available issue types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			issueTypes, err := svc.IssueTypes(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(issueTypes)
		},
	}
}

func newFieldsCmd() *cobra.Command {
	var fieldFilter string
	var guide bool

	cmd := &cobra.Command{
		Use:   "fields <project-key> <issue-type>",
		Short: "Show the visible fields of an issue type",
		Long: `Show the create-screen fields of an issue type in a project, with
blacklisted fields omitted. With --guide, render the fields as creation
instructions instead of JSON.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			if guide {
				text, err := svc.CreationGuide(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Print(text)
				return nil
			}
			descriptors, err := svc.TypeFields(cmd.Context(), args[0], args[1], fieldFilter)
			if err != nil {
				return err
			}
			return printJSON(descriptors)
		},
	}

	cmd.Flags().StringVarP(&fieldFilter, "filter", "f", "", "Only show the field with this id or name")
	cmd.Flags().BoolVar(&guide, "guide", false, "Render the fields as creation instructions")

	return cmd
}

func newCreateCmd() *cobra.Command {
	var params jira.CreateParams
	var customFields map[string]string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new issue",
		Long: `Create a new issue and record it in the local history database.
The assignee is resolved from their email address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			if len(customFields) > 0 {
				params.CustomFields = make(map[string]interface{}, len(customFields))
				for fieldID, value := range customFields {
					params.CustomFields[fieldID] = value
				}
			}
			key, err := svc.Create(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Printf("Created issue %s\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Project, "project", "", "Project key")
	cmd.Flags().StringVar(&params.Parent, "parent", "", "Parent issue key")
	cmd.Flags().StringVar(&params.AssigneeEmail, "assignee", "", "Email of the assignee")
	cmd.Flags().StringVar(&params.Title, "title", "", "Issue title")
	cmd.Flags().StringVar(&params.IssueType, "type", "", "Issue type name")
	cmd.Flags().StringVar(&params.Description, "description", "", "Issue description")
	cmd.Flags().StringToStringVar(&customFields, "field", nil, "Custom field value as id=value (repeatable)")

	for _, required := range []string{"project", "assignee", "title", "type"} {
		if err := cmd.MarkFlagRequired(required); err != nil {
			logrus.WithError(err).Fatalf("cannot mark flag %s required", required)
		}
	}

	return cmd
}

func newTransitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions <issue-key>",
		Short: "List the workflow transitions available on an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			transitions, err := svc.Transitions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(transitions)
		},
	}
}

func newTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition <issue-key> <transition-name>",
		Short: "Move an issue through a workflow transition",
		Long: `Move an issue through the named workflow transition. The transition
name is matched case-insensitively; an unknown name lists the available
transitions. The status change is recorded in the local history.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			message, err := svc.Transition(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}
}

func newCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <issue-key> <body>",
		Short: "Add a comment to an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			comment, err := svc.Comment(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Added comment %s to %s\n", comment.ID, args[0])
			return nil
		},
	}
}

func newCommentsCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "comments <issue-key>",
		Short: "Show the newest comments of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			comments, err := svc.Comments(cmd.Context(), args[0], count)
			if err != nil {
				return err
			}
			return printJSON(comments)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of newest comments to show")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	var days int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the locally tracked issue history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storeOptions.Open(cmd.Context())
			if err != nil {
				return fmt.Errorf("cannot open tracking store: %w", err)
			}
			defer func() { _ = store.Close() }()

			entries, err := store.IssueHistory(cmd.Context(), days)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(entries)
			}
			fmt.Print(renderHistory(entries, days))
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Only show issues created in the trailing N days (0 shows everything)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the locally tracked issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storeOptions.Open(cmd.Context())
			if err != nil {
				return fmt.Errorf("cannot open tracking store: %w", err)
			}
			defer func() { _ = store.Close() }()

			stats, err := store.IssueStatistics(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(stats)
			}
			fmt.Print(renderStatistics(stats))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the open Tempo accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tempoOptions.Validate(); err != nil {
				return err
			}
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}

			var result service.Result
			if text, err := svc.Accounts(cmd.Context()); err != nil {
				result = service.Fail(err)
			} else {
				result = service.OK(text)
			}
			fmt.Println(result.Text())
			return nil
		},
	}
}

func newWorklogCmd() *cobra.Command {
	var params service.WorklogParams

	cmd := &cobra.Command{
		Use:   "worklog <issue-key>",
		Short: "Log time spent on an issue through Tempo",
		Long: `Log time spent on an issue through Tempo. The author is resolved from
their email address. The date defaults to today and the description to a
generic activity note.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tempoOptions.Validate(); err != nil {
				return err
			}
			svc, err := createService(cmd.Context())
			if err != nil {
				return err
			}
			params.IssueKey = args[0]

			var result service.Result
			if text, err := svc.LogWork(cmd.Context(), params); err != nil {
				result = service.Fail(err)
			} else {
				result = service.OK(text)
			}
			fmt.Println(result.Text())
			return nil
		},
	}

	cmd.Flags().StringVar(&params.AssigneeEmail, "assignee", "", "Email of the user logging the time")
	cmd.Flags().StringVar(&params.StartTime, "start-time", "", "Start time as HH:MM:SS")
	cmd.Flags().IntVar(&params.TimeInSeconds, "seconds", 0, "Time spent in seconds")
	cmd.Flags().StringVar(&params.AccountKey, "account", "", "Tempo account key to book the time on")
	cmd.Flags().StringVar(&params.Description, "description", "", "Worklog description")
	cmd.Flags().StringVar(&params.Date, "date", "", "Worklog date as YYYY-MM-DD (defaults to today)")

	for _, required := range []string{"assignee", "start-time", "seconds"} {
		if err := cmd.MarkFlagRequired(required); err != nil {
			logrus.WithError(err).Fatalf("cannot mark flag %s required", required)
		}
	}

	return cmd
}

func newTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Print today's date in YYYY-MM-DD format",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(os.Stdout, service.CurrentDate())
		},
	}
}
