package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// app holds the collaborators built for one command invocation
type app struct {
	cfg     *Config
	log     *zap.Logger
	client  *Client
	session *Session
}

type appOptions struct {
	algorithm     string
	resolveBranch bool
}

// newApp resolves configuration and builds a session for the configured repository
func newApp(ctx context.Context, fs *pflag.FlagSet, flags *flagValues, stderr io.Writer, opts appOptions) (*app, error) {
	log := newLogger(stderr, flags.verbose)

	cfg, err := loadConfig(fs, flags)
	if err != nil {
		return nil, err
	}
	if opts.algorithm != "" {
		cfg.DiffAlgorithm = opts.algorithm
	}
	algo, err := ParseAlgorithm(cfg.DiffAlgorithm)
	if err != nil {
		return nil, err
	}

	coord := cfg.Coordinate()
	if err := coord.Validate(); err != nil {
		return nil, err
	}

	log.Debug("using repository", zap.String("repo", coord.String()), zap.String("state_dir", cfg.RepoStateDir()))

	store := NewStore(cfg.RepoStateDir())
	dirty, err := LoadDirtySet(cfg.RepoStateDir(), store)
	if err != nil {
		return nil, err
	}

	client := NewClient(ClientConfig{BaseURL: cfg.APIURL, Logger: log})

	// The lookup is only worth a request when a publish can proceed
	branch := cfg.Branch
	if branch == "" && opts.resolveBranch && dirty.Len() > 0 && coord.ValidateForWrite() == nil {
		if b, err := client.DefaultBranch(ctx, coord); err == nil {
			branch = b
		} else {
			log.Debug("falling back to default branch", zap.String("branch", defaultBranch), zap.Error(err))
		}
	}

	session := NewSession(SessionConfig{
		Coordinate: coord,
		Branch:     branch,
		Algorithm:  algo,
		Fetcher:    NewRemoteFetcher(client),
		Publisher:  NewPublisher(client, log),
		Store:      store,
		Dirty:      dirty,
		Logger:     log,
	})

	return &app{cfg: cfg, log: log, client: client, session: session}, nil
}

// reportedError carries the message a session recorded for a failed operation
type reportedError struct {
	msg string
	err error
}

func (e *reportedError) Error() string { return e.msg }
func (e *reportedError) Unwrap() error { return e.err }

// report converts a failed session operation into its user-facing message
func (a *app) report(err error) error {
	a.log.Debug("operation failed", zap.Error(err))
	if msg := a.session.ErrorMessage(); msg != "" {
		return &reportedError{msg: msg, err: err}
	}
	return err
}

// selectForDraft selects path, warning instead of failing when the remote
// copy cannot be read, so drafts can be managed offline and for new files
func (a *app) selectForDraft(ctx context.Context, path string, stderr io.Writer) error {
	err := a.session.SelectPath(ctx, path)
	if err == nil {
		return nil
	}
	var notFound *NotFoundError
	var netErr *NetworkError
	if !errors.As(err, &notFound) && !errors.As(err, &netErr) {
		return a.report(err)
	}
	fmt.Fprintf(stderr, "warning: %s: %s\n", path, a.session.ErrorMessage())
	return nil
}

// readContent reads new file content from file, or from stdin when file is empty
func readContent(file string, stdin io.Reader) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}
	if stdin == nil {
		return "", nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// promptMessage asks for a commit message on stderr and reads one line from stdin
func promptMessage(stdin io.Reader, stderr io.Writer) string {
	fmt.Fprint(stderr, "Enter commit message: ")
	if stdin == nil {
		return ""
	}
	line, _ := bufio.NewReader(stdin).ReadString('\n')
	return strings.TrimSpace(line)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           "ghstage",
		Short:         "Edit files of a remote repository and publish them as one commit",
		Long:          "Fetch files from a hosted repository, keep local drafts of your edits, review them as a diff, and publish every staged draft as a single commit on a branch.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	bindFlags(rootCmd.PersistentFlags(), &flags)

	showCmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Print the working copy of a file",
		Long:  "Fetch a file and print its working copy: the local draft if one is saved, otherwise the remote content.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd.Flags(), &flags, stderr, appOptions{})
			if err != nil {
				return err
			}
			if err := a.session.SelectPath(cmd.Context(), args[0]); err != nil {
				return a.report(err)
			}
			_, err = io.WriteString(stdout, a.session.Edited())
			return err
		},
	}

	var saveFile string
	saveCmd := &cobra.Command{
		Use:   "save <path>",
		Short: "Save new content for a file as a local draft and stage it",
		Long:  "Read new content for a file from stdin (or --file), save it as the local draft and stage the file for the next publish.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd.Flags(), &flags, stderr, appOptions{})
			if err != nil {
				return err
			}
			content, err := readContent(saveFile, stdin)
			if err != nil {
				return err
			}
			if err := a.selectForDraft(cmd.Context(), args[0], stderr); err != nil {
				return err
			}
			if err := a.session.SetEdited(content); err != nil {
				return a.report(err)
			}
			if err := a.session.SaveLocally(); err != nil {
				return a.report(err)
			}
			fmt.Fprintln(stdout, a.session.Notice())
			return nil
		},
	}
	saveCmd.Flags().StringVarP(&saveFile, "file", "f", "", "read the new content from this file instead of stdin")

	loadCmd := &cobra.Command{
		Use:   "load <path>",
		Short: "Print the local draft of a file",
		Long:  "Print the saved local draft of a file, or its remote content if there is no draft.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd.Flags(), &flags, stderr, appOptions{})
			if err != nil {
				return err
			}
			if err := a.selectForDraft(cmd.Context(), args[0], stderr); err != nil {
				return err
			}
			if err := a.session.LoadLocalVersion(); err != nil {
				return a.report(err)
			}
			_, err = io.WriteString(stdout, a.session.Edited())
			return err
		},
	}

	discardCmd := &cobra.Command{
		Use:   "discard <path>",
		Short: "Delete the local draft of a file and unstage it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd.Flags(), &flags, stderr, appOptions{})
			if err != nil {
				return err
			}
			if err := a.selectForDraft(cmd.Context(), args[0], stderr); err != nil {
				return err
			}
			if err := a.session.DiscardLocalVersion(); err != nil {
				return a.report(err)
			}
			fmt.Fprintln(stdout, a.session.Notice())
			return nil
		},
	}

	var (
		diffAlgorithm string
		diffStat      bool
	)
	diffCmd := &cobra.Command{
		Use:   "diff <path>",
		Short: "Compare the remote content of a file with its working copy",
		Long:  "Print the remote content of a file against its working copy, one marked line per line: ' ' unchanged, '~' changed, '+' added, '-' removed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd.Flags(), &flags, stderr, appOptions{algorithm: diffAlgorithm})
			if err != nil {
				return err
			}
			if err := a.selectForDraft(cmd.Context(), args[0], stderr); err != nil {
				return err
			}
			lines := a.session.DiffLines()
			if diffStat {
				return renderStats(stdout, args[0], lines)
			}
			return renderDiff(stdout, lines)
		},
	}
	diffCmd.Flags().StringVar(&diffAlgorithm, "algorithm", "", "line alignment: positional or lcs")
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "print a summary instead of the lines")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List staged files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd.Flags(), &flags, stderr, appOptions{})
			if err != nil {
				return err
			}
			paths := a.session.StagedPaths()
			if len(paths) == 0 {
				fmt.Fprintln(stderr, "no changes staged")
				return nil
			}
			for _, p := range paths {
				fmt.Fprintln(stdout, p)
			}
			return nil
		},
	}

	var message string
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Commit every staged file in one commit",
		Long:  "Create one commit containing every staged file on the configured branch and move the branch to it. Staged files are cleared only if every step succeeds.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd.Flags(), &flags, stderr, appOptions{resolveBranch: true})
			if err != nil {
				return err
			}

			// Only prompt when the publish can actually proceed
			canPublish := a.cfg.Coordinate().ValidateForWrite() == nil && len(a.session.StagedPaths()) > 0
			if canPublish && !cmd.Flags().Changed("message") {
				message = promptMessage(stdin, stderr)
			}

			result, err := a.session.Publish(cmd.Context(), message)
			if err != nil {
				return a.report(err)
			}

			fmt.Fprintln(stdout, a.session.Notice())
			fmt.Fprintf(stdout, "committed %s (%d files)\n", shortSHA(result.CommitSHA), len(result.Files))
			return nil
		},
	}
	publishCmd.Flags().StringVarP(&message, "message", "m", "", "commit message (default \""+defaultCommitMessage+"\")")

	rootCmd.AddCommand(showCmd, saveCmd, loadCmd, discardCmd, diffCmd, statusCmd, publishCmd)
	rootCmd.SetArgs(args[1:])
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
