// Command emotext-rules checks a substitution rules file and previews what it
// does to transcripts before the desktop app picks it up.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"emotext/internal/compose"
	"emotext/internal/config"
	"emotext/internal/rules"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	rulesPath string
	limit     int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "emotext-rules",
		Short: "Check and preview emotext transcript rules",
		Long: `emotext-rules loads the same substitution rules the emotext app applies to
final transcripts.

Without --rules the path comes from the emotext configuration
(~/.config/emotext/config.yaml, EMOTEXT_RULES_PATH).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "rules file (default from emotext config)")
	root.PersistentFlags().IntVar(&opts.limit, "limit", 0, "maximum rule passes (default from emotext config)")

	root.AddCommand(newCheckCmd(opts), newApplyCmd(opts), newConfigCmd())
	return root
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Parse the rules file and report how many rules it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := opts.engine()
			if err != nil {
				return err
			}
			if engine.Path() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no rules file configured")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules\n", engine.Path(), engine.Len())
			return nil
		},
	}
}

func newApplyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply [text...]",
		Short: "Rewrite text as a final transcript would be; reads stdin lines when no text is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.engine()
			if err != nil {
				return err
			}
			rewriter := compose.TranscriptRewriter{Rules: engine}

			if len(args) > 0 {
				return rewriteLine(cmd.OutOrStdout(), rewriter, strings.Join(args, " "))
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if err := rewriteLine(cmd.OutOrStdout(), rewriter, scanner.Text()); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved emotext configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Deepgram.APIKey != "" {
				cfg.Deepgram.APIKey = "<redacted>"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func (o *options) engine() (*rules.Engine, error) {
	path, limit := o.rulesPath, o.limit
	if path == "" || limit <= 0 {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if path == "" {
			path = cfg.Rules.Path
		}
		if limit <= 0 {
			limit = cfg.Rules.IterationLimit
		}
	}
	return rules.NewEngine(path, limit)
}

func rewriteLine(out io.Writer, rewriter compose.TranscriptRewriter, text string) error {
	rewritten, err := rewriter.Apply(text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, rewritten)
	return err
}
