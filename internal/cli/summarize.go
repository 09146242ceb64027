package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guiyumin/vbrief/internal/core/ai/output"
	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/conversation"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
	"github.com/guiyumin/vbrief/internal/core/source"
)

var (
	sumLength string
	sumText   string
	sumKind   string
	sumJSON   bool
	sumAsk    bool
	sumOutput string
	sumSource bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [url|-]",
	Short: "Summarize a web page, video, or text",
	Long: `Summarize a web page, a YouTube video, or text.

Examples:
  vbrief summarize https://example.com/article
  vbrief summarize https://youtu.be/dQw4w9WgXcQ --length long
  vbrief summarize --text "Paste a paragraph here..."
  cat notes.txt | vbrief summarize -
  vbrief summarize https://example.com/article --ask`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummarize(cmd.Context(), args, sumAsk)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [url|-]",
	Short: "Summarize a source, then ask follow-up questions about it",
	Long: `Summarize a source and open a question prompt grounded in its text.

Only a few follow-up questions are allowed per summary. Enter an empty
line or "exit" to stop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummarize(cmd.Context(), args, true)
	},
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sumLength, "length", "l", "medium", "summary length: short, medium, long, detailed (or S, M, L, XL)")
	cmd.Flags().StringVarP(&sumText, "text", "t", "", "summarize this text instead of a URL")
	cmd.Flags().StringVarP(&sumKind, "kind", "k", "url", "source kind: url, page, youtube")
	cmd.Flags().BoolVar(&sumJSON, "json", false, "print the response as JSON")
	cmd.Flags().StringVarP(&sumOutput, "output", "o", "", "also write the summary to a Markdown file")
	cmd.Flags().BoolVar(&sumSource, "with-source", false, "include the extracted source text in --output")

	cmd.RegisterFlagCompletionFunc("length", fixedCompletions("short", "medium", "long", "detailed"))
	cmd.RegisterFlagCompletionFunc("kind", fixedCompletions("url", "page", "youtube"))
}

func init() {
	addSourceFlags(summarizeCmd)
	summarizeCmd.Flags().BoolVar(&sumAsk, "ask", false, "ask follow-up questions after the summary")
	addSourceFlags(askCmd)

	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(askCmd)
}

// descriptorFor builds a source descriptor from the command line. "-" reads
// the text from stdin.
func descriptorFor(args []string, text, kind string, stdin io.Reader) (source.Descriptor, error) {
	if text != "" {
		if len(args) > 0 {
			return source.Descriptor{}, errors.New("give either a URL or --text, not both")
		}
		return source.Descriptor{Kind: source.KindText, Reference: text}, nil
	}
	if len(args) == 0 {
		return source.Descriptor{}, errors.New("provide a URL, '-' for stdin, or --text")
	}
	if args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return source.Descriptor{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		return source.Descriptor{Kind: source.KindText, Reference: string(data)}, nil
	}

	switch k := source.Kind(strings.ToLower(kind)); k {
	case "", source.KindURL:
		return source.Descriptor{Kind: source.KindURL, Reference: args[0]}, nil
	case source.KindPage, source.KindYouTube:
		return source.Descriptor{Kind: k, Reference: args[0]}, nil
	default:
		return source.Descriptor{}, fmt.Errorf("unknown source kind %q", kind)
	}
}

// checkAskSource rejects reading the source from stdin when follow-up
// questions are read from it too.
func checkAskSource(args []string, ask bool) error {
	if ask && len(args) > 0 && args[0] == "-" {
		return errors.New("questions are read from stdin, so the source cannot be; use --text instead")
	}
	return nil
}

func runSummarize(ctx context.Context, args []string, ask bool) error {
	if err := checkAskSource(args, ask); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	d, err := descriptorFor(args, sumText, sumKind, os.Stdin)
	if err != nil {
		return err
	}
	length, ok := summarizer.ParseLength(sumLength)
	if !ok {
		fmt.Fprintln(os.Stderr, color.YellowString("Unknown length %q, using medium.", sumLength))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cliLogger(cfg, os.Stderr)

	stack, err := pipeline.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	conv := stack.Router.NewConversation(logger)
	interactive := !sumJSON && term.IsTerminal(int(os.Stderr.Fd()))
	resp, err := summarizeWithProgress(ctx, stack.Router, pipeline.Request{
		Source:       d,
		Length:       length,
		Conversation: conv,
	}, os.Stderr, interactive)
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			return err
		}
		return errors.New(apperr.Message(err))
	}

	if sumJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		printResponse(os.Stdout, resp)
	}

	if ask {
		if err := askLoop(ctx, stack.Router, conv, os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd()))); err != nil {
			return err
		}
	}

	if sumOutput != "" {
		var history []summarizer.Turn
		if snap, ok := conv.Snapshot(); ok {
			history = snap.History
		}
		if err := output.WriteSummary(sumOutput, resp, history, sumSource); err != nil {
			return fmt.Errorf("failed to write %s: %w", sumOutput, err)
		}
		fmt.Fprintf(os.Stderr, "%s Saved %s\n", color.GreenString("✓"), sumOutput)
	}
	return nil
}

func printResponse(w io.Writer, resp *pipeline.Response) {
	heading := color.New(color.FgCyan, color.Bold)
	faint := color.New(color.Faint)

	fmt.Fprintln(w)
	if resp.Heading != "" {
		heading.Fprintln(w, resp.Heading)
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, resp.Summary)

	if len(resp.Highlights) > 0 {
		fmt.Fprintln(w)
		color.New(color.Bold).Fprintln(w, "Highlights")
		for _, h := range resp.Highlights {
			fmt.Fprintf(w, "  %s %s\n", color.GreenString("•"), h)
		}
	}

	fmt.Fprintln(w)
	meta := []string{resp.Metadata.SourceType, resp.Provenance, fmt.Sprintf("%d words", resp.Metadata.WordCount)}
	if resp.Metadata.Language != "" {
		meta = append(meta, resp.Metadata.Language)
	}
	if resp.Metadata.DurationSeconds > 0 {
		meta = append(meta, formatDuration(resp.Metadata.DurationSeconds))
	}
	faint.Fprintln(w, strings.Join(meta, " · "))
	if resp.Citation != "" {
		faint.Fprintln(w, resp.Citation)
	}
}

func formatDuration(seconds float64) string {
	s := int(seconds)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

type followUpper interface {
	FollowUp(ctx context.Context, conv *conversation.Manager, question string) (*conversation.Exchange, error)
}

// askLoop reads one question per line until EOF, an empty line, "exit", or
// the follow-up limit. Prompts are only drawn for a terminal.
func askLoop(ctx context.Context, r followUpper, conv *conversation.Manager, in io.Reader, out io.Writer, prompt bool) error {
	scanner := bufio.NewScanner(in)
	faint := color.New(color.Faint)

	if prompt {
		faint.Fprintf(out, "\nAsk up to %d follow-up questions. Empty line to quit.\n", conv.Remaining())
	}

	for conv.Remaining() > 0 {
		if prompt {
			fmt.Fprintf(out, "\n%s ", color.CyanString("?"))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" || q == "exit" || q == "quit" {
			return nil
		}

		ex, err := r.FollowUp(ctx, conv, q)
		if apperr.Is(err, apperr.FollowUpLimitReached) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, color.RedString("%s", apperr.Message(err)))
			continue
		}

		fmt.Fprintf(out, "\n%s\n", ex.Answer)
		if ex.Remaining > 0 {
			faint.Fprintf(out, "(%d follow-up questions left)\n", ex.Remaining)
		}
	}

	fmt.Fprintln(out, color.YellowString("\nFollow-up limit reached. Summarize again to start over."))
	return nil
}
