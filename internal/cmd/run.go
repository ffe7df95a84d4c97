package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/nudge/internal/engine/escalate"
	"github.com/runger/nudge/internal/engine/predict"
	"github.com/runger/nudge/internal/engine/scene"
	"github.com/runger/nudge/internal/engine/trigger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process scene and feedback events from stdin",
	Long: `Read newline-delimited JSON events from stdin and write decisions
to stdout. Two event types are understood:

  {"type":"scene","category":"COMMUTE","confidence":0.7,"ts_ms":1700000000000}
  {"type":"feedback","suggestion":"NAVIGATION","category":"COMMUTE","action":"accept"}

Scene events produce one decision line each; feedback events produce a
line only when they trigger an auto-mode offer. Malformed lines are
reported on stderr and skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoop(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

type inputEvent struct {
	Type       string  `json:"type"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	TsMs       int64   `json:"ts_ms"`
	Suggestion string  `json:"suggestion"`
	Action     string  `json:"action"`
}

type decisionLine struct {
	Type     string            `json:"type"`
	Decision *trigger.Decision `json:"decision,omitempty"`
	Offer    *escalate.Offer   `json:"offer,omitempty"`
}

func runLoop(ctx context.Context, in io.Reader, out io.Writer) error {
	p, store, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	return processEvents(ctx, p, in, out)
}

func processEvents(ctx context.Context, p *predict.Predictor, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev inputEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			fmt.Fprintf(os.Stderr, "nudged: skipping malformed event: %v\n", err)
			continue
		}

		switch ev.Type {
		case "scene":
			d, err := p.Evaluate(ctx, scene.Context{
				TsMs:       ev.TsMs,
				Category:   scene.Category(ev.Category),
				Confidence: ev.Confidence,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "nudged: rejecting event: %v\n", err)
				continue
			}
			if err := enc.Encode(decisionLine{Type: "decision", Decision: &d}); err != nil {
				return err
			}
		case "feedback":
			offer, err := p.RecordFeedback(ctx, ev.Suggestion, scene.Category(ev.Category), scene.Action(ev.Action), nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "nudged: rejecting feedback: %v\n", err)
				continue
			}
			if offer != nil {
				if err := enc.Encode(decisionLine{Type: "offer", Offer: offer}); err != nil {
					return err
				}
			}
		default:
			fmt.Fprintf(os.Stderr, "nudged: unknown event type %q\n", ev.Type)
		}
	}
	return scanner.Err()
}
