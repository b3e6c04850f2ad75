package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tokenshield-icapd/internal/icap"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode a captured ICAP conversation from a file",
	Long:  "Reads a file containing one or more raw ICAP messages and prints the sequence of events the decoder produces, for offline inspection of a capture.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		maxInitialLine, _ := cmd.Flags().GetInt("max-initial-line")
		maxHeader, _ := cmd.Flags().GetInt("max-header")
		maxChunk, _ := cmd.Flags().GetInt("max-chunk")

		d, err := icap.NewDecoder(maxInitialLine, maxHeader, maxChunk, true, icap.NewMessage)
		if err != nil {
			return err
		}

		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		return decodeAll(d, data, interactive)
	},
}

func decodeAll(d *icap.Decoder, data []byte, interactive bool) error {
	window := 0
	messageCount := 0

	for {
		ev, adv := d.Decode(data[:window])

		switch ev.Kind {
		case icap.NeedMore:
			if window >= len(data) {
				if window > 0 {
					fmt.Println("incomplete trailing data: decoder is waiting for more bytes")
				}
				return nil
			}
			window++
			continue

		case icap.MessageHead:
			messageCount++
			fmt.Printf("[%d] %s %s %s\n", messageCount, ev.Message.GetMethod(), "head", describeEncapsulated(ev.Message))

		case icap.RequestHead:
			h := ev.Message.GetRequestHead()
			fmt.Printf("    request head: %s %s %s\n", h.Method, h.URI, h.Proto)

		case icap.ResponseHead:
			h := ev.Message.GetResponseHead()
			fmt.Printf("    response head: %s %d %s\n", h.Proto, h.StatusCode, h.Reason)

		case icap.BodyChunk:
			fmt.Printf("    body chunk: %d bytes\n", len(ev.Chunk))

		case icap.PreviewComplete:
			fmt.Println("    preview complete")

		case icap.AwaitingPreviewDecision:
			if interactive {
				fmt.Println("    awaiting preview decision: continuing automatically")
			}
			d.Continue()

		case icap.EndOfMessage:
			fmt.Println("    end of message")

		case icap.ErrorEvent:
			return fmt.Errorf("decode failed at message %d: %w", messageCount+1, ev.Err)
		}

		data = data[adv:]
		window = 0
	}
}

func describeEncapsulated(msg icap.MessageBuilder) string {
	enc := msg.GetEncapsulatedHeader()
	if enc == nil {
		return "(no Encapsulated header)"
	}
	value, _ := msg.GetHeader("Encapsulated")
	return value
}

func init() {
	decodeCmd.Flags().Int("max-initial-line", 8192, "maximum ICAP initial line length")
	decodeCmd.Flags().Int("max-header", 65536, "maximum ICAP header block size")
	decodeCmd.Flags().Int("max-chunk", 1<<20, "maximum chunk size")
}
