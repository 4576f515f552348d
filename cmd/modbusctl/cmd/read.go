// cmd/modbusctl/cmd/read.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tamzrod/modbus-client/internal/client"
	"github.com/tamzrod/modbus-client/internal/codec"
)

var (
	readType  string
	readCount int
)

func init() {
	addConnFlags(readCmd)
	readCmd.Flags().StringVarP(&readType, "type", "t", "uint16", "Data type: uint16, int16, uint32, int32, uint64, int64, float32, float64, bool, string")
	readCmd.Flags().IntVarP(&readCount, "count", "n", 1, "Number of values (registers for string)")
	rootCmd.AddCommand(readCmd)
}

var readCmd = &cobra.Command{
	Use:   "read <holding|input> <address>",
	Short: "Read registers and decode them",
	Long: `Read consecutive values starting at address.

Examples:
  modbusctl read holding 0 -n 10
  modbusctl read input 100 -t float32 --word-order CDAB
  modbusctl read holding 40 -t string -n 8 -o json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := client.ParseTable(args[0])
		if err != nil {
			return err
		}
		addr, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		dt, err := codec.ParseDataType(readType)
		if err != nil {
			return err
		}
		if readCount <= 0 {
			return fmt.Errorf("count must be > 0, got %d", readCount)
		}

		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		values, err := readValues(cmd.Context(), c, table, addr, dt, readCount)
		if err != nil {
			fmt.Fprintln(os.Stderr, errFmt("read failed:"), err)
			return err
		}

		if outputFormat == "json" {
			return outputJSON(values)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ADDRESS\tTYPE\tVALUE")
		for _, v := range values {
			fmt.Fprintf(w, "%d\t%s\t%s\n", v.Address, dimFmt(dt), okFmt(v.Value))
		}
		return w.Flush()
	},
}

type addressedValue struct {
	Address uint16      `json:"address"`
	Value   codec.Value `json:"value"`
}

func readValues(ctx context.Context, c *client.Client, table client.Table, addr uint16, dt codec.DataType, n int) ([]addressedValue, error) {
	if dt == codec.TypeString {
		s, err := c.ReadString(ctx, table, addr, n)
		if err != nil {
			return nil, err
		}
		return []addressedValue{{Address: addr, Value: codec.Text(s)}}, nil
	}

	width := dt.Words()
	words, err := c.ReadRegisters(ctx, table, addr, uint16(width*n))
	if err != nil {
		return nil, err
	}
	decoded, err := c.Codec().DecodeAll(dt, words)
	if err != nil {
		return nil, err
	}

	out := make([]addressedValue, len(decoded))
	for i, v := range decoded {
		out[i] = addressedValue{Address: addr + uint16(i*width), Value: v}
	}
	return out, nil
}

func parseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(v), nil
}

// dial builds a client from the connection flags and connects it.
func dial(ctx context.Context) (*client.Client, error) {
	opts, err := clientOptions()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(logLevel, logFormat)
	if err != nil {
		return nil, err
	}

	c, err := client.New(opts, client.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		_ = c.Close()
		fmt.Fprintln(os.Stderr, errFmt("connect failed:"), err)
		return nil, err
	}
	return c, nil
}
