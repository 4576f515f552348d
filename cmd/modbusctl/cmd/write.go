// cmd/modbusctl/cmd/write.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamzrod/modbus-client/internal/codec"
)

var (
	writeType   string
	writeLength int
)

func init() {
	addConnFlags(writeCmd)
	writeCmd.Flags().StringVarP(&writeType, "type", "t", "uint16", "Data type of value")
	writeCmd.Flags().IntVarP(&writeLength, "length", "l", 0, "Registers for string values (0: just enough)")
	rootCmd.AddCommand(writeCmd)
}

var writeCmd = &cobra.Command{
	Use:   "write <address> <value>",
	Short: "Encode a value and write it to holding registers",
	Long: `Write one typed value. Single register types use function 6,
wider types and strings use function 16.

Examples:
  modbusctl write 10 1234
  modbusctl write 20 -12.5 -t float32
  modbusctl write 40 PUMP-01 -t string -l 8`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		dt, err := codec.ParseDataType(writeType)
		if err != nil {
			return err
		}
		v, err := codec.ParseValue(dt, args[1])
		if err != nil {
			return err
		}

		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if dt == codec.TypeString && writeLength > 0 {
			err = c.WriteString(cmd.Context(), addr, v.Text(), writeLength)
		} else {
			err = c.WriteValue(cmd.Context(), addr, dt, v)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, errFmt("write failed:"), err)
			return err
		}

		if outputFormat == "json" {
			return outputJSON(addressedValue{Address: addr, Value: v})
		}
		fmt.Printf("%s %s %s @ %d\n", okFmt("wrote"), dt, v, addr)
		return nil
	},
}
