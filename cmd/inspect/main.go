package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/membrane-wasm/membrane/schema"
)

var rootCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect canonical ABI layouts",
	Long:  `Inspect shows how boundary types are laid out in linear memory and flattened into core scalars`,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in demo types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range catalogNames() {
			fmt.Printf("%-16s %s\n", name, catalog[name].String())
		}
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout <type>",
	Short: "Print the memory layout of a demo type",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse layouts interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal(os.Stdout) {
			return fmt.Errorf("tui requires a terminal (use 'inspect layout' for plain output)")
		}
		return runInteractive()
	},
}

func init() {
	layoutCmd.Flags().Bool("flat", false, "also print the flattened core shape")
}

func main() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(tuiCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func runLayout(cmd *cobra.Command, args []string) error {
	t, ok := catalog[args[0]]
	if !ok {
		return fmt.Errorf("unknown type %q (try 'inspect list')", args[0])
	}

	fmt.Println(describe(args[0], t))

	if flat, _ := cmd.Flags().GetBool("flat"); flat {
		fmt.Printf("\nflat shape (%d slots):\n", t.FlatCount())
		for i, f := range t.Flat() {
			fmt.Printf("  %2d: %s\n", i, f)
		}
	}
	return nil
}

// describe renders a type's layout as an indented offset table.
func describe(name string, t *schema.Type) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", name, t.String())
	fmt.Fprintf(&b, "size %d, align %d\n", t.Size(), t.Align())
	describeInto(&b, t, 0, 1)
	return strings.TrimRight(b.String(), "\n")
}

func describeInto(b *strings.Builder, t *schema.Type, base uint32, depth int) {
	indent := strings.Repeat("  ", depth)

	switch t.Kind() {
	case schema.KindRecord, schema.KindTuple:
		for i, f := range t.Fields() {
			off := base + t.FieldOffset(i)
			fmt.Fprintf(b, "%s+%-4d %-12s %s (size %d, align %d)\n",
				indent, off, f.Name, f.Type.String(), f.Type.Size(), f.Type.Align())
			describeInto(b, f.Type, off, depth+1)
		}

	case schema.KindVariant, schema.KindOption, schema.KindResult:
		fmt.Fprintf(b, "%s+%-4d tag (%d byte discriminant, %d cases)\n",
			indent, base, t.TagSize(), t.CaseCount())
		for i, c := range t.Cases() {
			if c.Type == nil {
				fmt.Fprintf(b, "%s  case %d %s\n", indent, i, c.Name)
				continue
			}
			off := base + t.PayloadOffset()
			fmt.Fprintf(b, "%s  case %d %s: +%d %s (size %d, align %d)\n",
				indent, i, c.Name, off, c.Type.String(), c.Type.Size(), c.Type.Align())
			describeInto(b, c.Type, off, depth+2)
		}

	case schema.KindEnum:
		fmt.Fprintf(b, "%s+%-4d discriminant (%d bytes, %d cases)\n",
			indent, base, t.TagSize(), t.CaseCount())

	case schema.KindFlags:
		fmt.Fprintf(b, "%s+%-4d bits (%d bytes): %s\n",
			indent, base, t.Size(), strings.Join(t.FlagNames(), ", "))

	case schema.KindString:
		fmt.Fprintf(b, "%s+%-4d ptr, +%d len\n", indent, base, base+4)

	case schema.KindList:
		fmt.Fprintf(b, "%s+%-4d ptr, +%d len (element %s, stride %d)\n",
			indent, base, base+4, t.Elem().String(), t.Elem().Size())
	}
}
