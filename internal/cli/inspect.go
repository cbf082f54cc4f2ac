package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/knmi/adaguc-checker/internal/ncfile"
	"github.com/knmi/adaguc-checker/internal/report"
	"github.com/spf13/cobra"
)

var inspectVariable string

func init() {
	inspectCmd.Flags().StringVarP(&inspectVariable, "variable", "V", "", "Show the attributes of one variable")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the header of a NetCDF file",
	Long: `Print the global attributes and the variables of a NetCDF file, and the
CF version its Conventions attribute declares.

With --variable, print the attributes of that variable instead.`,
	Example: `  adaguc-checker inspect tas.nc
  adaguc-checker inspect --variable tas tas.nc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := ncfile.Inspect(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		labelStyle := lipgloss.NewStyle().Bold(true)

		if inspectVariable != "" {
			v, ok := info.Variable(inspectVariable)
			if !ok {
				return fmt.Errorf("variable %q not found in %s", inspectVariable, info.Path)
			}
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Variable:"), v.Name)
			fmt.Fprintf(out, "%s %s (%s)\n", labelStyle.Render("Shape:"), strings.Join(v.Dimensions, ", "), v.Type)
			fmt.Fprintln(out)
			printAttributes(out, v.Attributes)
			return nil
		}

		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("File:"), info.Path)
		conventions := info.Conventions()
		if conventions == "" {
			conventions = "-"
		}
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Conventions:"), conventions)
		if v := info.CFVersion(); v != "" {
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("CF version:"), v)
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, labelStyle.Render("Global attributes"))
		printAttributes(out, info.Attributes)

		fmt.Fprintln(out)
		fmt.Fprintln(out, labelStyle.Render("Variables"))
		varRows := make([][]string, 0, len(info.Variables))
		for _, v := range info.Variables {
			varRows = append(varRows, []string{
				v.Name,
				v.Type,
				strings.Join(v.Dimensions, ", "),
				strconv.FormatInt(v.Length, 10),
				stringAttribute(v, "units"),
				attributeNames(v.Attributes),
			})
		}
		fmt.Fprintln(out, report.Table([]string{"NAME", "TYPE", "DIMENSIONS", "LENGTH", "UNITS", "ATTRIBUTES"}, varRows))
		return nil
	},
}

func printAttributes(w io.Writer, attrs []ncfile.Attribute) {
	rows := make([][]string, 0, len(attrs))
	for _, a := range attrs {
		rows = append(rows, []string{a.Name, a.Type, a.String()})
	}
	fmt.Fprintln(w, report.Table([]string{"NAME", "TYPE", "VALUE"}, rows))
}

// stringAttribute returns a text attribute of v, or "-".
func stringAttribute(v ncfile.Variable, name string) string {
	a, ok := v.Attribute(name)
	if !ok {
		return "-"
	}
	if s, ok := a.Value.(string); ok {
		return s
	}
	return fmt.Sprint(a.Value)
}

func attributeNames(attrs []ncfile.Attribute) string {
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
