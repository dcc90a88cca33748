package cmdfmt

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"golang.org/x/term"
)

// Output is written here. Replaced by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Never wrap cells narrower than this, even on very small terminals.
const minCellWidth = 20

// rowPrinter is implemented by the go-pretty table writer and the JSON printer.
type rowPrinter interface {
	SetColumnConfigs(configs []table.ColumnConfig)
	AppendRow(row table.Row, configs ...table.RowConfig)
	Render() string
}

// Printomatic prints items as a table or JSON depending on the global output configuration. Columns
// to print are selected using the global columns flag, falling back to the default columns. Rows
// are buffered and flushed every page-size items.
type Printomatic struct {
	columns  []table.ColumnConfig
	output   config.OutputType
	pageSize int
	buffered int
	maxWidth int
	printer  rowPrinter
}

// NewPrintomatic returns a printer for rows with the given columns. All items added must have one
// value for each of allColumns, in order.
func NewPrintomatic(allColumns []string, defaultColumns []string) Printomatic {
	selected := viper.GetStringSlice(config.ColumnsKey)
	if len(selected) == 0 {
		selected = defaultColumns
	}
	all := slices.Contains(selected, "all")

	columns := make([]table.ColumnConfig, 0, len(allColumns))
	visible := 0
	for i, c := range allColumns {
		hidden := !all && !slices.Contains(selected, c)
		if !hidden {
			visible++
		}
		// Columns are matched by number since the header is omitted when page-size is 0.
		columns = append(columns, table.ColumnConfig{Number: i + 1, Name: c, Hidden: hidden})
	}

	p := Printomatic{
		columns:  columns,
		output:   config.OutputType(viper.GetString(config.OutputKey)),
		pageSize: viper.GetInt(config.PageSizeKey),
	}
	if p.output == "" {
		p.output = config.OutputTable
	}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && visible > 0 {
		p.maxWidth = max(width/visible, minCellWidth)
	}
	p.reset()
	return p
}

func (p *Printomatic) reset() {
	p.buffered = 0
	switch p.output {
	case config.OutputJSON:
		p.printer = newJSONPrinter(false)
	case config.OutputJSONPretty:
		p.printer = newJSONPrinter(true)
	case config.OutputNDJSON:
		p.printer = nil
	default:
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.Style().Options = table.OptionsNoBordersAndSeparators
		tbl.Style().Format.Header = 0
		if p.pageSize > 0 {
			header := make(table.Row, 0, len(p.columns))
			for _, c := range p.columns {
				header = append(header, c.Name)
			}
			tbl.AppendHeader(header)
		}
		p.printer = tbl
	}
	if p.printer != nil {
		p.printer.SetColumnConfigs(p.columns)
	}
}

// AddItem adds one row. It panics if the number of values does not match the number of columns
// since that can only be a bug.
func (p *Printomatic) AddItem(values ...any) {
	if len(values) != len(p.columns) {
		panic(fmt.Sprintf("unable to print row, the number of columns %d does not match the number of values %d (this is likely a bug)", len(p.columns), len(values)))
	}
	if p.output == config.OutputNDJSON {
		fmt.Fprintln(stdout, printJSONLine(p.columns, values))
		return
	}
	row := make(table.Row, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && p.output == config.OutputTable && p.maxWidth > 0 && len(s) > p.maxWidth {
			v = wordwrap.WrapString(s, uint(p.maxWidth))
		}
		row = append(row, v)
	}
	p.printer.AppendRow(row)
	p.buffered++
	if p.pageSize == 0 || p.buffered >= p.pageSize {
		p.flush()
	}
}

// PrintRemaining flushes any buffered rows.
func (p *Printomatic) PrintRemaining() {
	if p.buffered > 0 {
		p.flush()
	}
}

func (p *Printomatic) flush() {
	if p.printer == nil {
		return
	}
	if out := p.printer.Render(); out != "" {
		fmt.Fprintln(stdout, out)
	}
	p.reset()
}

func printJSONLine(columns []table.ColumnConfig, values []any) string {
	item := make(map[string]any, len(columns))
	for i, col := range columns {
		if col.Hidden {
			continue
		}
		item[col.Name] = jsonValue(values[i])
	}
	line, err := json.Marshal(item)
	if err != nil {
		panic("unable to marshal json (this is likely a bug): " + err.Error())
	}
	return string(line)
}

// Printf prints informational output such as summaries. When output is printed as JSON it goes to
// stderr so stdout can be parsed.
func Printf(format string, a ...any) {
	if config.OutputType(viper.GetString(config.OutputKey)) == config.OutputTable || viper.GetString(config.OutputKey) == "" {
		fmt.Fprintf(stdout, format, a...)
		return
	}
	fmt.Fprintf(stderr, format, a...)
}
