package cmdfmt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type jsonPrinter struct {
	columns []table.ColumnConfig
	rows    []map[string]any
	pretty  bool
}

func newJSONPrinter(pretty bool) *jsonPrinter {
	return &jsonPrinter{
		rows:   []map[string]any{},
		pretty: pretty,
	}
}

func (p *jsonPrinter) SetColumnConfigs(configs []table.ColumnConfig) {
	p.columns = configs
}

func (p *jsonPrinter) AppendRow(row table.Row, configs ...table.RowConfig) {

	if len(p.columns) != len(row) {
		panic(fmt.Sprintf("unable to print json, the number of keys %d does not match the number of values %d (this is likely a bug)", len(p.columns), len(row)))
	}

	item := make(map[string]any, len(p.columns))
	for i, col := range p.columns {
		if col.Hidden {
			continue
		}
		item[col.Name] = jsonValue(row[i])
	}
	p.rows = append(p.rows, item)
}

func (p *jsonPrinter) Render() string {
	var out []byte
	var err error
	if p.pretty {
		out, err = json.MarshalIndent(p.rows, "", " ")
	} else {
		out, err = json.Marshal(p.rows)
	}
	if err != nil {
		panic("unable to marshal json (this is likely a bug): " + err.Error())
	}
	return string(out)
}

// jsonValue converts values that would otherwise be marshalled as numbers or structs to the string
// shown in table output. Times are kept so they are printed in RFC 3339 format.
func jsonValue(v any) any {
	switch t := v.(type) {
	case time.Time, json.Marshaler:
		return t
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	}
	return v
}
