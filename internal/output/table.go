package output

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/namelens/relay/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatResponse renders response metadata followed by the body.
func (f *TableFormatter) FormatResponse(resp *core.Response) (string, error) {
	if resp == nil {
		return "", nil
	}
	t := responseTable(resp)
	t.SetStyle(table.StyleRounded)

	body, err := responseBody(resp)
	if err != nil {
		return "", err
	}
	if body == "" {
		return t.Render(), nil
	}
	return t.Render() + "\n" + body, nil
}

// FormatSnapshot renders one row per tracked bucket.
func (f *TableFormatter) FormatSnapshot(snapshot core.GateSnapshot) (string, error) {
	t := snapshotTable(snapshot)
	t.SetStyle(table.StyleRounded)
	return t.Render(), nil
}

// FormatBatch renders a batch result as a table.
func (f *TableFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}
	t := batchTable(result)
	t.SetStyle(table.StyleRounded)
	return t.Render(), nil
}

func responseTable(resp *core.Response) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Request", strings.TrimSpace(resp.Method + " " + resp.URL)},
		{"Status", statusText(resp.StatusCode)},
		{"Bucket", resp.Bucket},
		{"Attempts", resp.Attempts},
		{"Duration", resp.Duration.Round(time.Millisecond).String()},
	})
	return t
}

func responseBody(resp *core.Response) (string, error) {
	if !resp.JSON {
		return strings.TrimSpace(resp.Text()), nil
	}
	if resp.Data == nil {
		return "", nil
	}
	data, err := json.MarshalIndent(resp.Data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func snapshotTable(snapshot core.GateSnapshot) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Bucket", "Locked", "Waiters", "Release In"})

	for _, bucket := range snapshot.Buckets {
		t.AppendRow(table.Row{
			bucket.Key,
			yesNo(bucket.Locked),
			bucket.Waiters,
			releaseIn(bucket.ReleaseAt, snapshot.TakenAt),
		})
	}

	global := "open"
	if snapshot.Global.Active {
		global = "throttled " + releaseIn(snapshot.Global.Until, snapshot.TakenAt)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d buckets", len(snapshot.Buckets)), "", "", "global: " + global})
	return t
}

func batchTable(result *core.BatchResult) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Request", "Status", "Attempts", "Duration", "Error"})

	for _, r := range result.Results {
		if r == nil {
			continue
		}
		status, attempts := "-", 0
		if r.Response != nil {
			status = statusText(r.Response.StatusCode)
			attempts = r.Response.Attempts
		}
		if httpErr, ok := core.AsHTTPError(r.Err); ok {
			status = statusText(httpErr.StatusCode)
			attempts = httpErr.Attempts
		}
		t.AppendRow(table.Row{
			r.Index + 1,
			r.Request,
			status,
			attempts,
			r.Duration.Round(time.Millisecond).String(),
			r.Error,
		})
	}

	summary := fmt.Sprintf("%d ok, %d failed", result.Succeeded, result.Failed)
	t.AppendFooter(table.Row{"", summary, "", "", result.Elapsed.Round(time.Millisecond).String(), ""})
	return t
}

func statusText(code int) string {
	if code == 0 {
		return "-"
	}
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("%d", code)
}

func releaseIn(at *time.Time, now time.Time) string {
	if at == nil {
		return "-"
	}
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Millisecond).String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
