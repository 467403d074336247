package output

import (
	"encoding/json"

	"github.com/namelens/relay/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatResponse renders the response envelope with its decoded body.
func (f *JSONFormatter) FormatResponse(resp *core.Response) (string, error) {
	if resp == nil {
		return "", nil
	}
	return f.marshal(resp)
}

// FormatSnapshot renders the gate snapshot.
func (f *JSONFormatter) FormatSnapshot(snapshot core.GateSnapshot) (string, error) {
	if snapshot.Buckets == nil {
		snapshot.Buckets = []core.BucketState{}
	}
	return f.marshal(snapshot)
}

// FormatBatch renders a batch result as JSON.
func (f *JSONFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return f.marshal(result)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
