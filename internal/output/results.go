package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/torosent/sron/internal/config"
	"github.com/torosent/sron/internal/runner"
)

// WriteResults writes one line per record in the requested format, in admission order.
func WriteResults(w io.Writer, format config.Format, records []runner.Record) error {
	switch format {
	case "", config.FormatRaw:
		return WriteRaw(w, records)
	case config.FormatJSON:
		return WriteJSON(w, records)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteRaw writes "<start_offset_us>,<latency_us>" per record, or
// "<start_offset_us>,TIMEOUT" when the request timed out.
func WriteRaw(w io.Writer, records []runner.Record) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 48)
	for _, rec := range records {
		buf = strconv.AppendInt(buf[:0], rec.StartOffset.Microseconds(), 10)
		buf = append(buf, ',')
		if latency, ok := rec.Outcome.Latency(); ok {
			buf = strconv.AppendInt(buf, latency.Microseconds(), 10)
		} else {
			buf = append(buf, "TIMEOUT"...)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// jsonRecord is the json-lines shape of a record. DurationSecs is null for timeouts.
type jsonRecord struct {
	StartTimeSecs float64  `json:"start_time_secs"`
	DurationSecs  *float64 `json:"duration_secs"`
}

// WriteJSON writes one JSON object per line.
func WriteJSON(w io.Writer, records []runner.Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, rec := range records {
		line := jsonRecord{StartTimeSecs: rec.StartOffset.Seconds()}
		if latency, ok := rec.Outcome.Latency(); ok {
			secs := latency.Seconds()
			line.DurationSecs = &secs
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// CountTimeouts returns how many records timed out.
func CountTimeouts(records []runner.Record) int {
	n := 0
	for _, rec := range records {
		if rec.Outcome.IsTimeout() {
			n++
		}
	}
	return n
}
