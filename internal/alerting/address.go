package alerting

import (
	"fmt"
	"strings"
)

// address is a metric name resolved to a sink table, column and the entity
// filters implied by the name.
type address struct {
	table    string
	column   string
	stream   string
	consumer string
}

// bareMetrics maps the cluster-wide synthetic metric names to their backing
// table and column. The set is closed: unknown bare names are rejected.
var bareMetrics = map[string]address{
	"message_rate":   {table: "stream_metrics", column: "messages_rate"},
	"bytes_rate":     {table: "stream_metrics", column: "bytes_rate"},
	"consumer_lag":   {table: "consumer_metrics", column: "pending"},
	"consumer_count": {table: "cluster_metrics", column: "consumers"},
	"stream_count":   {table: "cluster_metrics", column: "streams"},
	"memory_usage":   {table: "cluster_metrics", column: "memory_bytes"},
	"storage_usage":  {table: "cluster_metrics", column: "storage_bytes"},
}

var streamFields = map[string]bool{
	"messages":       true,
	"bytes":          true,
	"messages_rate":  true,
	"bytes_rate":     true,
	"consumer_count": true,
}

var consumerFields = map[string]bool{
	"pending":        true,
	"ack_pending":    true,
	"redelivered":    true,
	"waiting":        true,
	"delivered_rate": true,
}

// parseAddress resolves a rule's metric name. Supported forms are
// "stream.<stream>.<field>", "consumer.<stream>.<consumer>.<field>" and a
// bare synthetic name from the closed set above.
func parseAddress(metric string) (address, error) {
	parts := strings.Split(metric, ".")
	for _, part := range parts {
		if part == "" {
			return address{}, fmt.Errorf("malformed metric address %q", metric)
		}
	}

	switch {
	case len(parts) == 1:
		addr, ok := bareMetrics[parts[0]]
		if !ok {
			return address{}, fmt.Errorf("unknown metric %q", metric)
		}
		return addr, nil

	case len(parts) == 3 && parts[0] == "stream":
		if !streamFields[parts[2]] {
			return address{}, fmt.Errorf("unknown stream field %q in metric %q", parts[2], metric)
		}
		return address{table: "stream_metrics", column: parts[2], stream: parts[1]}, nil

	case len(parts) == 4 && parts[0] == "consumer":
		if !consumerFields[parts[3]] {
			return address{}, fmt.Errorf("unknown consumer field %q in metric %q", parts[3], metric)
		}
		return address{table: "consumer_metrics", column: parts[3], stream: parts[1], consumer: parts[2]}, nil
	}
	return address{}, fmt.Errorf("malformed metric address %q", metric)
}
