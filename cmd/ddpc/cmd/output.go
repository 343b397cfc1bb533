package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/itchyny/gojq"
)

// printer writes values as JSON lines, optionally through a jq query. The
// query can refer to the topic being printed as $topic.
type printer struct {
	mu    sync.Mutex
	out   io.Writer
	query *gojq.Code
}

func newPrinter(out io.Writer, query string) (*printer, error) {
	p := &printer{out: out}
	if query == "" {
		return p, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq query '%s': %w", query, err)
	}
	p.query, err = gojq.Compile(parsed, gojq.WithVariables([]string{"$topic"}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq query '%s': %w", query, err)
	}
	return p, nil
}

// Print writes v, or each result of the query applied to v. A non-empty
// topic is written before each value, separated by a tab.
func (p *printer) Print(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.query == nil {
		return p.write(topic, v)
	}

	iter := p.query.RunWithContext(context.Background(), v, topic)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq: %w", err)
		}
		if err := p.write(topic, result); err != nil {
			return err
		}
	}
}

func (p *printer) write(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if topic != "" {
		_, err = fmt.Fprintf(p.out, "%s\t%s\n", topic, data)
	} else {
		_, err = fmt.Fprintf(p.out, "%s\n", data)
	}
	return err
}

// parseParams parses each argument as JSON, falling back to the argument
// itself as a string.
func parseParams(args []string) []any {
	params := make([]any, 0, len(args))
	for _, arg := range args {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			v = arg
		}
		params = append(params, v)
	}
	return params
}
