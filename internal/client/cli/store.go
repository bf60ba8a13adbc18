package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/iudanet/dailyuse/internal/ipc"
)

type storeArgs struct {
	Namespace string          `json:"namespace,omitempty"`
	Key       string          `json:"key,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// RunStoreGet prints the JSON value of key
func (c *Cli) RunStoreGet(ctx context.Context, namespace, key string) error {
	var value json.RawMessage
	if err := c.call(ctx, ipc.OpStoreGet, storeArgs{Namespace: namespace, Key: key}, &value); err != nil {
		return err
	}
	c.io.Println(string(value))
	return nil
}

// RunStoreSet stores value, which must be a JSON document
func (c *Cli) RunStoreSet(ctx context.Context, namespace, key, value string) error {
	args := storeArgs{Namespace: namespace, Key: key, Value: json.RawMessage(value)}
	if !json.Valid(args.Value) {
		// Не JSON: сохраняем как строку
		quoted, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode value: %w", err)
		}
		args.Value = quoted
	}

	if err := c.call(ctx, ipc.OpStoreSet, args, nil); err != nil {
		return err
	}
	c.io.Printf("✓ %s saved\n", key)
	return nil
}

func (c *Cli) RunStoreDelete(ctx context.Context, namespace, key string) error {
	if err := c.call(ctx, ipc.OpStoreDelete, storeArgs{Namespace: namespace, Key: key}, nil); err != nil {
		return err
	}
	c.io.Printf("✓ %s deleted\n", key)
	return nil
}

func (c *Cli) RunStoreKeys(ctx context.Context, namespace string) error {
	var keys []string
	if err := c.call(ctx, ipc.OpStoreKeys, storeArgs{Namespace: namespace}, &keys); err != nil {
		return err
	}
	for _, k := range keys {
		c.io.Println(k)
	}
	return nil
}

// RunStoreExport writes all values of the namespace as one JSON object.
// An empty path writes to the terminal.
func (c *Cli) RunStoreExport(ctx context.Context, namespace, path string) error {
	var values map[string]json.RawMessage
	if err := c.call(ctx, ipc.OpStoreExport, storeArgs{Namespace: namespace}, &values); err != nil {
		return err
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if path == "" {
		c.io.Println(string(data))
		return nil
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	c.io.Printf("✓ Exported %d key(s) to %s\n", len(values), path)
	return nil
}

// RunStoreImport loads a JSON object from path into the namespace
func (c *Cli) RunStoreImport(ctx context.Context, namespace, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("import file must contain a JSON object: %w", err)
	}

	args := struct {
		Namespace string                     `json:"namespace,omitempty"`
		Values    map[string]json.RawMessage `json:"values"`
	}{Namespace: namespace, Values: values}

	if err := c.call(ctx, ipc.OpStoreImport, args, nil); err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c.io.Printf("✓ Imported %d key(s)\n", len(keys))
	for _, k := range keys {
		c.io.Println("  " + k)
	}
	return nil
}
