package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/swaggerclient/internal/mapping"
	"github.com/mark3labs/swaggerclient/internal/spec"
)

// CallConfig captures the inputs of the call command.
type CallConfig struct {
	ClientConfig
	OperationID string
	Params      []string
	BodyJSON    string
}

var callRunner = runCall

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <operationId>",
		Short: "Invoke one operation and print the mapped response",
		Long: "Invoke one operation of a Swagger 2.0 document. Parameter values are converted " +
			"according to their declared type; the response is validated against its schema.",
		Example: strings.TrimSpace(`  swaggerclient call getPetById --spec petstore.yaml -p petId=1
  swaggerclient call addPet --spec petstore.yaml --body-json '{"name":"doggie"}'
  swaggerclient call uploadFile --spec petstore.yaml -p petId=1 -p file=@photo.png`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveClientConfig(cmd)
			if err != nil {
				return err
			}
			params, err := cmd.Flags().GetStringArray("param")
			if err != nil {
				return err
			}
			body, err := cmd.Flags().GetString("body-json")
			if err != nil {
				return err
			}
			cfg := &CallConfig{
				ClientConfig: *base,
				OperationID:  strings.TrimSpace(args[0]),
				Params:       params,
				BodyJSON:     strings.TrimSpace(body),
			}
			return callRunner(cmd, cfg)
		},
	}
	addClientFlags(cmd.Flags())
	cmd.Flags().StringArrayP("param", "p", nil, "Parameter as name=value (repeatable); file parameters take @path")
	cmd.Flags().String("body-json", "", "JSON value for the operation's body parameter")
	return cmd
}

func runCall(cmd *cobra.Command, cfg *CallConfig) error {
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	c, err := buildClient(cmd, &cfg.ClientConfig, logger)
	if err != nil {
		return err
	}
	op, ok := c.Operation(cfg.OperationID)
	if !ok {
		return newUsageError(fmt.Sprintf("call: unknown operation %q (run 'swaggerclient ops' to list them)", cfg.OperationID))
	}

	args, err := buildArgs(op, cfg.Params, cfg.BodyJSON)
	if err != nil {
		return err
	}
	args[mapping.RequestOptionsKey] = cfg.RequestOptions()

	future, err := c.Call(cmd.Context(), cfg.OperationID, args)
	if err != nil {
		return newUsageError(fmt.Sprintf("call: %v", err))
	}
	status, value, err := future.Result(cmd.Context())
	if err != nil {
		if status > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "status: %d\n", status)
		}
		return fmt.Errorf("call %s: %w", cfg.OperationID, err)
	}
	return printResult(cmd, op, status, value)
}

// printResult writes the status and the value in its wire form, so formats
// like date print as the API sent them.
func printResult(cmd *cobra.Command, op *mapping.Operation, status int, value any) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %d\n", status)
	if value != nil {
		if rs, err := mapping.GetResponseSpec(status, op); err == nil {
			if schema, ok := spec.Map(rs)["schema"]; ok {
				if wire, err := mapping.MarshalSchemaObject(op.Spec, schema, value); err == nil {
					value = wire
				}
			}
		}
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}

// buildArgs converts name=value strings into call arguments. Arrays split on
// commas, body parameters are JSON and file parameters read @path.
func buildArgs(op *mapping.Operation, params []string, bodyJSON string) (mapping.Args, error) {
	args := make(mapping.Args, len(params)+1)
	for _, raw := range params {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, newUsageError(fmt.Sprintf("--param %q: expected name=value", raw))
		}
		p, known := op.Params[name]
		if !known {
			// Left for the operation to report with its own message.
			args[name] = value
			continue
		}
		v, err := paramValue(p, value)
		if err != nil {
			return nil, newUsageError(fmt.Sprintf("--param %s: %v", name, err))
		}
		args[name] = v
	}

	if bodyJSON != "" {
		var body *mapping.Param
		for _, p := range op.Params {
			if p.In == mapping.InBody {
				body = p
			}
		}
		if body == nil {
			return nil, newUsageError(fmt.Sprintf("--body-json: %s has no body parameter", op.OperationID()))
		}
		v, err := decodeJSONValue(bodyJSON)
		if err != nil {
			return nil, newUsageError(fmt.Sprintf("--body-json: %v", err))
		}
		args[body.Name] = v
	}
	return args, nil
}

func paramValue(p *mapping.Param, raw string) (any, error) {
	switch {
	case p.In == mapping.InBody:
		return decodeJSONValue(raw)
	case p.Type() == "file":
		path := strings.TrimPrefix(raw, "@")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return mapping.File{Name: filepath.Base(path), Reader: bytes.NewReader(data)}, nil
	case p.Type() == "array":
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
	return raw, nil
}

func decodeJSONValue(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}
